package utils

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ServiceRegistry maps service labels to gated API base URLs
type ServiceRegistry struct {
	Services map[string]string `yaml:"services"`
}

// LoadServiceRegistry reads the registry from the YAML file configured under
// services_file. A missing config key yields an empty registry.
func LoadServiceRegistry(cm *ConfigManager) (*ServiceRegistry, error) {
	path := cm.GetConfigWithDefault("services_file", "")
	if path == "" {
		return &ServiceRegistry{Services: map[string]string{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read services file %s: %w", path, err)
	}

	var registry ServiceRegistry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse services file %s: %w", path, err)
	}
	if registry.Services == nil {
		registry.Services = map[string]string{}
	}

	return &registry, nil
}

// Resolve returns the base URL for a service label
func (r *ServiceRegistry) Resolve(label string) (string, error) {
	url, exists := r.Services[label]
	if !exists || url == "" {
		return "", fmt.Errorf("unknown service '%s'", label)
	}
	return url, nil
}

// Labels returns all registered service labels, sorted
func (r *ServiceRegistry) Labels() []string {
	labels := make([]string, 0, len(r.Services))
	for label := range r.Services {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
