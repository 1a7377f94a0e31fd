package utils

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//go:embed configs
var defaultConfig embed.FS

type Config map[string]string

type ConfigManager struct {
	configsPath string
	configs     Config
	configMutex sync.RWMutex
}

func NewConfigManager(path string) *ConfigManager {
	err := ensureConfig()
	if err != nil {
		panic(err)
	}

	if path == "" {
		paths := GetAppPaths("")
		path = filepath.Join(paths.ConfigDir, "configs")
	}

	configs, err := readConfigs(path)
	if err != nil {
		panic(err)
	}

	// Overlay from a local .env when present. Deployments keep the wallet
	// encryption secret and ledger endpoint there rather than in the config file.
	godotenv.Load()

	return &ConfigManager{
		configsPath: path,
		configs:     configs,
	}
}

func ensureConfig() error {
	paths := GetAppPaths("")
	configPath := filepath.Join(paths.ConfigDir, "configs")

	// If config doesn't exist, create it from embedded default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		data, err := defaultConfig.ReadFile("configs/configs")
		if err != nil {
			return err
		}

		return os.WriteFile(configPath, data, 0644)
	}

	return nil
}

func readConfigs(configsPath string) (Config, error) {
	// init config
	config := Config{
		"file": configsPath,
	}

	// return error if config filepath is not provided
	if len(configsPath) == 0 {
		return nil, fmt.Errorf("invalid configs path `%s`", configsPath)
	}

	// open configs file
	file, err := os.Open(configsPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := bufio.NewReader(file)

	// parse through config file
	for {
		line, err := reader.ReadString('\n')

		// check line for '=' delimiter
		if equal := strings.Index(line, "="); equal >= 0 {
			// extract key
			if key := strings.TrimSpace(line[:equal]); len(key) > 0 {
				// init value
				value := ""
				if len(line) > equal {
					// assign value if not empty
					value = strings.TrimSpace(line[equal+1:])
				}

				// assign the config map
				config[key] = value
			}
		}

		// process errors
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	return config, nil
}

func (cm *ConfigManager) GetConfig(key string) (string, bool) {
	cm.configMutex.RLock()
	defer cm.configMutex.RUnlock()

	value, exists := cm.configs[key]
	return value, exists
}

func (cm *ConfigManager) GetConfigWithDefault(key string, defaultValue string) string {
	if value, exists := cm.GetConfig(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func (cm *ConfigManager) GetAllConfigs() Config {
	cm.configMutex.RLock()
	defer cm.configMutex.RUnlock()

	// Return a copy to prevent external modification
	configsCopy := make(Config)
	maps.Copy(configsCopy, cm.configs)
	return configsCopy
}

// ReloadConfig re-reads the config file at the given path
func (cm *ConfigManager) ReloadConfig(path string) error {
	cm.configMutex.Lock()
	defer cm.configMutex.Unlock()

	newConfigs, err := readConfigs(path)
	if err != nil {
		return err
	}

	cm.configs = newConfigs

	return nil
}

// GetConfigDuration parses a duration string from config with default fallback
func (cm *ConfigManager) GetConfigDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := cm.GetConfigWithDefault(key, defaultValue.String())
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		fmt.Printf("Invalid duration '%s' for key '%s', using default %v\n", valueStr, key, defaultValue)
		return defaultValue
	}
	return duration
}

// GetConfigInt parses an integer from config with validation
func (cm *ConfigManager) GetConfigInt(key string, defaultValue int, min int, max int) int {
	valueStr := cm.GetConfigWithDefault(key, fmt.Sprintf("%d", defaultValue))
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		fmt.Printf("Invalid integer '%s' for key '%s', using default %d\n", valueStr, key, defaultValue)
		return defaultValue
	}
	if value < min || value > max {
		fmt.Printf("Value %d for key '%s' out of range [%d, %d], using default %d\n", value, key, min, max, defaultValue)
		return defaultValue
	}
	return value
}

// GetConfigBool parses a boolean from config with default fallback
func (cm *ConfigManager) GetConfigBool(key string, defaultValue bool) bool {
	valueStr := cm.GetConfigWithDefault(key, strconv.FormatBool(defaultValue))
	valueStr = strings.ToLower(strings.TrimSpace(valueStr))

	switch valueStr {
	case "true", "yes", "1", "on", "enabled":
		return true
	case "false", "no", "0", "off", "disabled":
		return false
	default:
		fmt.Printf("Invalid boolean '%s' for key '%s', using default %v\n", valueStr, key, defaultValue)
		return defaultValue
	}
}

// GetConfigSlice parses a comma-separated string into a slice
func (cm *ConfigManager) GetConfigSlice(key string, defaultValues []string) []string {
	valueStr := cm.GetConfigWithDefault(key, strings.Join(defaultValues, ", "))

	if valueStr == "" {
		return defaultValues
	}

	var values []string
	for _, value := range strings.Split(valueStr, ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			values = append(values, value)
		}
	}

	if len(values) == 0 {
		return defaultValues
	}

	return values
}

// SetConfig sets a configuration value at runtime
func (cm *ConfigManager) SetConfig(key string, value interface{}) {
	cm.configMutex.Lock()
	defer cm.configMutex.Unlock()

	// Convert value to string
	var strValue string
	switch v := value.(type) {
	case string:
		strValue = v
	case bool:
		strValue = strconv.FormatBool(v)
	case int:
		strValue = strconv.Itoa(v)
	case int64:
		strValue = strconv.FormatInt(v, 10)
	case float64:
		strValue = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		strValue = fmt.Sprintf("%v", v)
	}

	cm.configs[key] = strValue
}
