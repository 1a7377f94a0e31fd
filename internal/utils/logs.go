package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// LogRotationConfig holds rotation configuration
type LogRotationConfig struct {
	MaxSizeMB      int64 // Maximum file size in MB before rotation
	MaxBackups     int   // Maximum number of backup files to keep (0 = keep all)
	EnableRotation bool
}

type LogsManager struct {
	cm             *ConfigManager
	dir            string
	logFileName    string
	logger         *log.Logger
	File           *os.File // allow other packages to use same log output
	mutex          sync.RWMutex
	rotationConfig LogRotationConfig
	fileSize       int64
}

func NewLogsManager(cm *ConfigManager) *LogsManager {
	paths := GetAppPaths("")
	logFileName := cm.GetConfigWithDefault("logfile", "stacks-agent.log")

	rotationConfig := LogRotationConfig{
		MaxSizeMB:      int64(cm.GetConfigInt("log_max_size_mb", 100, 1, 10240)),
		MaxBackups:     cm.GetConfigInt("log_max_backups", 10, 0, 1000),
		EnableRotation: cm.GetConfigBool("log_enable_rotation", true),
	}

	lm := &LogsManager{
		cm:             cm,
		dir:            paths.LogDir,
		logFileName:    logFileName,
		logger:         log.New(),
		rotationConfig: rotationConfig,
	}

	if err := lm.initLogger(); err != nil {
		panic(err)
	}

	return lm
}

func (lm *LogsManager) initLogger() error {
	path := filepath.Join(lm.dir, lm.logFileName)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return err
	}

	lm.File = file

	if stat, err := file.Stat(); err == nil {
		lm.fileSize = stat.Size()
	}

	logLevel := lm.cm.GetConfigWithDefault("log_level", "info")
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		fmt.Printf("Invalid log level '%s', defaulting to 'info'\n", logLevel)
		level = log.InfoLevel
	}
	lm.logger.SetLevel(level)
	lm.logger.SetOutput(file)
	lm.logger.SetFormatter(&log.JSONFormatter{})

	return nil
}

func (lm *LogsManager) fileInfo(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		file = "<???>"
		line = 1
	} else {
		slash := strings.LastIndex(file, "/")
		if slash >= 0 {
			file = file[slash+1:]
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func (lm *LogsManager) Log(level string, message string, category string) {
	if lm.rotationConfig.EnableRotation {
		lm.checkAndRotate()
	}

	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	// File is nil during shutdown; drop the message
	if lm.File == nil {
		return
	}

	entry := lm.logger.WithFields(log.Fields{
		"category": category,
		"file":     lm.fileInfo(3),
	})

	switch level {
	case "trace":
		entry.Trace(message)
	case "debug":
		entry.Debug(message)
	case "info":
		entry.Info(message)
	case "warn":
		entry.Warn(message)
	case "error":
		entry.Error(message)
	case "fatal":
		entry.Fatal(message)
	default:
		entry.Info(message)
	}

	// Approximate size tracking including JSON overhead
	lm.fileSize += int64(len(message) + 100)
}

func (lm *LogsManager) Debug(message string, category string) {
	lm.Log("debug", message, category)
}

func (lm *LogsManager) Info(message string, category string) {
	lm.Log("info", message, category)
}

func (lm *LogsManager) Warn(message string, category string) {
	lm.Log("warn", message, category)
}

func (lm *LogsManager) Error(message string, category string) {
	lm.Log("error", message, category)
}

// Close closes the log file - call this when shutting down
func (lm *LogsManager) Close() error {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if lm.File != nil {
		err := lm.File.Close()
		lm.File = nil
		return err
	}
	return nil
}

// checkAndRotate rotates the log file once it exceeds the size limit
func (lm *LogsManager) checkAndRotate() {
	if lm.rotationConfig.MaxSizeMB > 0 && lm.fileSize > lm.rotationConfig.MaxSizeMB*1024*1024 {
		lm.rotateWithBackup()
	}
}

func (lm *LogsManager) rotateWithBackup() {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	backupFileName := fmt.Sprintf("%s.%s.bak", lm.logFileName, timestamp)
	backupPath := filepath.Join(lm.dir, backupFileName)
	currentPath := filepath.Join(lm.dir, lm.logFileName)

	if lm.File != nil {
		lm.File.Close()
		lm.File = nil
	}

	if _, err := os.Stat(currentPath); err == nil {
		if err := os.Rename(currentPath, backupPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create backup %s: %v\n", backupPath, err)
		}
	}

	if err := lm.initLogger(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to reinitialize logger after rotation: %v\n", err)
		return
	}

	lm.cleanupOldBackups()

	lm.logger.WithFields(log.Fields{
		"category": "logrotate",
		"backup":   backupFileName,
	}).Info("Log rotated")
}

// cleanupOldBackups removes old backup files beyond MaxBackups
func (lm *LogsManager) cleanupOldBackups() {
	if lm.rotationConfig.MaxBackups <= 0 {
		return
	}

	files, err := filepath.Glob(filepath.Join(lm.dir, lm.logFileName+"*.bak"))
	if err != nil {
		return
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}

	var backups []fileInfo
	for _, file := range files {
		if stat, err := os.Stat(file); err == nil {
			backups = append(backups, fileInfo{path: file, modTime: stat.ModTime()})
		}
	}

	if len(backups) <= lm.rotationConfig.MaxBackups {
		return
	}

	// Oldest first
	for i := 0; i < len(backups)-1; i++ {
		for j := i + 1; j < len(backups); j++ {
			if backups[i].modTime.After(backups[j].modTime) {
				backups[i], backups[j] = backups[j], backups[i]
			}
		}
	}

	excess := len(backups) - lm.rotationConfig.MaxBackups
	for i := 0; i < excess; i++ {
		os.Remove(backups[i].path)
	}
}

// SetLogLevel updates the log level at runtime
func (lm *LogsManager) SetLogLevel(levelStr string) error {
	level, err := log.ParseLevel(levelStr)
	if err != nil {
		return fmt.Errorf("invalid log level '%s': %v", levelStr, err)
	}

	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	lm.logger.SetLevel(level)

	return nil
}

// GetLogLevel returns the current log level
func (lm *LogsManager) GetLogLevel() string {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()
	return lm.logger.GetLevel().String()
}
