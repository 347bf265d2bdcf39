package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	FnDefaultCreateAppHomeDirAndGetConfigFilePath = createAppHomeDirAndGetConfigFile
	FnDefaultSafeWriteViaTemp                     = SafeWriteViaTemp
	configFileResolved                            = make(map[string]string) // configFileResolved caches the full path for each config file name.
	configFileResolvedMu                          sync.Mutex
)

// createAppHomeDirAndGetConfigFile creates a directory in the user's home directory for the app's configuration file.
// It returns the full path to the configuration file. Absolute paths are returned unchanged.
func createAppHomeDirAndGetConfigFile(fileName string) (string, error) {
	if filepath.IsAbs(fileName) {
		return fileName, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	appDir := filepath.Join(homeDir, AppHomeDir)
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create app directory: %w", err)
	}

	return filepath.Join(appDir, fileName), nil
}

func SafeWriteViaTemp(filePath string, data string) error {
	tempPath := filePath + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer file.Close()

	_, err = file.WriteString(data)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	// Flush data to disk.
	err = file.Sync()
	if err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	err = os.Rename(tempPath, filePath)
	if err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// resolveConfigPath maps a config file name to its full path once per name.
func resolveConfigPath(configPath string) (string, error) {
	configFileResolvedMu.Lock()
	defer configFileResolvedMu.Unlock()
	if p, ok := configFileResolved[configPath]; ok {
		return p, nil
	}
	p, err := FnDefaultCreateAppHomeDirAndGetConfigFilePath(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to create home directory: %w", err)
	}
	configFileResolved[configPath] = p
	return p, nil
}

// GetConfig reads a YAML configuration of any type T from a file in the app home dir.
// If the file does not exist it is created empty and the zero value of T is returned.
func GetConfig[T any](mu *sync.Mutex, configPath string, newInstance func() T) (T, error) {
	mu.Lock()
	defer mu.Unlock()

	var zero T
	configPath, err := resolveConfigPath(configPath)
	if err != nil {
		return zero, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			if err := FnDefaultSafeWriteViaTemp(configPath, ""); err != nil {
				return zero, fmt.Errorf("failed to create config file: %w", err)
			}
			return zero, nil
		}
		return zero, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := newInstance()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return zero, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return cfg, nil
}
