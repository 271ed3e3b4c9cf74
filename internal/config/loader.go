package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPaths defines the config file search paths in priority order
var ConfigPaths = []string{
	"./.ngxview.yaml",               // Project-specific config (highest priority)
	"~/.config/ngxview/config.yaml", // User config
	"/etc/ngxview/config.yaml",      // System config (lowest priority)
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NGXVIEW_"

// Loader handles configuration loading with priority merging
type Loader struct {
	configPaths []string
}

// NewLoader creates a new config loader
func NewLoader() *Loader {
	return &Loader{
		configPaths: ConfigPaths,
	}
}

// NewLoaderWithPaths creates a loader searching the given paths (highest
// priority first) instead of the standard ones.
func NewLoaderWithPaths(paths ...string) *Loader {
	return &Loader{configPaths: paths}
}

// LoadConfig loads the configuration like Load and validates every section.
func (l *Loader) LoadConfig(customPath string) (*Config, error) {
	config, err := l.Load(customPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// Load reads configuration from multiple sources with priority order:
// 1. Command line flags (handled by caller)
// 2. Environment variables
// 3. ./.ngxview.yaml
// 4. ~/.config/ngxview/config.yaml
// 5. /etc/ngxview/config.yaml
// 6. Built-in defaults
//
// Sections are not validated; callers check the ones they use.
func (l *Loader) Load(customPath string) (*Config, error) {
	config := DefaultConfig()

	if customPath != "" {
		if err := validateConfigPath(customPath); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		if err := l.loadFromFile(config, customPath); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", customPath, err)
		}
	} else {
		// Lowest priority first so that higher ones win the merge.
		for i := len(l.configPaths) - 1; i >= 0; i-- {
			expandedPath := expandPath(l.configPaths[i])
			if !fileExists(expandedPath) {
				continue
			}
			if err := l.loadFromFile(config, expandedPath); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: Failed to load config from %s: %v\n", expandedPath, err)
			}
		}
	}

	if err := l.applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file and merges it with existing config
func (l *Loader) loadFromFile(config *Config, path string) error {
	// #nosec G304 - path is validated by validateConfigPath() before reaching here
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var fileConfig Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	mergeConfigs(config, &fileConfig)
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func (l *Loader) applyEnvOverrides(config *Config) error {
	envMappings := map[string]func(string) error{
		// Server Config
		EnvPrefix + "SERVER_ADDR":             func(v string) error { config.Server.Addr = v; return nil },
		EnvPrefix + "SERVER_PATH":             func(v string) error { config.Server.Path = v; return nil },
		EnvPrefix + "SERVER_CORS":             func(v string) error { return parseBool(v, &config.Server.CORS) },
		EnvPrefix + "SERVER_DEBOUNCE":         func(v string) error { return parseDuration(v, &config.Server.Debounce) },
		EnvPrefix + "SERVER_HEARTBEAT":        func(v string) error { return parseDuration(v, &config.Server.Heartbeat) },
		EnvPrefix + "SERVER_RETRY":            func(v string) error { return parseDuration(v, &config.Server.Retry) },
		EnvPrefix + "SERVER_CLIENT_BUFFER":    func(v string) error { return parseInt(v, &config.Server.ClientBuffer) },
		EnvPrefix + "SERVER_SHUTDOWN_TIMEOUT": func(v string) error { return parseDuration(v, &config.Server.ShutdownTimeout) },

		// Viewer Config
		EnvPrefix + "VIEWER_URL":         func(v string) error { config.Viewer.URL = v; return nil },
		EnvPrefix + "COLOR_MODE":         func(v string) error { config.Viewer.ColorMode = v; return nil },
		EnvPrefix + "VIEWER_RETRY_DELAY": func(v string) error { return parseDuration(v, &config.Viewer.RetryDelay) },
		EnvPrefix + "VIEWER_LOG_FILE":    func(v string) error { config.Viewer.LogFile = v; return nil },

		// Output Config
		EnvPrefix + "OUTPUT_COLOR_MODE": func(v string) error { config.Output.ColorMode = v; return nil },
		EnvPrefix + "OUTPUT_VERBOSE":    func(v string) error { return parseBool(v, &config.Output.Verbose) },
	}

	for envVar, setter := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			if err := setter(value); err != nil {
				return fmt.Errorf("invalid value for %s: %w", envVar, err)
			}
		}
	}

	return nil
}

// GetConfigPaths returns the list of configuration file paths that will be searched
func GetConfigPaths() []string {
	paths := make([]string, 0, len(ConfigPaths))
	for _, path := range ConfigPaths {
		paths = append(paths, expandPath(path))
	}
	return paths
}

// FindConfigFile finds the first existing config file in the search paths
func FindConfigFile() (string, bool) {
	for _, path := range ConfigPaths {
		expandedPath := expandPath(path)
		if fileExists(expandedPath) {
			return expandedPath, true
		}
	}
	return "", false
}

// validateConfigPath validates that a config path is safe to read
func validateConfigPath(path string) error {
	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path traversal not allowed")
	}

	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("config file must have .yaml or .yml extension")
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if strings.HasPrefix(absPath, "/etc/passwd") ||
		strings.HasPrefix(absPath, "/etc/shadow") ||
		strings.HasPrefix(absPath, "/proc/") ||
		strings.HasPrefix(absPath, "/sys/") {
		return fmt.Errorf("access to system files not allowed")
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// mergeConfigs merges source config into destination config.
// Only non-zero values from source overwrite destination; booleans can only
// be switched on from a file (switching off is done with env or flags).
func mergeConfigs(dst, src *Config) {
	if src.Version != "" {
		dst.Version = src.Version
	}

	mergeServerConfig(&dst.Server, &src.Server)
	mergeViewerConfig(&dst.Viewer, &src.Viewer)
	mergeOutputConfig(&dst.Output, &src.Output)
}

func mergeServerConfig(dst, src *ServerConfig) {
	if src.Addr != "" {
		dst.Addr = src.Addr
	}
	if src.Path != "" {
		dst.Path = src.Path
	}
	if src.CORS {
		dst.CORS = true
	}
	if src.Debounce != 0 {
		dst.Debounce = src.Debounce
	}
	if src.Heartbeat != 0 {
		dst.Heartbeat = src.Heartbeat
	}
	if src.Retry != 0 {
		dst.Retry = src.Retry
	}
	if src.ClientBuffer != 0 {
		dst.ClientBuffer = src.ClientBuffer
	}
	if src.ShutdownTimeout != 0 {
		dst.ShutdownTimeout = src.ShutdownTimeout
	}
}

func mergeViewerConfig(dst, src *ViewerConfig) {
	if src.URL != "" {
		dst.URL = src.URL
	}
	if src.ColorMode != "" {
		dst.ColorMode = src.ColorMode
	}
	if src.RetryDelay != 0 {
		dst.RetryDelay = src.RetryDelay
	}
	if src.LogFile != "" {
		dst.LogFile = src.LogFile
	}
}

func mergeOutputConfig(dst, src *OutputConfig) {
	if src.ColorMode != "" {
		dst.ColorMode = src.ColorMode
	}
	if src.Verbose {
		dst.Verbose = true
	}
}

// Type conversion helpers

func parseInt(s string, dst *int) error {
	val, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseBool(s string, dst *bool) error {
	val, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseDuration(s string, dst *time.Duration) error {
	val, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}
