package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds the complete application configuration
type Config struct {
	Version string       `yaml:"version" json:"version"`
	Server  ServerConfig `yaml:"server" json:"server"`
	Viewer  ViewerConfig `yaml:"viewer" json:"viewer"`
	Output  OutputConfig `yaml:"output" json:"output"`
}

// ServerConfig configures the HTTP side: the /raw endpoint, the /events
// stream and the file watcher feeding it.
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`                         // listen address
	Path            string        `yaml:"path" json:"path"`                         // nginx.conf to serve
	CORS            bool          `yaml:"cors" json:"cors"`                         // allow CORS on /raw
	Debounce        time.Duration `yaml:"debounce" json:"debounce"`                 // quiet period before a reload is pushed
	Heartbeat       time.Duration `yaml:"heartbeat" json:"heartbeat"`               // SSE comment ping interval
	Retry           time.Duration `yaml:"retry" json:"retry"`                       // reconnect delay advertised to clients, 0 leaves theirs
	ClientBuffer    int           `yaml:"client_buffer" json:"client_buffer"`       // queued signals per SSE client
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"` // graceful shutdown budget
}

// ViewerConfig configures the terminal viewer.
type ViewerConfig struct {
	URL        string        `yaml:"url" json:"url"`                 // base URL of a running server
	ColorMode  string        `yaml:"color_mode" json:"color_mode"`   // ambient color attribute: dark|light|"" (unset)
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"` // stream reconnect delay
	LogFile    string        `yaml:"log_file" json:"log_file"`       // where logs go while the TUI owns the terminal
}

// OutputConfig configures output formatting and display
type OutputConfig struct {
	ColorMode string `yaml:"color_mode" json:"color_mode"` // auto|always|never
	Verbose   bool   `yaml:"verbose" json:"verbose"`       // default verbosity
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Server: ServerConfig{
			Addr:            ":8080",
			Path:            "/etc/nginx/nginx.conf",
			CORS:            false,
			Debounce:        200 * time.Millisecond,
			Heartbeat:       30 * time.Second,
			ClientBuffer:    8,
			ShutdownTimeout: 5 * time.Second,
		},
		Viewer: ViewerConfig{
			URL:        "http://localhost:8080",
			ColorMode:  "",
			RetryDelay: 3 * time.Second,
			LogFile:    "",
		},
		Output: OutputConfig{
			ColorMode: "auto",
			Verbose:   false,
		},
	}
}

// Validate validates every section of the configuration
func (c *Config) Validate() error {
	if err := c.ValidateServer(); err != nil {
		return err
	}
	if err := c.ValidateViewer(); err != nil {
		return err
	}
	if err := c.ValidateOutput(); err != nil {
		return err
	}
	return nil
}

// ValidateServer checks the server section only.
func (c *Config) ValidateServer() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Server.Path == "" {
		return fmt.Errorf("server.path must not be empty")
	}
	if c.Server.Debounce < 0 {
		return fmt.Errorf("server.debounce must be non-negative")
	}
	if c.Server.Heartbeat <= 0 {
		return fmt.Errorf("server.heartbeat must be greater than 0")
	}
	if c.Server.Retry < 0 {
		return fmt.Errorf("server.retry must be non-negative")
	}
	if c.Server.ClientBuffer < 1 {
		return fmt.Errorf("server.client_buffer must be greater than 0")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must be non-negative")
	}
	return nil
}

// ValidateViewer checks the viewer section only.
func (c *Config) ValidateViewer() error {
	u, err := url.Parse(c.Viewer.URL)
	if err != nil {
		return fmt.Errorf("invalid viewer.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid viewer.url: %q (scheme must be http or https)", c.Viewer.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid viewer.url: %q (missing host)", c.Viewer.URL)
	}
	switch c.Viewer.ColorMode {
	case "", "dark", "light":
	default:
		return fmt.Errorf("invalid viewer color mode: %s (must be one of: dark, light, or empty)", c.Viewer.ColorMode)
	}
	if c.Viewer.RetryDelay <= 0 {
		return fmt.Errorf("viewer.retry_delay must be greater than 0")
	}
	return nil
}

// ValidateOutput checks the output section only.
func (c *Config) ValidateOutput() error {
	if c.Output.ColorMode != "" {
		validColorModes := map[string]bool{
			"auto":   true,
			"always": true,
			"never":  true,
		}
		if !validColorModes[c.Output.ColorMode] {
			return fmt.Errorf("invalid color mode: %s (must be one of: auto, always, never)", c.Output.ColorMode)
		}
	}
	return nil
}
