// Package config loads postbank settings.
//
// Precedence: flags > environment > config file > defaults. The config
// file is YAML and optional; a missing file yields the defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/webmip/postbank/internal/dispatch"
)

const (
	// DirName is the per-user directory holding config and data.
	DirName = ".postbank"
	// FileName is the config file inside DirName.
	FileName = "config.yaml"
)

// Environment variable names
const (
	EnvDataDir     = "POSTBANK_DATA_DIR"
	EnvTransport   = "POSTBANK_TRANSPORT"
	EnvProxyURL    = "POSTBANK_PROXY_URL"
	EnvTimeout     = "POSTBANK_TIMEOUT"
	EnvIPLookupURL = "POSTBANK_IP_LOOKUP_URL"
	EnvLogLevel    = "POSTBANK_LOG_LEVEL"
	EnvListen      = "POSTBANK_LISTEN"
)

// DefaultListen is where `serve` binds when nothing else is configured.
const DefaultListen = "127.0.0.1:8787"

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the resolved postbank configuration.
type Config struct {
	DataDir     string        `yaml:"dataDir"`
	Transport   string        `yaml:"transport"`
	ProxyURL    string        `yaml:"proxyUrl"`
	Timeout     time.Duration `yaml:"timeout"`
	IPLookupURL string        `yaml:"ipLookupUrl"`
	Listen      string        `yaml:"listen"`
	Log         LogConfig     `yaml:"log"`

	// Path is the file the config was read from, empty when none was.
	Path string `yaml:"-"`
}

// ConfigError reports an unreadable file or an invalid value.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "config: " + e.Message
	}
	return e.Path + ": " + e.Message
}

// Dir returns ~/.postbank.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := DirName
	if dir, err := Dir(); err == nil {
		dataDir = dir
	}
	return &Config{
		DataDir:     dataDir,
		Transport:   string(dispatch.ModeAuto),
		Timeout:     dispatch.DefaultTimeout,
		IPLookupURL: dispatch.DefaultIPLookupURL,
		Listen:      DefaultListen,
		Log:         LogConfig{Level: "warn", Format: "text"},
	}
}

// Load reads path (or the default location when path is empty) over the
// defaults, applies environment overrides and validates the result. An
// explicit path that does not exist is an error; the default one is not.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		dir, err := Dir()
		if err == nil {
			path = filepath.Join(dir, FileName)
		}
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if !explicit && errors.Is(err, os.ErrNotExist) {
				path = ""
			} else {
				return nil, err
			}
		}
	}
	cfg.Path = path

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return err
		}
		return &ConfigError{Path: path, Message: err.Error()}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return &ConfigError{Path: path, Message: err.Error()}
	}
	return nil
}

// ApplyEnv overrides fields from the environment. Only variables that are
// set are applied.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		c.DataDir = v
	}
	if v, ok := lookup(EnvTransport); ok && v != "" {
		c.Transport = v
	}
	if v, ok := lookup(EnvProxyURL); ok {
		c.ProxyURL = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return &ConfigError{Message: fmt.Sprintf("%s: %v", EnvTimeout, err)}
		}
		c.Timeout = d
	}
	if v, ok := lookup(EnvIPLookupURL); ok && v != "" {
		c.IPLookupURL = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvListen); ok && v != "" {
		c.Listen = v
	}
	return nil
}

// parseTimeout accepts a Go duration or a bare number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return &ConfigError{Path: c.Path, Message: "dataDir must not be empty"}
	}
	if _, ok := dispatch.ParseMode(c.Transport); !ok {
		return &ConfigError{Path: c.Path, Message: fmt.Sprintf("unknown transport %q (want auto, local or proxy)", c.Transport)}
	}
	if c.Timeout <= 0 {
		return &ConfigError{Path: c.Path, Message: "timeout must be positive"}
	}
	if c.ProxyURL != "" {
		if err := checkHTTPURL(c.ProxyURL); err != nil {
			return &ConfigError{Path: c.Path, Message: "proxyUrl: " + err.Error()}
		}
	}
	if c.IPLookupURL != "" {
		if err := checkHTTPURL(c.IPLookupURL); err != nil {
			return &ConfigError{Path: c.Path, Message: "ipLookupUrl: " + err.Error()}
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return &ConfigError{Path: c.Path, Message: fmt.Sprintf("unknown log level %q", c.Log.Level)}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return &ConfigError{Path: c.Path, Message: fmt.Sprintf("unknown log format %q", c.Log.Format)}
	}
	return nil
}

// Mode returns the parsed transport mode. Call after Validate.
func (c *Config) Mode() dispatch.Mode {
	m, _ := dispatch.ParseMode(c.Transport)
	return m
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
