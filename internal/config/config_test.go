package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmip/postbank/internal/dispatch"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DirName), cfg.DataDir)
	assert.Equal(t, dispatch.ModeAuto, cfg.Mode())
	assert.Equal(t, dispatch.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, dispatch.DefaultIPLookupURL, cfg.IPLookupURL)
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Empty(t, cfg.Path)
}

func TestLoadDefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, DirName), 0700))
	path := filepath.Join(home, DirName, FileName)
	require.NoError(t, os.WriteFile(path, []byte("transport: local\n"), 0600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, dispatch.ModeLocal, cfg.Mode())
	assert.Equal(t, path, cfg.Path)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
dataDir: /tmp/pb
transport: proxy
proxyUrl: http://127.0.0.1:8787
timeout: 10s
listen: 127.0.0.1:9000
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pb", cfg.DataDir)
	assert.Equal(t, dispatch.ModeProxy, cfg.Mode())
	assert.Equal(t, "http://127.0.0.1:8787", cfg.ProxyURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
	assert.Equal(t, dispatch.DefaultIPLookupURL, cfg.IPLookupURL)
	assert.Equal(t, path, cfg.Path)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, "\n"))
	require.NoError(t, err)
	assert.Equal(t, dispatch.DefaultTimeout, cfg.Timeout)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "transport: [unclosed\n")
	_, err := Load(path)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, path, cfgErr.Path)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "transport: local\ntimeout: 10s\n")
	t.Setenv(EnvTransport, "proxy")
	t.Setenv(EnvProxyURL, "http://localhost:1234")
	t.Setenv(EnvTimeout, "5")
	t.Setenv(EnvDataDir, "/data")
	t.Setenv(EnvLogLevel, "info")
	t.Setenv(EnvListen, ":0")
	t.Setenv(EnvIPLookupURL, "http://ip.test/")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dispatch.ModeProxy, cfg.Mode())
	assert.Equal(t, "http://localhost:1234", cfg.ProxyURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":0", cfg.Listen)
	assert.Equal(t, "http://ip.test/", cfg.IPLookupURL)
}

func TestApplyEnvTimeoutForms(t *testing.T) {
	tests := []struct {
		value   string
		want    time.Duration
		wantErr bool
	}{
		{"45", 45 * time.Second, false},
		{"1500ms", 1500 * time.Millisecond, false},
		{"2m", 2 * time.Minute, false},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := Default()
			err := cfg.ApplyEnv(func(k string) (string, bool) {
				if k == EnvTimeout {
					return tt.value, true
				}
				return "", false
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Timeout)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty transport means auto", func(c *Config) { c.Transport = "" }, true},
		{"unknown transport", func(c *Config) { c.Transport = "carrier-pigeon" }, false},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, false},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, false},
		{"proxy url without scheme", func(c *Config) { c.ProxyURL = "localhost:8787" }, false},
		{"proxy url ftp", func(c *Config) { c.ProxyURL = "ftp://host" }, false},
		{"proxy url ok", func(c *Config) { c.ProxyURL = "https://proxy.test" }, true},
		{"bad ip lookup url", func(c *Config) { c.IPLookupURL = "nope" }, false},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }, false},
		{"uppercase log level", func(c *Config) { c.Log.Level = "DEBUG" }, true},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				var cfgErr *ConfigError
				assert.ErrorAs(t, err, &cfgErr)
			}
		})
	}
}
