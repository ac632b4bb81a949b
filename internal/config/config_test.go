package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	t.Run("server defaults", func(t *testing.T) {
		assert.Equal(t, ":389", config.Server.Address)
		assert.Equal(t, 10000, config.Server.MaxConnections)
		assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, config.Server.WriteTimeout)
		assert.Equal(t, 4096, config.Server.ReadBufferSize)
	})

	t.Run("codec defaults", func(t *testing.T) {
		assert.Equal(t, 64, config.Codec.MaxDepth)
		assert.Equal(t, "16MB", config.Codec.MaxPDUSize)
		assert.True(t, config.Codec.Strict)
		assert.False(t, config.Codec.DisallowIndefinite)
	})

	t.Run("logging defaults", func(t *testing.T) {
		assert.Equal(t, "info", config.Logging.Level)
		assert.Equal(t, "json", config.Logging.Format)
		assert.Equal(t, "stdout", config.Logging.Output)
	})

	t.Run("defaults are valid", func(t *testing.T) {
		assert.Empty(t, ValidateConfig(config))
	})
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
server:
  address: "127.0.0.1:1389"
  readTimeout: 5s
directory:
  rootDN: "cn=admin,dc=example,dc=com"
  rootPassword: secret
codec:
  maxPDUSize: 64KB
  disallowIndefinite: true
logging:
  level: debug
metrics:
  enabled: true
`)

	config, err := ParseConfig(data)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:1389", config.Server.Address)
	assert.Equal(t, 5*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, config.Server.WriteTimeout, "unset keys keep defaults")
	assert.Equal(t, "cn=admin,dc=example,dc=com", config.Directory.RootDN)
	assert.Equal(t, "secret", config.Directory.RootPassword)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.True(t, config.Metrics.Enabled)
	assert.Equal(t, ":9389", config.Metrics.Address)

	opts := config.Codec.DecoderOptions()
	assert.Equal(t, 64, opts.MaxDepth)
	assert.Equal(t, 64*1024, opts.MaxLength)
	assert.True(t, opts.DisallowIndefinite)
}

func TestParseConfigEmpty(t *testing.T) {
	config, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "server:\n  port: 389\n"},
		{"bad duration", "server:\n  readTimeout: soon\n"},
		{"bad syntax", "server: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidYAML)
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("OBABER_TEST_PASSWORD", "hunter2")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set variable", "p: ${OBABER_TEST_PASSWORD}", "p: hunter2"},
		{"unset variable", "p: ${OBABER_TEST_UNSET}", "p: "},
		{"default used", "p: ${OBABER_TEST_UNSET:-fallback}", "p: fallback"},
		{"default ignored", "p: ${OBABER_TEST_PASSWORD:-fallback}", "p: hunter2"},
		{"no reference", "p: plain", "p: plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(substituteEnvVars([]byte(tt.input))))
		})
	}
}

func TestParseConfigEnvSubstitution(t *testing.T) {
	t.Setenv("OBABER_TEST_ADDR", "0.0.0.0:10389")

	config, err := ParseConfig([]byte("server:\n  address: \"${OBABER_TEST_ADDR}\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:10389", config.Server.Address)
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, err := LoadConfig("")
		assert.ErrorIs(t, err, ErrMissingConfigFile)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logging:\n  format: text\n"), 0o600))

		config, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "text", config.Logging.Format)
	})
}

func TestMarshalRoundTrip(t *testing.T) {
	config := DefaultConfig()
	config.Directory.RootDN = "cn=root"
	config.Directory.RootPassword = "pw"

	data, err := Marshal(config)
	require.NoError(t, err)

	parsed, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, config, parsed)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"empty address", func(c *Config) { c.Server.Address = "" }, "server.address"},
		{"address without port", func(c *Config) { c.Server.Address = "localhost" }, "server.address"},
		{"negative connections", func(c *Config) { c.Server.MaxConnections = -1 }, "server.maxConnections"},
		{"negative read timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }, "server.readTimeout"},
		{"negative write timeout", func(c *Config) { c.Server.WriteTimeout = -time.Second }, "server.writeTimeout"},
		{"zero buffer", func(c *Config) { c.Server.ReadBufferSize = 0 }, "server.readBufferSize"},
		{"bad base DN", func(c *Config) { c.Directory.BaseDN = "example" }, "directory.baseDN"},
		{"bad root DN", func(c *Config) { c.Directory.RootDN = "admin"; c.Directory.RootPassword = "x" }, "directory.rootDN"},
		{"root DN without password", func(c *Config) { c.Directory.RootDN = "cn=admin" }, "directory.rootPassword"},
		{"negative depth", func(c *Config) { c.Codec.MaxDepth = -1 }, "codec.maxDepth"},
		{"bad PDU size", func(c *Config) { c.Codec.MaxPDUSize = "lots" }, "codec.maxPDUSize"},
		{"huge PDU size", func(c *Config) { c.Codec.MaxPDUSize = "8GB" }, "codec.maxPDUSize"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"relative output", func(c *Config) { c.Logging.Output = "obaber.log" }, "logging.output"},
		{"bad metrics address", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Address = "nope" }, "metrics.address"},
		{"bad metrics path", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Path = "metrics" }, "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)

			errs := ValidateConfig(config)
			require.Len(t, errs, 1)

			var ve ValidationError
			require.True(t, errors.As(errs[0], &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestValidateConfigDisabledMetrics(t *testing.T) {
	config := DefaultConfig()
	config.Metrics.Address = "nope"
	assert.Empty(t, ValidateConfig(config))
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"512", 512, false},
		{"10B", 10, false},
		{"4kb", 4096, false},
		{"16MB", 16 * 1024 * 1024, false},
		{"1GB", 1024 * 1024 * 1024, false},
		{"12XB", 0, true},
		{"MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidationErrorString(t *testing.T) {
	err := ValidationError{Field: "server.address", Message: "listen address is required"}
	assert.Equal(t, "server.address: listen address is required", err.Error())
}

func TestConfigWatcher(t *testing.T) {
	t.Run("requires path and callback", func(t *testing.T) {
		_, err := NewConfigWatcher(&WatcherConfig{OnChange: func(_, _ *Config) {}})
		assert.ErrorIs(t, err, ErrMissingConfigFile)

		_, err = NewConfigWatcher(&WatcherConfig{FilePath: "config.yaml"})
		assert.ErrorIs(t, err, ErrMissingOnChange)
	})

	t.Run("reloads valid changes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600))

		changes := make(chan *Config, 4)
		w, err := NewConfigWatcher(&WatcherConfig{
			FilePath: path,
			Debounce: 20 * time.Millisecond,
			OnChange: func(_, newCfg *Config) { changes <- newCfg },
		})
		require.NoError(t, err)
		assert.Equal(t, "info", w.GetCurrentConfig().Logging.Level)

		require.NoError(t, w.Start())
		defer w.Stop()
		assert.True(t, w.IsRunning())

		require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600))

		select {
		case cfg := <-changes:
			assert.Equal(t, "debug", cfg.Logging.Level)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for reload")
		}
		assert.Equal(t, "debug", w.GetCurrentConfig().Logging.Level)
	})

	t.Run("ignores invalid changes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600))

		var calls atomic.Int32
		w, err := NewConfigWatcher(&WatcherConfig{
			FilePath: path,
			Debounce: 20 * time.Millisecond,
			OnChange: func(_, _ *Config) { calls.Add(1) },
		})
		require.NoError(t, err)
		require.NoError(t, w.Start())

		require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600))
		time.Sleep(300 * time.Millisecond)
		w.Stop()

		assert.False(t, w.IsRunning())
		assert.Zero(t, calls.Load())
		assert.Equal(t, "info", w.GetCurrentConfig().Logging.Level)
	})
}
