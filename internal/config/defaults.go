package config

import "time"

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":389",
			MaxConnections: 10000,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			ReadBufferSize: 4096,
		},
		Directory: DirectoryConfig{
			BaseDN:       "",
			RootDN:       "",
			RootPassword: "",
		},
		Codec: CodecConfig{
			MaxDepth:   64,
			MaxPDUSize: "16MB",
			Strict:     true,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9389",
			Path:    "/metrics",
		},
	}
}
