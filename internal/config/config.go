package config

import (
	"time"

	"github.com/KilimcininKorOglu/obaber/internal/ber"
)

// Config holds the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Directory DirectoryConfig `yaml:"directory"`
	Codec     CodecConfig     `yaml:"codec"`
	Logging   LogConfig       `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Address        string        `yaml:"address"`
	MaxConnections int           `yaml:"maxConnections"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	ReadBufferSize int           `yaml:"readBufferSize"`
}

// DirectoryConfig holds the bind identity the server accepts.
type DirectoryConfig struct {
	BaseDN       string `yaml:"baseDN"`
	RootDN       string `yaml:"rootDN"`
	RootPassword string `yaml:"rootPassword"`
}

// CodecConfig bounds what the incremental decoder accepts from a peer.
type CodecConfig struct {
	// MaxDepth is the deepest TLV nesting accepted. Zero is unlimited.
	MaxDepth int `yaml:"maxDepth"`
	// MaxPDUSize limits any single declared length, e.g. "1MB". Empty is unlimited.
	MaxPDUSize         string `yaml:"maxPDUSize"`
	DisallowIndefinite bool   `yaml:"disallowIndefinite"`
	// Strict makes rule failures terminate the connection. Without it a
	// message whose rules fail is dropped without any response.
	Strict bool `yaml:"strict"`
}

// DecoderOptions converts the codec section into decoder limits.
// MaxPDUSize is expected to have passed validation.
func (c CodecConfig) DecoderOptions() ber.DecoderOptions {
	size, _ := parseSize(c.MaxPDUSize)
	return ber.DecoderOptions{
		MaxDepth:           c.MaxDepth,
		MaxLength:          int(size),
		DisallowIndefinite: c.DisallowIndefinite,
	}
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}
