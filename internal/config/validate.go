package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxReadBufferSize caps server.readBufferSize.
const maxReadBufferSize = 1 << 20

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig validates the configuration and returns a list of validation errors.
// An empty slice indicates the configuration is valid.
func ValidateConfig(config *Config) []error {
	var errs []error

	errs = append(errs, validateServerConfig(&config.Server)...)
	errs = append(errs, validateDirectoryConfig(&config.Directory)...)
	errs = append(errs, validateCodecConfig(&config.Codec)...)
	errs = append(errs, validateLogConfig(&config.Logging)...)
	errs = append(errs, validateMetricsConfig(&config.Metrics)...)

	return errs
}

func validateServerConfig(config *ServerConfig) []error {
	var errs []error

	if config.Address == "" {
		errs = append(errs, ValidationError{
			Field:   "server.address",
			Message: "listen address is required",
		})
	} else if err := validateAddress(config.Address); err != nil {
		errs = append(errs, ValidationError{
			Field:   "server.address",
			Message: err.Error(),
		})
	}

	if config.MaxConnections < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.maxConnections",
			Message: "must be non-negative",
		})
	}

	if config.ReadTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.readTimeout",
			Message: "must be non-negative",
		})
	}

	if config.WriteTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.writeTimeout",
			Message: "must be non-negative",
		})
	}

	if config.ReadBufferSize <= 0 || config.ReadBufferSize > maxReadBufferSize {
		errs = append(errs, ValidationError{
			Field:   "server.readBufferSize",
			Message: fmt.Sprintf("must be between 1 and %d", maxReadBufferSize),
		})
	}

	return errs
}

func validateDirectoryConfig(config *DirectoryConfig) []error {
	var errs []error

	if config.BaseDN != "" {
		if err := validateDN(config.BaseDN); err != nil {
			errs = append(errs, ValidationError{
				Field:   "directory.baseDN",
				Message: err.Error(),
			})
		}
	}

	if config.RootDN != "" {
		if err := validateDN(config.RootDN); err != nil {
			errs = append(errs, ValidationError{
				Field:   "directory.rootDN",
				Message: err.Error(),
			})
		}
		if config.RootPassword == "" {
			errs = append(errs, ValidationError{
				Field:   "directory.rootPassword",
				Message: "required when rootDN is set",
			})
		}
	}

	return errs
}

func validateCodecConfig(config *CodecConfig) []error {
	var errs []error

	if config.MaxDepth < 0 {
		errs = append(errs, ValidationError{
			Field:   "codec.maxDepth",
			Message: "must be non-negative",
		})
	}

	if size, err := parseSize(config.MaxPDUSize); err != nil {
		errs = append(errs, ValidationError{
			Field:   "codec.maxPDUSize",
			Message: err.Error(),
		})
	} else if size < 0 || size > int64(^uint32(0)) {
		errs = append(errs, ValidationError{
			Field:   "codec.maxPDUSize",
			Message: "must be between 0 and 4GB",
		})
	}

	return errs
}

func validateLogConfig(config *LogConfig) []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if config.Level != "" && !validLevels[strings.ToLower(config.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be debug, info, warn, or error",
		})
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if config.Format != "" && !validFormats[strings.ToLower(config.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be text or json",
		})
	}

	if config.Output != "" && config.Output != "stdout" && config.Output != "stderr" {
		dir := filepath.Dir(config.Output)
		if !filepath.IsAbs(config.Output) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: "must be stdout, stderr, or an absolute file path",
			})
		} else if _, err := os.Stat(dir); os.IsNotExist(err) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: fmt.Sprintf("directory %s does not exist", dir),
			})
		}
	}

	return errs
}

func validateMetricsConfig(config *MetricsConfig) []error {
	if !config.Enabled {
		return nil
	}

	var errs []error
	if err := validateAddress(config.Address); err != nil {
		errs = append(errs, ValidationError{
			Field:   "metrics.address",
			Message: err.Error(),
		})
	}
	if !strings.HasPrefix(config.Path, "/") {
		errs = append(errs, ValidationError{
			Field:   "metrics.path",
			Message: "must start with /",
		})
	}
	return errs
}

// validateAddress validates a network address in host:port format.
func validateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %v", err)
	}
	if port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}

// validateDN validates a distinguished name format.
func validateDN(dn string) error {
	if dn == "" {
		return nil
	}

	// every non-empty RDN needs an attribute type
	for _, part := range strings.Split(dn, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "=") {
			return fmt.Errorf("invalid RDN format: %s", part)
		}
	}

	return nil
}

// parseSize parses a size string like "256KB" or "16MB".
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, nil
	}

	// longest suffixes first so "MB" is not read as "B"
	multipliers := []struct {
		suffix string
		mult   int64
	}{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	for _, m := range multipliers {
		if strings.HasSuffix(s, m.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, m.suffix))
			num, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size format: %s", s)
			}
			return num * m.mult, nil
		}
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size format: %s", s)
	}
	return num, nil
}
