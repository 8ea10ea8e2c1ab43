package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
	envPrefix         = "FOLIO_"
)

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FOLIO_SERVER_HTTP_PORT, FOLIO_STORAGE_PATH, etc.)
//  2. YAML config file (~/.config/folio/config.yaml)
//  3. Hardcoded defaults
//
// The config file must live in ~/.config/folio/ or /etc/folio/, must have
// 0600 or 0400 permissions, and must not exceed 1MB.
//
// Environment variables drop the FOLIO_ prefix and split on the first
// underscore:
//
//	FOLIO_SERVER_HTTP_PORT -> server.http_port
//	FOLIO_REPLICATION_CONNECT_TIMEOUT -> replication.connect_timeout
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "folio", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Validate through the open descriptor to avoid a TOCTOU race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Start from defaults so that absent keys keep them.
	cfg := Load()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envKey maps FOLIO_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// EnsureConfigDir creates the folio config directory with 0700 permissions.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "folio")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}

	return nil
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Paths that do not exist yet are validated as given.
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "folio"),
		"/etc/folio",
	}

	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir) {
			return nil
		}
	}

	return fmt.Errorf("config file must be in ~/.config/folio/ or /etc/folio/")
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}
