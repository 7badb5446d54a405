// Package config provides application configuration through environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"

	"github.com/jmcleod/ironseal/internal/util"
	"github.com/jmcleod/ironseal/keystore"
)

// AppName names the per-user configuration directory.
const AppName = "ironseal"

const defaultDataFile = "tasks.db"

// Config holds all application configuration.
type Config struct {
	// ConfigDir is the directory holding the key file and local data.
	ConfigDir string
	// KeyFileName is the name of the key file inside ConfigDir.
	KeyFileName string
	// KeyPassphrase, when set, seals the key file with an Argon2id-derived key.
	KeyPassphrase string
	// KDFProfile selects Argon2id parameters for a sealed key file
	// ("interactive", "moderate", "sensitive").
	KDFProfile string

	// DataFile is the bbolt database holding task records.
	DataFile string

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string
	// LogFormat is "text" or "json".
	LogFormat string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	configDir := env.GetString("IRONSEAL_CONFIG_DIR", defaultConfigDir())
	return &Config{
		ConfigDir:     configDir,
		KeyFileName:   env.GetString("IRONSEAL_KEY_FILE", keystore.DefaultKeyFileName),
		KeyPassphrase: env.GetString("IRONSEAL_KEY_PASSPHRASE", ""),
		KDFProfile:    env.GetString("IRONSEAL_KDF_PROFILE", util.KDFProfileModerate),

		DataFile: env.GetString("IRONSEAL_DATA_FILE", filepath.Join(configDir, defaultDataFile)),

		LogLevel:  env.GetString("IRONSEAL_LOG_LEVEL", "warn"),
		LogFormat: env.GetString("IRONSEAL_LOG_FORMAT", "text"),
	}
}

// Validate reports configuration values that cannot be used.
func (c *Config) Validate() error {
	if c.ConfigDir == "" {
		return fmt.Errorf("config directory must not be empty")
	}
	if c.KeyFileName == "" || filepath.Base(c.KeyFileName) != c.KeyFileName {
		return fmt.Errorf("key file name %q must be a plain file name", c.KeyFileName)
	}
	if _, err := util.Argon2idProfile(c.KDFProfile); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// SetConfigDir moves ConfigDir. DataFile follows it when it still points
// at the default location.
func (c *Config) SetConfigDir(dir string) {
	if c.DataFile == filepath.Join(c.ConfigDir, defaultDataFile) {
		c.DataFile = filepath.Join(dir, defaultDataFile)
	}
	c.ConfigDir = dir
}

// KeyStorage returns the key store described by c.
func (c *Config) KeyStorage() (*keystore.FileStorage, error) {
	opts := []keystore.FileOption{keystore.WithFileName(c.KeyFileName)}
	if c.KeyPassphrase != "" {
		params, err := util.Argon2idProfile(c.KDFProfile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, keystore.WithPassphrase(c.KeyPassphrase), keystore.WithKDFParams(params))
	}
	return keystore.NewFileStorage(c.ConfigDir, opts...), nil
}

func defaultConfigDir() string {
	dir, err := keystore.DefaultConfigDir(AppName)
	if err != nil {
		return "." + AppName
	}
	return dir
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			// godotenv.Load never overrides variables already set
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
