package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for a recipewallet session.
// Values are populated from .recipewallet.yaml, RECIPEWALLET_* env vars,
// and CLI flags.
type Config struct {
	ServiceURL    string        `mapstructure:"service_url"`
	CloudURL      string        `mapstructure:"cloud_url"`
	UserID        string        `mapstructure:"user_id"`
	DBPath        string        `mapstructure:"db_path"`
	PrefsPath     string        `mapstructure:"prefs_path"`
	ImportTimeout time.Duration `mapstructure:"import_timeout"`
	Verbose       bool          `mapstructure:"verbose"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() Config {
	viper.SetDefault("service_url", "https://api.recipewallet.app")
	viper.SetDefault("cloud_url", "https://sync.recipewallet.app")
	viper.SetDefault("user_id", "")
	viper.SetDefault("db_path", defaultDBPath())
	viper.SetDefault("prefs_path", "")
	viper.SetDefault("import_timeout", 90*time.Second)
	viper.SetDefault("verbose", false)

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "recipewallet.db"
	}
	return filepath.Join(home, ".local", "share", "recipewallet", "wallet.db")
}
