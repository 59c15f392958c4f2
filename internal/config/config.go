// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bhardwajvicky/DevView/internal/model"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	DBURL    string `mapstructure:"DB_URL"`

	BitbucketAPIBaseURL     string `mapstructure:"BITBUCKET_API_BASE_URL"`
	BitbucketTokenURL       string `mapstructure:"BITBUCKET_TOKEN_URL"`
	BitbucketConsumerKey    string `mapstructure:"BITBUCKET_CONSUMER_KEY"`
	BitbucketConsumerSecret string `mapstructure:"BITBUCKET_CONSUMER_SECRET"`
	Workspace               string `mapstructure:"BITBUCKET_WORKSPACE"`

	SyncMode          string        `mapstructure:"SYNC_MODE"`
	BatchDays         int           `mapstructure:"SYNC_BATCH_DAYS"`
	DeltaDays         int           `mapstructure:"SYNC_DELTA_DAYS"`
	OverwriteExisting bool          `mapstructure:"SYNC_OVERWRITE_EXISTING"`
	SyncInterval      time.Duration `mapstructure:"SYNC_INTERVAL"`

	SyncUsers        bool `mapstructure:"SYNC_USERS"`
	SyncRepositories bool `mapstructure:"SYNC_REPOSITORIES"`
	SyncCommits      bool `mapstructure:"SYNC_COMMITS"`
	SyncPullRequests bool `mapstructure:"SYNC_PULL_REQUESTS"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("BITBUCKET_API_BASE_URL", "https://api.bitbucket.org/2.0/")
	viper.SetDefault("BITBUCKET_TOKEN_URL", "https://bitbucket.org/site/oauth2/access_token")
	viper.SetDefault("SYNC_MODE", string(model.ModeDelta))
	viper.SetDefault("SYNC_BATCH_DAYS", 10)
	viper.SetDefault("SYNC_DELTA_DAYS", 10)
	viper.SetDefault("SYNC_OVERWRITE_EXISTING", false)
	viper.SetDefault("SYNC_INTERVAL", "1h")
	viper.SetDefault("SYNC_USERS", true)
	viper.SetDefault("SYNC_REPOSITORIES", true)
	viper.SetDefault("SYNC_COMMITS", true)
	viper.SetDefault("SYNC_PULL_REQUESTS", true)

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables. Keys without defaults need an explicit
	// bind or Unmarshal will not see them from the environment.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range []string{"DB_URL", "BITBUCKET_CONSUMER_KEY", "BITBUCKET_CONSUMER_SECRET", "BITBUCKET_WORKSPACE"} {
		_ = viper.BindEnv(key)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.BitbucketConsumerKey == "" || cfg.BitbucketConsumerSecret == "" {
		return nil, errors.New("BITBUCKET_CONSUMER_KEY and BITBUCKET_CONSUMER_SECRET are required configuration fields")
	}
	if cfg.Workspace == "" {
		return nil, errors.New("BITBUCKET_WORKSPACE is a required configuration field")
	}
	if cfg.SyncMode != string(model.ModeFull) && cfg.SyncMode != string(model.ModeDelta) {
		return nil, errors.New("SYNC_MODE must be either 'full' or 'delta'")
	}
	if cfg.BatchDays <= 0 || cfg.DeltaDays <= 0 {
		return nil, errors.New("SYNC_BATCH_DAYS and SYNC_DELTA_DAYS must be positive")
	}

	return &cfg, nil
}
