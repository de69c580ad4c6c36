// Package config loads catalogctl settings from defaults, an optional YAML
// file, a .env file and CATALOG_* environment variables, in rising priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "CATALOG"
	DefaultAPIURL  = "https://api.escuelajs.co/api/v1"
	configFileName = "catalogctl"
	appDirName     = ".catalogctl"
)

// Token store backends
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config is the resolved client configuration.
type Config struct {
	APIURL       string        `mapstructure:"api_url" validate:"required,url"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Env          string        `mapstructure:"env" validate:"required,oneof=dev prod test"`
	LogLevel     string        `mapstructure:"log_level" validate:"required,oneof=trace debug info warn error disabled"`
	TokenStore   string        `mapstructure:"token_store" validate:"required,oneof=file redis memory"`
	TokenDir     string        `mapstructure:"token_dir" validate:"required_if=TokenStore file"`
	RedisURL     string        `mapstructure:"redis_url" validate:"required_if=TokenStore redis"`
	ListCacheTTL time.Duration `mapstructure:"list_cache_ttl" validate:"gt=0"`
	ItemCacheTTL time.Duration `mapstructure:"item_cache_ttl" validate:"gt=0"`
}

// Load resolves the configuration. configFile may be empty, in which case
// catalogctl.yaml is looked up in the working directory and ~/.catalogctl.
// A missing default file or .env is not an error.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	appDir := defaultAppDir()

	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("env", "prod")
	v.SetDefault("log_level", "warn")
	v.SetDefault("token_store", StoreFile)
	v.SetDefault("token_dir", appDir)
	v.SetDefault("redis_url", "")
	v.SetDefault("list_cache_ttl", 10*time.Second)
	v.SetDefault("item_cache_ttl", 5*time.Minute)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(appDir)

		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints. Call it again after overriding fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func defaultAppDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return appDirName
	}
	return filepath.Join(home, appDirName)
}
