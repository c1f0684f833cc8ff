package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Registry RegistryConfig
	Transfer TransferConfig
	Seed     SeedConfig
	Log      LogConfig
}

// RegistryConfig describes the working registry that diff, load, push and
// pull operate against.
type RegistryConfig struct {
	URL                 string
	FlattenRepositories bool
}

// TransferConfig holds staging and output directories for the archive
// pipeline.
type TransferConfig struct {
	WorkDir   string
	OutputDir string
}

// SeedConfig describes the upstream registry the seeder pulls from.
type SeedConfig struct {
	SourceURL   string
	AuthURL     string
	AuthService string
	Workers     int
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("DDIFF")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("registry.url", "http://localhost:5000")
	v.SetDefault("registry.flatten_repositories", false)

	v.SetDefault("transfer.work_dir", ".")
	v.SetDefault("transfer.output_dir", ".")

	v.SetDefault("seed.source_url", "https://registry-1.docker.io")
	v.SetDefault("seed.auth_url", "https://auth.docker.io/token")
	v.SetDefault("seed.auth_service", "registry.docker.io")
	v.SetDefault("seed.workers", 4)

	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults
	}

	var config Config

	config.Registry.URL = v.GetString("registry.url")
	config.Registry.FlattenRepositories = v.GetBool("registry.flatten_repositories")

	config.Transfer.WorkDir = v.GetString("transfer.work_dir")
	config.Transfer.OutputDir = v.GetString("transfer.output_dir")

	config.Seed.SourceURL = v.GetString("seed.source_url")
	config.Seed.AuthURL = v.GetString("seed.auth_url")
	config.Seed.AuthService = v.GetString("seed.auth_service")
	config.Seed.Workers = v.GetInt("seed.workers")

	config.Log.Level = v.GetString("log.level")

	return &config, nil
}
