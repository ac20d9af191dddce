package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	// Base URL clients reach the server on, used to build join links.
	PublicURL string `mapstructure:"public_url"`
	// Optional path to a prompt corpus file; empty means the embedded corpus.
	PromptsPath string `mapstructure:"prompts_path"`
}

var cfg *AppConfig

func GetConfig() *AppConfig {
	if cfg == nil {
		cfg = InitConfig()
	}

	return cfg
}

func InitConfig() *AppConfig {
	v := viper.New()

	v.SetConfigFile("app_config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("public_url", "http://localhost:8080")
	v.SetDefault("prompts_path", "")

	v.SetEnvPrefix("IMPOSTER")
	v.AutomaticEnv()

	// The config file is optional; env vars and defaults cover a bare deploy.
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("no config file loaded, using defaults: %v\n", err)
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("failed to parse config: %w", err))
	}

	return &config
}
