package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type WarehouseConfig struct {
	BatchSize        int           `mapstructure:"batch_size"`
	DeleteTimeout    time.Duration `mapstructure:"delete_timeout"`
	InsertTimeout    time.Duration `mapstructure:"insert_timeout"`
	DiscoveryTimeout time.Duration `mapstructure:"discovery_timeout"`
}

type Config struct {
	DatabaseURL   string          `mapstructure:"database_url"`
	ServerPort    string          `mapstructure:"server_port"`
	JWTSecret     string          `mapstructure:"jwt_secret"`
	EncryptionKey string          `mapstructure:"encryption_key"`
	Warehouse     WarehouseConfig `mapstructure:"warehouse"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}

	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}
	if config.EncryptionKey == "" {
		log.Fatal("Encryption key must be set in the config file")
	}

	if config.Warehouse.BatchSize == 0 {
		config.Warehouse.BatchSize = 1000
	}
	if config.Warehouse.DeleteTimeout == 0 {
		config.Warehouse.DeleteTimeout = 30 * time.Second
	}
	if config.Warehouse.InsertTimeout == 0 {
		config.Warehouse.InsertTimeout = 60 * time.Second
	}
	if config.Warehouse.DiscoveryTimeout == 0 {
		config.Warehouse.DiscoveryTimeout = 10 * time.Second
	}

	return &config
}
