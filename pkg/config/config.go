package config

import "time"

// Config is the full application configuration. Defaults are carried on the
// struct values and can be overridden through AIRTIDE_* environment variables
// (AIRTIDE_DATABASE_HOST, AIRTIDE_SERVER_PORT, ...).
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Limits   LimitsConfig   `koanf:"limits"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"             validate:"gte=1,lte=65535"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// DSN wins over the individual fields when set.
	DSN         string `koanf:"dsn"`
	Host        string `koanf:"host"`
	Port        string `koanf:"port"`
	User        string `koanf:"user"`
	Password    string `koanf:"password"`
	Name        string `koanf:"name"`
	SSLMode     string `koanf:"ssl_mode"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

type CatalogConfig struct {
	// Dir holds the workflow definition YAML files.
	Dir string `koanf:"dir" validate:"required"`
}

type LimitsConfig struct {
	DefaultPageLimit int `koanf:"default_page_limit" validate:"gte=1"`
	MaxPageLimit     int `koanf:"max_page_limit"     validate:"gte=1"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

// Default returns the configuration defaults applied before any overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "airtide",
			Name:    "airtide",
			SSLMode: "disable",
		},
		Catalog: CatalogConfig{
			Dir: "./workflows",
		},
		Limits: LimitsConfig{
			DefaultPageLimit: 100,
			MaxPageLimit:     1000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
