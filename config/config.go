package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Queue    QueueConfig    `mapstructure:"queue"`
	SendGrid SendGridConfig `mapstructure:"sendgrid"`
	Firebase FirebaseConfig `mapstructure:"firebase"`
}

type ServerConfig struct {
	Port                string `mapstructure:"port"`
	Env                 string `mapstructure:"env"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`

	// Derived
	ReadTimeout  time.Duration `mapstructure:"-"`
	WriteTimeout time.Duration `mapstructure:"-"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type QueueConfig struct {
	// Concurrency bounds how many delivery jobs run at once.
	Concurrency int `mapstructure:"concurrency"`
}

type SendGridConfig struct {
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

type FirebaseConfig struct {
	ServiceAccountPath string `mapstructure:"service_account_path"`
}

// Load reads config.yaml from the working directory when present and applies
// environment overrides (SERVER_PORT, DATABASE_DSN, SENDGRID_API_KEY,
// FIREBASE_SERVICE_ACCOUNT_PATH, ...). Missing provider credentials are not
// an error; the providers degrade to skipped sends.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", "8099")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout_seconds", 10)
	v.SetDefault("server.write_timeout_seconds", 10)
	v.SetDefault("database.dsn", "hively:hively@tcp(localhost:3306)/hively?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("sendgrid.api_key", "")
	v.SetDefault("sendgrid.from_email", "notifications@hively.local")
	v.SetDefault("sendgrid.from_name", "Hively")
	v.SetDefault("firebase.service_account_path", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Server.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	cfg.Server.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	if cfg.Queue.Concurrency <= 0 {
		cfg.Queue.Concurrency = 2
	}
	return &cfg, nil
}
