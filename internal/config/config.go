package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config application configuration
type Config struct {
	App         AppConfig         `yaml:"app"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	JWT         JWTConfig         `yaml:"jwt"`
	Versioning  VersioningConfig  `yaml:"versioning"`
	Propagation PropagationConfig `yaml:"propagation"`
}

// AppConfig server settings
type AppConfig struct {
	Env  string `yaml:"env" validate:"required"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

// DatabaseConfig MySQL settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// RedisConfig Redis settings
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// JWTConfig auth settings
type JWTConfig struct {
	Secret      string `yaml:"secret"`
	TokenTTLMin int    `yaml:"token_ttl_minutes"`
}

// VersioningConfig version ledger settings
type VersioningConfig struct {
	// RetentionWindow is the maximum number of version records kept per case study
	RetentionWindow int `yaml:"retention_window" validate:"min=1"`
}

// PropagationConfig bulk propagation settings
type PropagationConfig struct {
	// ProgressBatchSize controls how many records are processed between
	// persisted progress updates
	ProgressBatchSize int `yaml:"progress_batch_size" validate:"min=1"`
}

// Load reads the yaml config file and applies env var overrides
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		App:         AppConfig{Env: "local", Port: 8080},
		Database:    DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "casedeck", Name: "casedeck"},
		Redis:       RedisConfig{Host: "127.0.0.1", Port: 6379, PoolSize: 10},
		JWT:         JWTConfig{TokenTTLMin: 60},
		Versioning:  VersioningConfig{RetentionWindow: 5},
		Propagation: PropagationConfig{ProgressBatchSize: 10},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = port
		}
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("VERSION_RETENTION_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Versioning.RetentionWindow = n
		}
	}
}

// DSN builds the MySQL connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.Name)
}
