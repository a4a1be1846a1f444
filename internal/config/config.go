// Package config loads runtime configuration from .env, an optional YAML file and the
// environment, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration.
type Config struct {
	Server struct {
		Port        string   `yaml:"port" env:"SERVER_PORT"`
		Mode        string   `yaml:"mode" env:"SERVER_MODE"`
		CORSOrigins []string `yaml:"cors_origins"`
		// LocalesDir overrides the translations built into the binary.
		LocalesDir  string   `yaml:"locales_dir" env:"LOCALES_DIR"`
	} `yaml:"server"`

	Storage struct {
		// Driver is "postgres" or "memory".
		Driver string `yaml:"driver" env:"STORAGE_DRIVER"`
	} `yaml:"storage"`

	Database struct {
		Host     string `yaml:"host" env:"DB_HOST"`
		Port     string `yaml:"port" env:"DB_PORT"`
		User     string `yaml:"user" env:"DB_USER"`
		Password string `yaml:"password" env:"DB_PASSWORD"`
		Name     string `yaml:"name" env:"DB_NAME"`
		SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
	} `yaml:"redis"`

	JWT struct {
		Secret     string        `yaml:"secret" env:"JWT_SECRET"`
		Expiration time.Duration `yaml:"expiration" env:"JWT_EXPIRATION"`
		Issuer     string        `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	SMTP struct {
		Host      string `yaml:"host" env:"SMTP_HOST"`
		Port      int    `yaml:"port" env:"SMTP_PORT"`
		Username  string `yaml:"username" env:"SMTP_USER"`
		Password  string `yaml:"password" env:"SMTP_PASS"`
		FromName  string `yaml:"from_name" env:"SMTP_FROM_NAME"`
		FromEmail string `yaml:"from_email" env:"SMTP_FROM_EMAIL"`
		Language  string `yaml:"language" env:"SMTP_LANGUAGE"`
	} `yaml:"smtp"`

	S3 struct {
		Bucket string `yaml:"bucket" env:"S3_BUCKET_NAME"`
		Region string `yaml:"region" env:"AWS_REGION"`
	} `yaml:"s3"`

	RateLimit struct {
		PerMinute int `yaml:"per_minute" env:"RATE_LIMIT_PER_MINUTE"`
		Burst     int `yaml:"burst" env:"RATE_LIMIT_BURST"`
		// Auth* limit the unauthenticated /api/auth routes per client IP.
		AuthPerMinute int `yaml:"auth_per_minute" env:"AUTH_RATE_LIMIT_PER_MINUTE"`
		AuthBurst     int `yaml:"auth_burst" env:"AUTH_RATE_LIMIT_BURST"`
	} `yaml:"rate_limit"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
	} `yaml:"logging"`
}

// Load reads .env (if present), then the YAML file at path (if present), then environment
// variables, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	setDefaults(cfg)

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = strings.Split(origins, ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Server.Port = "3000"
	cfg.Server.Mode = "development"
	cfg.Server.CORSOrigins = []string{"*"}

	cfg.Storage.Driver = "postgres"

	cfg.Database.Host = "localhost"
	cfg.Database.Port = "5432"
	cfg.Database.User = "user"
	cfg.Database.Password = "password"
	cfg.Database.Name = "mentorbridge"
	cfg.Database.SSLMode = "disable"

	cfg.JWT.Expiration = 72 * time.Hour
	cfg.JWT.Issuer = "mentorbridge-service"

	cfg.SMTP.Port = 587
	cfg.SMTP.FromName = "Virtual Mentor Bridge"
	cfg.SMTP.FromEmail = "no-reply@mentorbridge.com"
	cfg.SMTP.Language = "en"

	cfg.RateLimit.PerMinute = 120
	cfg.RateLimit.Burst = 30
	cfg.RateLimit.AuthPerMinute = 10
	cfg.RateLimit.AuthBurst = 5

	cfg.Logging.Level = "info"
	cfg.Logging.Pretty = true
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.JWT.Expiration <= 0 {
		return fmt.Errorf("JWT expiration must be positive")
	}
	switch c.Storage.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database host and name are required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.Burst < 0 || c.RateLimit.AuthPerMinute < 0 || c.RateLimit.AuthBurst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Mode == "production"
}

// PostgresDSN returns the gorm postgres DSN.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Database.Host, c.Database.User, c.Database.Password, c.Database.Name, c.Database.Port, c.Database.SSLMode)
}

// applyEnv walks the struct and overrides every field that has an env tag set in the
// environment.
func applyEnv(s interface{}) error {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if field.Kind() == reflect.Struct {
			if err := applyEnv(field.Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		tag := typ.Field(i).Tag.Get("env")
		if tag == "" {
			continue
		}
		value, ok := os.LookupEnv(tag)
		if !ok {
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("env var %s: %w", tag, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
