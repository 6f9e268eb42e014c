// Package config loads the server configuration.
//
// SOURCES (later ones win):
//  1. Defaults set below
//  2. config.yaml in the given directory (optional)
//  3. A .env file in the same directory (optional), loaded into the process environment
//  4. Environment variables: every key is also read from its upper-cased,
//     underscore form, so auth.jwt_secret comes from AUTH_JWT_SECRET. A few
//     short aliases (PORT, JWT_SECRET, DB_PATH, GITHUB_*) are accepted too.
//
// Example config.yaml:
//
//	app:
//	  port: 8080
//	  env: production
//	auth:
//	  jwt_secret: change-me-to-something-long
//	storage:
//	  driver: s3
//	  s3:
//	    bucket: avatars
//	    endpoint: http://localhost:9000
//	    use_path_style: true
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sakif/todolist/internal/storage"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverLocal = "local"
	DriverS3    = "s3"
)

type Config struct {
	App     AppConfig
	Log     LogConfig
	DB      DBConfig `mapstructure:"db"`
	Auth    AuthConfig
	GitHub  GitHubConfig `mapstructure:"github"`
	Storage StorageConfig
}

type AppConfig struct {
	Port int
	Env  string
}

type LogConfig struct {
	Level string
}

type DBConfig struct {
	Path string
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// GitHubConfig enables "Sign in with GitHub" when both client fields are set.
type GitHubConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CallbackURL  string `mapstructure:"callback_url"`
}

func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type StorageConfig struct {
	Driver string
	Local  storage.LocalConfig `mapstructure:"local"`
	S3     storage.S3Config    `mapstructure:"s3"`
}

// aliases are extra environment variable names accepted for a key.
var aliases = map[string][]string{
	"app.port":             {"PORT"},
	"db.path":              {"DB_PATH"},
	"auth.jwt_secret":      {"JWT_SECRET"},
	"github.client_id":     {"GITHUB_CLIENT_ID"},
	"github.client_secret": {"GITHUB_CLIENT_SECRET"},
	"github.callback_url":  {"GITHUB_CALLBACK_URL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.env", EnvDevelopment)
	v.SetDefault("log.level", "info")
	v.SetDefault("db.path", "data/todolist.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "2h")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("github.client_id", "")
	v.SetDefault("github.client_secret", "")
	v.SetDefault("github.callback_url", "")
	v.SetDefault("storage.driver", DriverLocal)
	v.SetDefault("storage.local.base_path", "data/storage")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.use_path_style", false)
}

// Load reads the configuration from dir and the environment, then
// validates it.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, names := range aliases {
		envs := append([]string{strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.App.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Port < 1 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port %d is out of range", c.App.Port))
	}
	if c.App.Env != EnvDevelopment && c.App.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("app.env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.App.Env))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.DB.Path == "" {
		errs = append(errs, errors.New("db.path is required"))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters (try: openssl rand -hex 32)"))
	}
	switch c.Storage.Driver {
	case DriverLocal:
		if c.Storage.Local.BasePath == "" {
			errs = append(errs, errors.New("storage.local.base_path is required"))
		}
	case DriverS3:
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", DriverLocal, DriverS3, c.Storage.Driver))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
