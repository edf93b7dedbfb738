// Package config loads the server configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Окружения, влияющие на формат логов
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config is the server configuration
type Config struct {
	Env        string `yaml:"env" env:"TGAUTH_ENV" env-default:"local"`
	HTTPServer `yaml:"http_server"`
	App        `yaml:"app"`
	Storage    `yaml:"storage"`
	Redis      `yaml:"redis"`
	RabbitMQ   `yaml:"rabbitmq"`
	Tokens     `yaml:"tokens"`
	Security   `yaml:"security"`
	Telegram   `yaml:"telegram"`
	Sweep      `yaml:"sweep"`
	Telemetry  `yaml:"telemetry"`
}

// HTTPServer содержит параметры HTTP сервера
type HTTPServer struct {
	Address         string        `yaml:"address" env:"TGAUTH_HTTP_ADDRESS" env-default:"localhost:8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

// App содержит параметры приложения
type App struct {
	// PublicURL база для ссылок в письмах
	PublicURL string `yaml:"public_url" env:"TGAUTH_PUBLIC_URL" env-default:"http://localhost:8080"`
	TenantID  string `yaml:"tenant_id" env:"TGAUTH_TENANT_ID" env-default:"default"`
}

// Storage выбирает бэкенд хранения: sqlite или postgres
type Storage struct {
	Driver      string        `yaml:"driver" env:"TGAUTH_STORAGE_DRIVER" env-default:"sqlite"`
	SQLitePath  string        `yaml:"sqlite_path" env:"TGAUTH_SQLITE_PATH" env-default:"tgauth.db"`
	PostgresDSN string        `yaml:"postgres_dsn" env:"TGAUTH_POSTGRES_DSN"`
	MaxConns    int32         `yaml:"max_conns" env-default:"10"`
	MinConns    int32         `yaml:"min_conns" env-default:"1"`
	ConnMaxLife time.Duration `yaml:"conn_max_lifetime" env-default:"1h"`
	ConnMaxIdle time.Duration `yaml:"conn_max_idle_time" env-default:"30m"`
}

// Redis включает Redis bridge для push-доставки между репликами.
// Пустой адрес означает in-process bridge
type Redis struct {
	Addr     string `yaml:"addr" env:"TGAUTH_REDIS_ADDR"`
	Password string `yaml:"password" env:"TGAUTH_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
	Prefix   string `yaml:"prefix" env-default:"tgauth:"`
}

// RabbitMQ включает публикацию событий в очередь.
// Пустой URL означает запись событий в лог
type RabbitMQ struct {
	URL       string `yaml:"url" env:"TGAUTH_RABBITMQ_URL"`
	QueueName string `yaml:"queue_name" env-default:"tgauth.notifications"`
}

// Tokens содержит параметры JWT и сессий
type Tokens struct {
	Secret           string        `yaml:"secret" env:"TGAUTH_JWT_SECRET" env-required:"true"`
	Issuer           string        `yaml:"issuer" env-default:"tgauth"`
	AccessTTL        time.Duration `yaml:"access_ttl" env-default:"15m"`
	RefreshTTL       time.Duration `yaml:"refresh_ttl" env-default:"168h"`
	MaxSessions      int           `yaml:"max_sessions" env-default:"10"`
	RevokedRetention time.Duration `yaml:"revoked_retention" env-default:"720h"`
}

// Security содержит параметры защиты от перебора
type Security struct {
	LockoutThreshold  int           `yaml:"lockout_threshold" env-default:"5"`
	LockoutDuration   time.Duration `yaml:"lockout_duration" env-default:"15m"`
	VerificationLimit int           `yaml:"verification_limit" env-default:"3"`
	VerificationWin   time.Duration `yaml:"verification_window" env-default:"1h"`
	BcryptCost        int           `yaml:"bcrypt_cost" env-default:"12"`
}

// Telegram содержит параметры виджета и бота
type Telegram struct {
	BotToken string `yaml:"bot_token" env:"TGAUTH_TELEGRAM_BOT_TOKEN"`
	// BotURL ссылка на бота, например https://t.me/my_bot
	BotURL string `yaml:"bot_url" env:"TGAUTH_TELEGRAM_BOT_URL"`
	// BotSecret общий секрет бота, передаётся в X-Bot-Secret
	BotSecret  string        `yaml:"bot_secret" env:"TGAUTH_TELEGRAM_BOT_SECRET"`
	AuthWindow time.Duration `yaml:"auth_window" env-default:"10m"`
}

// Sweep содержит параметры очистки устаревших записей
type Sweep struct {
	Interval  time.Duration `yaml:"interval" env-default:"1h"`
	BatchSize int           `yaml:"batch_size" env-default:"500"`
}

// Telemetry включает экспорт трейсов. Пустой endpoint отключает экспорт
type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"TGAUTH_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env-default:"tgauth"`
}

// Load reads the configuration from path. An empty path reads the
// environment only
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from env: %w", err)
		}
	} else {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad is Load that panics on error
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks values cleanenv cannot express
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if len(c.Tokens.Secret) < 32 {
		return errors.New("tokens.secret must be at least 32 bytes")
	}

	if c.Telegram.BotSecret == "" && c.Telegram.BotURL != "" {
		return errors.New("telegram.bot_secret is required when bot login is enabled")
	}

	return nil
}

// SetupLogger builds the logger for env
func SetupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case EnvDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case EnvProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}
