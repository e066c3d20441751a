// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	SMTP                    SMTP         `yaml:"smtp"`
	RabbitMQ                RabbitMQ     `yaml:"rabbitmq"`
	Verification            Verification `yaml:"verification"`
	Registration            Registration `yaml:"registration"`
	Usage                   Usage        `yaml:"usage"`
	Billing                 Billing      `yaml:"billing"`
	Planner                 Planner      `yaml:"planner"`
	Scheduler               Scheduler    `yaml:"scheduler"`
	RateLimit               RateLimit    `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// SMTP настройки почтового сервера
type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from"`
}

// RabbitMQ настройки очереди писем
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
	Exchange   string        `yaml:"exchange" env-default:"mail"`
}

// Verification настройки одноразовых кодов
type Verification struct {
	CodeTTL        time.Duration `yaml:"code_ttl" env-default:"10m"`
	ResendCooldown time.Duration `yaml:"resend_cooldown" env-default:"60s"`
	MaxAttempts    int           `yaml:"max_attempts" env-default:"5"`
}

// Registration настройки регистрации
type Registration struct {
	PendingTTL  time.Duration `yaml:"pending_ttl" env-default:"168h"`
	MailTimeout time.Duration `yaml:"mail_timeout" env-default:"5s"`
}

// UsageBackendRedis хранит счётчики использования в Redis вместо Postgres.
const UsageBackendRedis = "redis"

// Usage настройки хранилища счётчиков
type Usage struct {
	Backend string `yaml:"backend" env-default:"postgres"`
}

// Billing настройки проверки квитанций
type Billing struct {
	VerifierURL    string        `yaml:"verifier_url" env:"BILLING_VERIFIER_URL"`
	VerifierSecret string        `yaml:"verifier_secret" env:"BILLING_VERIFIER_SECRET"`
	Timeout        time.Duration `yaml:"timeout" env-default:"10s"`
}

// Planner настройки генератора планов тренировок
type Planner struct {
	URL     string        `yaml:"url" env:"PLANNER_URL"`
	Timeout time.Duration `yaml:"timeout" env-default:"30s"`
}

// Scheduler настройки фоновых задач
type Scheduler struct {
	ExpiryInterval       time.Duration `yaml:"expiry_interval" env-default:"1h"`
	PurgeInterval        time.Duration `yaml:"purge_interval" env-default:"6h"`
	ReminderInterval     time.Duration `yaml:"reminder_interval" env-default:"12h"`
	GracePeriod          time.Duration `yaml:"grace_period" env-default:"72h"`
	UsageRetentionMonths int           `yaml:"usage_retention_months" env-default:"0"`
}

// RateLimit настройки ограничения частоты запросов к открытым ручкам
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"1"`
	Burst int     `yaml:"burst" env-default:"5"`
}

// Load читает конфиг по указанному пути.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file: %s - does not exist", configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	return &cfg, nil
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"Verification:\n"+
			"  CodeTTL: %s\n"+
			"Usage:\n"+
			"  Backend: %s\n",
		c.Env,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.Verification.CodeTTL,
		c.Usage.Backend,
	)
}
