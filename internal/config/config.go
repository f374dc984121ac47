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
	Env                     string `yaml:"env"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Stripe                  `yaml:"stripe"`
	AIProvider              `yaml:"ai_provider"`
	RabbitMQ                `yaml:"rabbitmq"`
	Quota                   `yaml:"quota"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// Stripe структура для настройки платёжного провайдера.
// Пустой SecretKey означает, что биллинг отключён: вместо реального клиента
// подставляется заглушка, отвечающая ошибкой конфигурации.
type Stripe struct {
	SecretKey         string        `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret     string        `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	PriceIDProMonthly string        `yaml:"price_id_pro_monthly"`
	PriceIDProYearly  string        `yaml:"price_id_pro_yearly"`
	SuccessURL        string        `yaml:"success_url"`
	CancelURL         string        `yaml:"cancel_url"`
	PortalReturnURL   string        `yaml:"portal_return_url"`
	TimeoutStripe     time.Duration `yaml:"timeoutstripe" env-default:"10s"`
}

// AIProvider структура для настройки провайдера AI-дополнений.
// Пустой APIKey отключает AI-функции аналогично Stripe.
type AIProvider struct {
	APIKey    string        `yaml:"api_key" env:"AI_API_KEY"`
	BaseURL   string        `yaml:"base_url" env-default:"https://api.openai.com/v1"`
	Model     string        `yaml:"model" env-default:"gpt-4o-mini"`
	TimeoutAI time.Duration `yaml:"timeoutai" env-default:"30s"`
}

// RabbitMQ структура для настройки публикации уведомлений.
// Пустой URL отключает публикацию.
type RabbitMQ struct {
	URL      string `yaml:"url" env:"RABBITMQ_URL"`
	Exchange string `yaml:"exchange" env-default:"billing.notifications"`
}

// Quota структура для настройки режима квотирования.
// Strict закрывает гонку между проверкой квоты и записью использования
// условной вставкой в одной транзакции; false оставляет проверку
// рекомендательной (две отдельные операции).
type Quota struct {
	Strict bool `yaml:"strict" env-default:"true"`
}

// MustLoad функция для загрузки конфига, возвращает конфиг, сгенерированный из config/config.go
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"MigrationsPath: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Stripe:\n"+
			"  Configured: %t\n"+
			"AIProvider:\n"+
			"  Configured: %t\n"+
			"  Model: %s\n"+
			"RabbitMQ:\n"+
			"  Configured: %t\n"+
			"Quota:\n"+
			"  Strict: %t\n",
		c.Env,
		c.StorageConnectionString,
		c.MigrationsPath,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.Stripe.SecretKey != "",
		c.AIProvider.APIKey != "",
		c.Model,
		c.RabbitMQ.URL != "",
		c.Strict,
	)
}
