// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string        `yaml:"env" env-default:"local"`
	StorageConnectionString string        `yaml:"storage_connection_string"`
	MigrationsPath          string        `yaml:"migrations_path" env-default:"./migrations"`
	RabbitMQConnection      string        `yaml:"rabbitmq_connection"`
	RabbitMQMaxRetries      int           `yaml:"rabbitmq_max_retries" env-default:"5"`
	RabbitMQRetryDelay      time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Session                 `yaml:"session"`
	SMTP                    `yaml:"smtp"`
	YooKassa                `yaml:"yookassa"`
	Scheduler               `yaml:"scheduler"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:"localhost:8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env-default:"localhost:6379"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db" env-default:"0"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Session настройки контроля активности сессии
type Session struct {
	InactivityLimit time.Duration `yaml:"inactivity_limit" env-default:"60m"`
}

// SMTP настройки почтового транспорта для отправки уведомлений
type SMTP struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort string `yaml:"smtp_port" env-default:"587"`
	SMTPUser string `yaml:"smtp_user"`
	SMTPPass string `yaml:"smtp_pass"`
}

// YooKassa настройки платёжного шлюза
type YooKassa struct {
	ShopID    string `yaml:"shop_id"`
	SecretKey string `yaml:"secret_key"`
	ReturnURL string `yaml:"return_url"`
}

// Scheduler настройки периодической проверки сроков подписок
type Scheduler struct {
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"1h"`
}

// MustLoad функция для загрузки конфига, путь берётся из переменной CONFIG_PATH
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
