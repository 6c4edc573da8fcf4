package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	KYCBaseURL  string `env:"KYC_BASE_URL" envDefault:"http://kyc-service:8080"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	// Lifecycle policy.
	KYCThresholdPaise   int64  `env:"KYC_THRESHOLD_PAISE" envDefault:"5000000"`
	ProcessingWindowMin int    `env:"PROCESSING_WINDOW_MIN_MINUTES" envDefault:"20"`
	ProcessingWindowMax int    `env:"PROCESSING_WINDOW_MAX_MINUTES" envDefault:"30"`
	RetryCeiling        int    `env:"RETRY_CEILING" envDefault:"3"`
	NotifyChannel       string `env:"NOTIFY_CHANNEL" envDefault:"wallet.events"`
	TimerWorkers        int    `env:"TIMER_WORKERS" envDefault:"10"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
