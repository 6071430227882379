package config

import (
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	DBUser     string `env:"DB_USER,required"`
	DBPassword string `env:"DB_PASSWORD,required"`
	DBHost     string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName     string `env:"DB_NAME,required"`
	DBPort     string `env:"DB_PORT" envDefault:"3306"`

	// Cloud SQL instance; when set the unix socket under /cloudsql is used instead of DBHost.
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`
	AuthDisabled      bool   `env:"AUTH_DISABLED" envDefault:"false"`

	RedisURL                 string `env:"REDIS_URL"`
	RateLimitPrefix          string `env:"RATE_LIMIT_PREFIX" envDefault:"bookmarket:rate_limit"`
	NegotiationRatePerMinute int    `env:"NEGOTIATION_RATE_LIMIT_PER_MINUTE" envDefault:"20"`

	RabbitMQURL          string `env:"RABBITMQ_URL"`
	NotificationExchange string `env:"NOTIFICATION_EXCHANGE" envDefault:"bookmarket.notifications"`

	ImageBucket     string        `env:"IMAGE_BUCKET"`
	CredentialsFile string        `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	ImageURLTTL     time.Duration `env:"IMAGE_URL_TTL" envDefault:"15m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	GitSHA    string `env:"GIT_SHA" envDefault:"dev"`
	BuildTime string `env:"BUILD_TIME"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
