package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "vaggo/backend/libs/config"
)

// Storage and catalog drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverHTTP     = "http"
)

// Config defines reservation service configuration.
type Config struct {
	HTTP struct {
		Port        string `yaml:"port" env:"RESERVATION_HTTP_PORT"`
		CORSOrigins string `yaml:"corsOrigins" env:"RESERVATION_CORS_ORIGINS"`
	} `yaml:"http"`
	Database struct {
		DSN string `yaml:"dsn" env:"RESERVATION_POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"RESERVATION_REDIS_ADDR"`
		Password string `yaml:"password" env:"RESERVATION_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"RESERVATION_REDIS_DB"`
	} `yaml:"redis"`
	Storage struct {
		Driver string `yaml:"driver" env:"RESERVATION_STORAGE_DRIVER"`
	} `yaml:"storage"`
	Catalog struct {
		Driver  string        `yaml:"driver" env:"RESERVATION_CATALOG_DRIVER"`
		BaseURL string        `yaml:"baseUrl" env:"RESERVATION_CATALOG_URL"`
		Timeout time.Duration `yaml:"timeout" env:"RESERVATION_CATALOG_TIMEOUT"`
		Spots   []SpotSeed    `yaml:"spots" env:"-"`
	} `yaml:"catalog"`
	JWT struct {
		Secret string `yaml:"secret" env:"RESERVATION_JWT_SECRET"`
	} `yaml:"jwt"`
	Webhook struct {
		Secret string `yaml:"secret" env:"RESERVATION_WEBHOOK_SECRET"`
		// Insecure accepts unsigned payment webhooks. Local development only.
		Insecure bool `yaml:"insecure" env:"RESERVATION_WEBHOOK_INSECURE"`
	} `yaml:"webhook"`
	Reservation struct {
		HoldTTL              time.Duration `yaml:"holdTTL" env:"RESERVATION_HOLD_TTL"`
		StepTimeout          time.Duration `yaml:"stepTimeout" env:"RESERVATION_STEP_TIMEOUT"`
		CompensationTimeout  time.Duration `yaml:"compensationTimeout" env:"RESERVATION_COMPENSATION_TIMEOUT"`
		AutoCompleteOnExpiry bool          `yaml:"autoCompleteOnExpiry" env:"RESERVATION_AUTO_COMPLETE_ON_EXPIRY"`
	} `yaml:"reservation"`
	Notifications struct {
		DedupeTTL    time.Duration `yaml:"dedupeTTL" env:"RESERVATION_NOTIFY_DEDUPE_TTL"`
		PendingLimit int           `yaml:"pendingLimit" env:"RESERVATION_NOTIFY_PENDING_LIMIT"`
		PendingTTL   time.Duration `yaml:"pendingTTL" env:"RESERVATION_NOTIFY_PENDING_TTL"`
	} `yaml:"notifications"`
	Telemetry struct {
		Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
		ServiceName string `yaml:"serviceName" env:"OTEL_SERVICE_NAME"`
	} `yaml:"telemetry"`
}

// SpotSeed is one catalog entry for the memory catalog driver.
type SpotSeed struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	PricePerHour int64   `yaml:"pricePerHour"`
	Latitude     float64 `yaml:"latitude"`
	Longitude    float64 `yaml:"longitude"`
	Available    bool    `yaml:"available"`
}

// Default returns the configuration used before file and env overrides.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.HTTP.CORSOrigins = "*"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Storage.Driver = DriverPostgres
	cfg.Catalog.Driver = DriverPostgres
	cfg.Catalog.Timeout = 3 * time.Second
	cfg.Reservation.HoldTTL = 10 * time.Second
	cfg.Reservation.StepTimeout = 3 * time.Second
	cfg.Reservation.CompensationTimeout = 10 * time.Second
	cfg.Reservation.AutoCompleteOnExpiry = true
	cfg.Notifications.DedupeTTL = 48 * time.Hour
	cfg.Notifications.PendingLimit = 32
	cfg.Notifications.PendingTTL = 24 * time.Hour
	cfg.Telemetry.ServiceName = "reservation-service"
	return cfg
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings for the selected drivers.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt secret required")
	}
	if strings.TrimSpace(c.Webhook.Secret) == "" && !c.Webhook.Insecure {
		return errors.New("config: webhook secret required")
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database dsn required")
		}
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("config: redis addr required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Catalog.Driver {
	case DriverPostgres:
		if c.Storage.Driver != DriverPostgres {
			return errors.New("config: postgres catalog requires postgres storage")
		}
	case DriverHTTP:
		if strings.TrimSpace(c.Catalog.BaseURL) == "" {
			return errors.New("config: catalog base url required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown catalog driver %q", c.Catalog.Driver)
	}

	if c.Reservation.HoldTTL <= 0 || c.Reservation.StepTimeout <= 0 || c.Reservation.CompensationTimeout <= 0 {
		return errors.New("config: reservation timeouts must be positive")
	}
	// the hold has to outlive the debit and persist steps
	if c.Reservation.HoldTTL <= 2*c.Reservation.StepTimeout {
		return fmt.Errorf("config: hold ttl %s must exceed twice the step timeout %s",
			c.Reservation.HoldTTL, c.Reservation.StepTimeout)
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.HTTP.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
