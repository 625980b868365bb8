package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	ProviderMercadoPago = "mercadopago"
	ProviderMock        = "mock"
)

type Config struct {
	ServiceName string         `mapstructure:"service_name"`
	LogLevel    string         `mapstructure:"log_level"`
	HTTP        HTTPConfig     `mapstructure:"http"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Payment     PaymentConfig  `mapstructure:"payment"`
	RCON        RCONConfig     `mapstructure:"rcon"`
	Delivery    DeliveryConfig `mapstructure:"delivery"`
}

type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Schema   string `mapstructure:"schema"`
}

// RedisConfig enables the catalog cache when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type PaymentConfig struct {
	Provider    string        `mapstructure:"provider"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RCONConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Password       string        `mapstructure:"password"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	MaxPlayers     int           `mapstructure:"max_players"`
}

type DeliveryConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	BatchSize  int           `mapstructure:"batch_size"`
	ClaimLease time.Duration `mapstructure:"claim_lease"`
	AlertAfter int           `mapstructure:"alert_after"`
}

type binding struct {
	key string
	env string
	def any
}

var bindings = []binding{
	{"service_name", "SERVICE_NAME", "guardians-shop"},
	{"log_level", "LOG_LEVEL", "INFO"},

	{"http.addr", "HTTP_ADDR", ":3000"},
	{"http.allowed_origins", "CORS_ALLOWED_ORIGINS", []string{"*"}},
	{"http.shutdown_grace", "HTTP_SHUTDOWN_GRACE", 15 * time.Second},

	{"database.driver", "DB_DRIVER", DriverPostgres},
	{"database.host", "BLUEPRINT_DB_HOST", "localhost"},
	{"database.port", "BLUEPRINT_DB_PORT", "5432"},
	{"database.username", "BLUEPRINT_DB_USERNAME", ""},
	{"database.password", "BLUEPRINT_DB_PASSWORD", ""},
	{"database.database", "BLUEPRINT_DB_DATABASE", ""},
	{"database.schema", "BLUEPRINT_DB_SCHEMA", "public"},

	{"redis.addr", "REDIS_ADDR", ""},
	{"redis.password", "REDIS_PASSWORD", ""},
	{"redis.db", "REDIS_DB", 0},
	{"redis.ttl", "PRODUCT_CACHE_TTL", 10 * time.Minute},

	{"payment.provider", "PAYMENT_PROVIDER", ProviderMercadoPago},
	{"payment.access_token", "MP_ACCESS_TOKEN", ""},
	{"payment.timeout", "PAYMENT_TIMEOUT", 10 * time.Second},

	{"rcon.host", "RCON_HOST", "127.0.0.1"},
	{"rcon.port", "RCON_PORT", 27020},
	{"rcon.password", "RCON_PASSWORD", ""},
	{"rcon.dial_timeout", "RCON_DIAL_TIMEOUT", 5 * time.Second},
	{"rcon.command_timeout", "RCON_COMMAND_TIMEOUT", 10 * time.Second},
	{"rcon.max_players", "SERVER_MAX_PLAYERS", 200},

	{"delivery.interval", "DELIVERY_INTERVAL", time.Minute},
	{"delivery.batch_size", "DELIVERY_BATCH_SIZE", 10},
	{"delivery.claim_lease", "DELIVERY_CLAIM_LEASE", 5 * time.Minute},
	{"delivery.alert_after", "DELIVERY_ALERT_AFTER", 10},
}

// Load reads .env if present, then an optional YAML file, then the
// environment. Environment values win over the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.HTTP.AllowedOrigins = splitOrigins(cfg.HTTP.AllowedOrigins)
	return &cfg, nil
}

// splitOrigins accepts both a YAML list and a comma separated env value.
func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, o := range strings.Split(item, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.Database == "" || c.Database.Username == "" {
			errs = append(errs, errors.New("BLUEPRINT_DB_DATABASE and BLUEPRINT_DB_USERNAME are required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver))
	}

	switch c.Payment.Provider {
	case ProviderMock:
	case ProviderMercadoPago:
		if c.Payment.AccessToken == "" {
			errs = append(errs, errors.New("MP_ACCESS_TOKEN is required for mercadopago"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.Payment.Provider))
	}

	if c.RCON.Host == "" {
		errs = append(errs, errors.New("RCON_HOST is required"))
	}
	if c.RCON.Port <= 0 || c.RCON.Port > 65535 {
		errs = append(errs, fmt.Errorf("RCON_PORT %d out of range", c.RCON.Port))
	}
	if c.Delivery.Interval <= 0 {
		errs = append(errs, errors.New("DELIVERY_INTERVAL must be positive"))
	}
	if c.Delivery.BatchSize <= 0 {
		errs = append(errs, errors.New("DELIVERY_BATCH_SIZE must be positive"))
	}
	if c.Delivery.ClaimLease <= 0 {
		errs = append(errs, errors.New("DELIVERY_CLAIM_LEASE must be positive"))
	}
	// A lease that can lapse mid-batch lets another run claim orders that are
	// still being delivered.
	if worst := c.worstBatchTime(); c.Delivery.ClaimLease > 0 && c.Delivery.ClaimLease <= worst {
		errs = append(errs, fmt.Errorf("DELIVERY_CLAIM_LEASE %s must exceed the worst case batch time %s", c.Delivery.ClaimLease, worst))
	}
	if c.Payment.Timeout <= 0 {
		errs = append(errs, errors.New("PAYMENT_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// worstBatchTime is one dial plus every command in a full batch timing out.
func (c *Config) worstBatchTime() time.Duration {
	return c.RCON.DialTimeout + time.Duration(c.Delivery.BatchSize)*c.RCON.CommandTimeout
}
