package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix     = "STOREFRONT"
	configFileEnv = "STOREFRONT_CONFIG"
)

type Config struct {
	HTTP         HTTPConfig         `mapstructure:"http"`
	GRPC         GRPCConfig         `mapstructure:"grpc"`
	MySQL        MySQLConfig        `mapstructure:"mysql"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Notification NotificationConfig `mapstructure:"notification"`
	Checkout     CheckoutConfig     `mapstructure:"checkout"`
	OTel         OTelConfig         `mapstructure:"otel"`
	Log          LogConfig          `mapstructure:"log"`
	Shutdown     ShutdownConfig     `mapstructure:"shutdown"`
	Fixtures     bool               `mapstructure:"fixtures"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	PoolSize int    `mapstructure:"pool_size"`
}

// KafkaConfig is optional; with no brokers confirmations go to the log.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type NotificationConfig struct {
	Workers   int    `mapstructure:"workers"`
	QueueSize int    `mapstructure:"queue_size"`
	Sender    string `mapstructure:"sender"`
}

type CheckoutConfig struct {
	PaymentWindow time.Duration `mapstructure:"payment_window"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
}

type OTelConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("mysql.dsn", "root:root@tcp(localhost:3306)/storefront?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 25)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "order-confirmations")
	v.SetDefault("notification.workers", 4)
	v.SetDefault("notification.queue_size", 10000)
	v.SetDefault("notification.sender", "dontreply@storefront.local")
	v.SetDefault("checkout.payment_window", 72*time.Hour)
	v.SetDefault("checkout.max_attempts", 3)
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.service_name", "storefront")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("shutdown.timeout", 10*time.Second)
	v.SetDefault("fixtures", false)
}

// Load resolves defaults, then the file named by STOREFRONT_CONFIG if set,
// then STOREFRONT_* environment variables (mysql.dsn -> STOREFRONT_MYSQL_DSN).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(configFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn is required")
	}
	if c.Notification.Workers <= 0 {
		return fmt.Errorf("notification.workers must be positive, got %d", c.Notification.Workers)
	}
	if c.Notification.QueueSize <= 0 {
		return fmt.Errorf("notification.queue_size must be positive, got %d", c.Notification.QueueSize)
	}
	if c.Checkout.PaymentWindow <= 0 {
		return fmt.Errorf("checkout.payment_window must be positive, got %s", c.Checkout.PaymentWindow)
	}
	return nil
}
