// Package config loads service settings from defaults, an optional config
// file, a .env file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Window  WindowConfig  `mapstructure:"window"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Journal JournalConfig `mapstructure:"journal"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	HTTPAddr string `mapstructure:"http_addr"` // overrides Port when set
	GRPCAddr string `mapstructure:"grpc_addr"`
}

// HTTPListenAddr is HTTPAddr, or ":<port>" when it is empty.
func (s ServerConfig) HTTPListenAddr() string {
	if s.HTTPAddr != "" {
		return s.HTTPAddr
	}
	return fmt.Sprintf(":%d", s.Port)
}

type FeedConfig struct {
	URL          string        `mapstructure:"url"`
	Symbol       string        `mapstructure:"symbol"`
	BookDepth    int           `mapstructure:"book_depth"`
	MaxRetries   int           `mapstructure:"max_retries"`
	Backoff      time.Duration `mapstructure:"backoff"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

type WindowConfig struct {
	Retention time.Duration `mapstructure:"retention"`
	Reporting time.Duration `mapstructure:"reporting"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	Topic       string   `mapstructure:"topic"`
	OutboxTopic string   `mapstructure:"outbox_topic"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type JournalConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Dir               string        `mapstructure:"dir"`
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
	// 0 keeps every relayed frame
	Retain uint64 `mapstructure:"retain"`
}

// legacy environment names still honoured next to the derived ones
var aliases = map[string]string{
	"feed.symbol":      "TRADING_PAIR",
	"feed.book_depth":  "BOOK_DEPTH",
	"feed.max_retries": "WS_CONFIG_RETRY_MAX",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.http_addr", "")
	v.SetDefault("server.grpc_addr", ":9090")

	v.SetDefault("feed.url", "wss://stream.binance.com:9443/stream")
	v.SetDefault("feed.symbol", "BTCFDUSD")
	v.SetDefault("feed.book_depth", 5)
	v.SetDefault("feed.max_retries", 5)
	v.SetDefault("feed.backoff", 5*time.Second)
	v.SetDefault("feed.read_timeout", 60*time.Second)
	v.SetDefault("feed.ping_interval", 30*time.Second)

	v.SetDefault("window.retention", 70*time.Second)
	v.SetDefault("window.reporting", 60*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "market_events")
	v.SetDefault("kafka.outbox_topic", "market_frames")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Hour)

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.dir", "data/journal")
	v.SetDefault("journal.broadcast_interval", 250*time.Millisecond)
	v.SetDefault("journal.batch_size", 512)
	v.SetDefault("journal.retain", 0)
}

// Load reads path when given, otherwise an optional ./config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	// a missing .env is normal outside local development
	_ = godotenv.Load()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		envs := []string{key, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		if alias, ok := aliases[key]; ok {
			envs = append(envs, alias)
		}
		if err := v.BindEnv(envs...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every bad value at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		bad("server.port %d out of range", c.Server.Port)
	}
	if c.Feed.Symbol == "" {
		bad("feed.symbol is empty")
	}
	switch c.Feed.BookDepth {
	case 5, 10, 20:
	default:
		bad("feed.book_depth must be 5, 10 or 20, got %d", c.Feed.BookDepth)
	}
	if c.Feed.MaxRetries < 1 {
		bad("feed.max_retries must be at least 1, got %d", c.Feed.MaxRetries)
	}
	if c.Feed.Backoff < 0 {
		bad("feed.backoff is negative")
	}
	if c.Feed.ReadTimeout <= 0 {
		bad("feed.read_timeout must be positive")
	}
	if c.Window.Reporting <= 0 {
		bad("window.reporting must be positive")
	}
	if c.Window.Retention <= c.Window.Reporting {
		bad("window.retention (%s) must exceed window.reporting (%s)", c.Window.Retention, c.Window.Reporting)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		bad("kafka brokers cannot be empty")
	}
	if c.Journal.Enabled && c.Journal.Dir == "" {
		bad("journal.dir is empty")
	}
	return errors.Join(errs...)
}
