package ops

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Kafka     KafkaConfig     `json:"kafka"`
	Book      BookConfig      `json:"book"`
	Trading   TradingConfig   `json:"trading"`
	Metrics   MetricsConfig   `json:"metrics"`
	Profiling ProfilingConfig `json:"profiling"`
	Database  DatabaseConfig  `json:"database"`
}

// KafkaConfig names the brokers and topics the services talk through.
type KafkaConfig struct {
	Brokers        []string `json:"brokers"`
	OrderBookTopic string   `json:"orderBookTopic"`
	ActionTopic    string   `json:"actionTopic"`
	ExecutionTopic string   `json:"executionTopic"`
	ConsumerGroup  string   `json:"consumerGroup"`
}

// BookConfig describes the market-data subscription.
type BookConfig struct {
	Instrument  string `json:"instrument"`
	PublicWsURL string `json:"publicWsUrl"`
}

// TradingConfig describes the execution side.
type TradingConfig struct {
	Instrument     string  `json:"instrument"`
	TradeMode      string  `json:"tradeMode"`
	MarginFraction float64 `json:"marginFraction"`
	PrivateWsURL   string  `json:"privateWsUrl"`
}

// MetricsConfig describes the prometheus scrape endpoint.
type MetricsConfig struct {
	Addr string `json:"addr"`
}

// ProfilingConfig captures the optional pyroscope target.
type ProfilingConfig struct {
	ServerAddress string `json:"serverAddress"`
}

// DatabaseConfig describes the closed-trade journal target. An empty DSN
// disables journaling.
type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

// Credentials are venue secrets, sourced from the environment.
type Credentials struct {
	ApiKey     string
	SecretKey  string
	Passphrase string
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Kafka       KafkaConfig
	Book        BookConfig
	Trading     TradingConfig
	Metrics     MetricsConfig
	Profiling   ProfilingConfig
	Database    DatabaseConfig
	Credentials Credentials
}

// Load reads a JSON config file, pulls secrets from the environment and
// validates the result. A .env file beside the process is honored when
// present.
func Load(path string) (Loaded, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}

	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{
		Kafka:     cfg.Kafka,
		Book:      cfg.Book,
		Trading:   cfg.Trading,
		Metrics:   cfg.Metrics,
		Profiling: cfg.Profiling,
		Database:  cfg.Database,
		Credentials: Credentials{
			ApiKey:     os.Getenv("OKX_API_KEY"),
			SecretKey:  os.Getenv("OKX_SECRET_KEY"),
			Passphrase: os.Getenv("OKX_PASSPHRASE"),
		},
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		loaded.Database.DSN = dsn
	}
	return loaded, nil
}

// RequireCredentials errors when any venue secret is missing. The order
// service needs them, the book service does not.
func (l Loaded) RequireCredentials() error {
	if l.Credentials.ApiKey == "" || l.Credentials.SecretKey == "" || l.Credentials.Passphrase == "" {
		return fmt.Errorf("OKX_API_KEY, OKX_SECRET_KEY and OKX_PASSPHRASE must be set")
	}
	return nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Kafka.OrderBookTopic == "" {
		cfg.Kafka.OrderBookTopic = "orderbook.updates"
	}
	if cfg.Kafka.ActionTopic == "" {
		cfg.Kafka.ActionTopic = "oms.action"
	}
	if cfg.Kafka.ExecutionTopic == "" {
		cfg.Kafka.ExecutionTopic = "execution.update"
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "oms"
	}
	if cfg.Book.Instrument == "" {
		cfg.Book.Instrument = "BTC-USDT-SWAP"
	}
	if cfg.Trading.Instrument == "" {
		cfg.Trading.Instrument = cfg.Book.Instrument
	}
	if cfg.Trading.TradeMode == "" {
		cfg.Trading.TradeMode = "cross"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9100"
	}
}

func validate(cfg FileConfig) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers must not be empty")
	}
	for _, broker := range cfg.Kafka.Brokers {
		if broker == "" {
			return fmt.Errorf("kafka broker must not be empty")
		}
	}
	if cfg.Trading.MarginFraction <= 0 || cfg.Trading.MarginFraction > 1 {
		return fmt.Errorf("trading marginFraction must be in (0, 1], got %v", cfg.Trading.MarginFraction)
	}
	return nil
}
