package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything cmd/server needs from the environment.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration

	// PostgresDSN selects the postgres identity store; empty means the
	// in-memory store.
	PostgresDSN string

	Redis RedisConfig

	// KafkaBrokers enables the Kafka audit sink; empty means the in-memory
	// audit store.
	KafkaBrokers    []string
	KafkaAuditTopic string

	// WalletPassphrase restores a deterministic wallet key. Empty means a
	// fresh wallet per process.
	WalletPassphrase string
}

// RedisConfig holds connection settings for the wallet credential store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("IDEM_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	topic := os.Getenv("IDEM_KAFKA_AUDIT_TOPIC")
	if topic == "" {
		topic = "idem.audit"
	}

	var brokers []string
	if raw := os.Getenv("IDEM_KAFKA_BROKERS"); raw != "" {
		for _, broker := range strings.Split(raw, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				brokers = append(brokers, broker)
			}
		}
	}

	return Config{
		Addr:            addr,
		ShutdownTimeout: 10 * time.Second,
		PostgresDSN:     os.Getenv("IDEM_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("IDEM_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:     brokers,
		KafkaAuditTopic:  topic,
		WalletPassphrase: os.Getenv("IDEM_WALLET_PASSPHRASE"),
	}
}
