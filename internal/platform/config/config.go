// Package config loads process configuration from an optional file and
// FLIGHTSURETY_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
	strs "flightsurety/pkg/platform/strings"
)

// EnvPrefix namespaces every environment variable, e.g. FLIGHTSURETY_SERVER_ADDR.
const EnvPrefix = "FLIGHTSURETY"

const devSigningKey = "dev-secret-key-change-in-production"

// Config is the full process configuration.
type Config struct {
	Server   Server      `mapstructure:"server"`
	Ledger   Ledger      `mapstructure:"ledger"`
	Auth     Auth        `mapstructure:"auth"`
	Redis    RedisConfig `mapstructure:"redis"`
	Postgres Postgres    `mapstructure:"postgres"`
	Kafka    Kafka       `mapstructure:"kafka"`
	Journal  Journal     `mapstructure:"journal"`
	Log      Log         `mapstructure:"log"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Ledger configures the operations service.
type Ledger struct {
	Owner            string        `mapstructure:"owner"`
	OwnerName        string        `mapstructure:"owner_name"`
	Oracles          []string      `mapstructure:"oracles"`
	FundingThreshold uint64        `mapstructure:"funding_threshold"`
	MaxPremium       uint64        `mapstructure:"max_premium"`
	BootstrapSize    int           `mapstructure:"bootstrap_size"`
	TxTimeout        time.Duration `mapstructure:"tx_timeout"`
}

// Auth configures bearer token issuance and validation.
type Auth struct {
	SigningKey string        `mapstructure:"signing_key"`
	Issuer     string        `mapstructure:"issuer"`
	Audience   string        `mapstructure:"audience"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// RedisConfig configures the optional Redis client. An empty URL disables it.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Postgres configures the optional journal table. An empty URL disables it.
type Postgres struct {
	URL string `mapstructure:"url"`
}

// Kafka configures the optional journal topic. No brokers disables it.
type Kafka struct {
	Brokers           []string `mapstructure:"brokers"`
	Topic             string   `mapstructure:"topic"`
	Partitions        int32    `mapstructure:"partitions"`
	ReplicationFactor int16    `mapstructure:"replication_factor"`
}

// Journal configures the event journal.
type Journal struct {
	// BadgerDir is where the local journal lives. Empty keeps it in memory.
	BadgerDir   string `mapstructure:"badger_dir"`
	AsyncBuffer int    `mapstructure:"async_buffer"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("ledger.owner", "")
	v.SetDefault("ledger.owner_name", "Genesis Airline")
	v.SetDefault("ledger.oracles", []string{})
	v.SetDefault("ledger.funding_threshold", uint64(10_000_000_000))
	v.SetDefault("ledger.max_premium", uint64(1_000_000_000))
	v.SetDefault("ledger.bootstrap_size", 4)
	v.SetDefault("ledger.tx_timeout", 5*time.Second)

	v.SetDefault("auth.signing_key", devSigningKey)
	v.SetDefault("auth.issuer", "flightsurety")
	v.SetDefault("auth.audience", "flightsurety-api")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("postgres.url", "")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "flightsurety.journal")
	v.SetDefault("kafka.partitions", 1)
	v.SetDefault("kafka.replication_factor", 1)

	v.SetDefault("journal.badger_dir", "")
	v.SetDefault("journal.async_buffer", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configFile when it is non-empty, then overlays the environment.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = strs.SplitList(cfg.Kafka.Brokers)
	cfg.Ledger.Oracles = strs.SplitList(cfg.Ledger.Oracles)
	return cfg, nil
}

// Validate checks the settings serve needs.
func (c *Config) Validate() error {
	if _, err := c.Ledger.OwnerPrincipal(); err != nil {
		return err
	}
	if _, err := c.Ledger.OraclePrincipals(); err != nil {
		return err
	}
	if c.Ledger.BootstrapSize < 1 {
		return dErrors.New(dErrors.CodeInvalidInput, "ledger.bootstrap_size must be at least 1")
	}
	if c.Auth.SigningKey == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "auth.signing_key is required")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "log.format must be json or text")
	}
	return nil
}

// UsesDevSigningKey reports whether tokens are signed with the built-in key.
func (c *Config) UsesDevSigningKey() bool {
	return c.Auth.SigningKey == devSigningKey
}

// OwnerPrincipal parses the administrator principal.
func (l *Ledger) OwnerPrincipal() (domain.Principal, error) {
	if strings.TrimSpace(l.Owner) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "ledger.owner is required")
	}
	p, err := domain.ParsePrincipal(l.Owner)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "ledger.owner is not a valid principal")
	}
	return p, nil
}

// OraclePrincipals parses the status reporters.
func (l *Ledger) OraclePrincipals() ([]domain.Principal, error) {
	out := make([]domain.Principal, 0, len(l.Oracles))
	for _, raw := range l.Oracles {
		p, err := domain.ParsePrincipal(raw)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("ledger.oracles: %q is not a valid principal", raw))
		}
		out = append(out, p)
	}
	return out, nil
}
