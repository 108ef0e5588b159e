package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Chain      ChainConfig
	Settlement SettlementConfig
	Relay      RelayConfig
	Token      TokenConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

// NetworkConfig identifies one EVM network the verifier can read from.
type NetworkConfig struct {
	RPCURL  string
	ChainID int64
}

type ChainConfig struct {
	Networks      map[string]NetworkConfig
	VerifyTimeout time.Duration
}

type SettlementConfig struct {
	// Enabled gates on-chain distribution; with it off every payment is
	// recorded as a direct peer-to-peer transfer.
	Enabled    bool
	PrivateKey string
	FeeBps     int64
	Timeout    time.Duration
}

type RelayConfig struct {
	// InternalBaseURL is this gateway's own address, used as the first hop of
	// a double relay.
	InternalBaseURL string
	InternalSecret  string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type TokenConfig struct {
	ValidityWindow time.Duration
	// NotBeforeSkew shifts the earliest-valid timestamp backwards to tolerate
	// clock drift between instances.
	NotBeforeSkew time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled   bool
	PerMinute int
}

// Load reads config.yaml (optional) with PAYGATE_-prefixed env overrides.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAYGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("database.dsn", "paygate:paygate@tcp(localhost:3306)/paygate?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiry", 24*time.Hour)
	v.SetDefault("jwt.issuer", "paygate")
	v.SetDefault("chain.verify_timeout", 15*time.Second)
	v.SetDefault("settlement.enabled", false)
	v.SetDefault("settlement.fee_bps", 300)
	v.SetDefault("settlement.timeout", 30*time.Second)
	v.SetDefault("relay.internal_base_url", "http://localhost:8080")
	v.SetDefault("relay.timeout", 30*time.Second)
	v.SetDefault("relay.breaker_failures", 5)
	v.SetDefault("relay.breaker_timeout", 30*time.Second)
	v.SetDefault("token.validity_window", 24*time.Hour)
	v.SetDefault("token.not_before_skew", time.Minute)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.per_minute", 120)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("server.port"),
			Env:          v.GetString("server.env"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("database.dsn"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Expiry: v.GetDuration("jwt.expiry"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Chain: ChainConfig{
			Networks:      loadNetworks(v),
			VerifyTimeout: v.GetDuration("chain.verify_timeout"),
		},
		Settlement: SettlementConfig{
			Enabled:    v.GetBool("settlement.enabled"),
			PrivateKey: v.GetString("settlement.private_key"),
			FeeBps:     v.GetInt64("settlement.fee_bps"),
			Timeout:    v.GetDuration("settlement.timeout"),
		},
		Relay: RelayConfig{
			InternalBaseURL: v.GetString("relay.internal_base_url"),
			InternalSecret:  v.GetString("relay.internal_secret"),
			Timeout:         v.GetDuration("relay.timeout"),
			BreakerFailures: v.GetUint32("relay.breaker_failures"),
			BreakerTimeout:  v.GetDuration("relay.breaker_timeout"),
		},
		Token: TokenConfig{
			ValidityWindow: v.GetDuration("token.validity_window"),
			NotBeforeSkew:  v.GetDuration("token.not_before_skew"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			Enabled:   v.GetBool("ratelimit.enabled"),
			PerMinute: v.GetInt("ratelimit.per_minute"),
		},
	}

	if cfg.Settlement.FeeBps < 0 || cfg.Settlement.FeeBps > 10000 {
		return nil, fmt.Errorf("settlement.fee_bps must be within [0,10000], got %d", cfg.Settlement.FeeBps)
	}
	return cfg, nil
}

func loadNetworks(v *viper.Viper) map[string]NetworkConfig {
	networks := map[string]NetworkConfig{}
	for name := range v.GetStringMap("chain.networks") {
		networks[name] = NetworkConfig{
			RPCURL:  v.GetString("chain.networks." + name + ".rpc_url"),
			ChainID: v.GetInt64("chain.networks." + name + ".chain_id"),
		}
	}
	if len(networks) == 0 {
		// Sensible dev defaults; production deployments configure their own
		// node URLs.
		networks["sepolia"] = NetworkConfig{RPCURL: "https://rpc.sepolia.org", ChainID: 11155111}
	}
	return networks
}
