package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Leader   LeaderConfig   `mapstructure:"leader"`
	Instance InstanceConfig `mapstructure:"instance"`
	Registry RegistryConfig `mapstructure:"registry"`
	Market   MarketConfig   `mapstructure:"market"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

// RegistryConfig points at the external asset registry / settlement service.
type RegistryConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MarketConfig is the engine's constructor-time configuration: the fee
// percentages, the privileged identities and the auction timing knobs.
type MarketConfig struct {
	EngineAccount      string        `mapstructure:"engine_account"`
	Administrator      string        `mapstructure:"administrator"`
	Curator            string        `mapstructure:"curator"`
	CuratorCutPct      uint64        `mapstructure:"curator_cut_pct"`
	ArtistRoyaltyPct   uint64        `mapstructure:"artist_royalty_pct"`
	CreatorRoyaltyPct  uint64        `mapstructure:"creator_royalty_pct"`
	MinBidIncrementPct uint64        `mapstructure:"min_bid_increment_pct"`
	TimeBuffer         time.Duration `mapstructure:"time_buffer"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("mysql.dsn", "market_user:market_pass@tcp(localhost:3306)/market_db?parseTime=true")
	viper.SetDefault("mysql.max_open_conns", 25)
	viper.SetDefault("mysql.max_idle_conns", 10)
	viper.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("leader.ttl", 30*time.Second)
	viper.SetDefault("instance.id", "marketplace-service-1")
	viper.SetDefault("registry.base_url", "http://localhost:9090")
	viper.SetDefault("registry.timeout", 10*time.Second)
	viper.SetDefault("market.engine_account", "marketplace-escrow")
	viper.SetDefault("market.administrator", "admin")
	viper.SetDefault("market.curator", "curator")
	viper.SetDefault("market.curator_cut_pct", 5)
	viper.SetDefault("market.artist_royalty_pct", 10)
	viper.SetDefault("market.creator_royalty_pct", 5)
	viper.SetDefault("market.min_bid_increment_pct", 5)
	viper.SetDefault("market.time_buffer", 15*time.Minute)
	viper.SetDefault("market.sweep_interval", 30*time.Second)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/nft-marketplace/")

	viper.AutomaticEnv()

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("leader.ttl", "LEADER_TTL")
	viper.BindEnv("instance.id", "INSTANCE_ID")
	viper.BindEnv("registry.base_url", "REGISTRY_BASE_URL")
	viper.BindEnv("market.engine_account", "MARKET_ENGINE_ACCOUNT")
	viper.BindEnv("market.administrator", "MARKET_ADMINISTRATOR")
	viper.BindEnv("market.curator", "MARKET_CURATOR")
	viper.BindEnv("market.curator_cut_pct", "MARKET_CURATOR_CUT_PCT")
	viper.BindEnv("market.artist_royalty_pct", "MARKET_ARTIST_ROYALTY_PCT")
	viper.BindEnv("market.creator_royalty_pct", "MARKET_CREATOR_ROYALTY_PCT")
	viper.BindEnv("market.time_buffer", "MARKET_TIME_BUFFER")
	viper.BindEnv("market.sweep_interval", "MARKET_SWEEP_INTERVAL")

	// Config file is optional; defaults and env vars are enough to boot.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Market.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects fee schedules that cannot split a payment.
func (m MarketConfig) Validate() error {
	total := m.CuratorCutPct + m.ArtistRoyaltyPct + m.CreatorRoyaltyPct
	if total > 100 {
		return fmt.Errorf("fee percentages sum to %d, must not exceed 100", total)
	}
	if m.EngineAccount == "" {
		return fmt.Errorf("engine account must be configured")
	}
	if m.TimeBuffer <= 0 {
		return fmt.Errorf("time buffer must be positive")
	}
	return nil
}
