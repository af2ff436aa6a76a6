package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"auction-platform/internal/domain"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Leader    LeaderConfig    `mapstructure:"leader"`
	Instance  InstanceConfig  `mapstructure:"instance"`
	Bidding   BiddingConfig   `mapstructure:"bidding"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
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
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type LeaderConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type BiddingConfig struct {
	MaxAttempts    int    `mapstructure:"max_attempts"`
	FirstBidPolicy string `mapstructure:"first_bid_policy"`
}

type SchedulerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Spec      string `mapstructure:"spec"`
	BatchSize int    `mapstructure:"batch_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var envBindings = map[string]string{
	"server.port":              "SERVER_PORT",
	"server.host":              "SERVER_HOST",
	"storage.driver":           "STORAGE_DRIVER",
	"redis.address":            "REDIS_ADDRESS",
	"redis.password":           "REDIS_PASSWORD",
	"redis.db":                 "REDIS_DB",
	"mysql.dsn":                "MYSQL_DSN",
	"mysql.max_open_conns":     "MYSQL_MAX_OPEN_CONNS",
	"mysql.max_idle_conns":     "MYSQL_MAX_IDLE_CONNS",
	"mysql.conn_max_lifetime":  "MYSQL_CONN_MAX_LIFETIME",
	"mysql.auto_migrate":       "MYSQL_AUTO_MIGRATE",
	"leader.enabled":           "LEADER_ENABLED",
	"leader.ttl":               "LEADER_TTL",
	"instance.id":              "INSTANCE_ID",
	"bidding.max_attempts":     "BIDDING_MAX_ATTEMPTS",
	"bidding.first_bid_policy": "BIDDING_FIRST_BID_POLICY",
	"scheduler.enabled":        "SCHEDULER_ENABLED",
	"scheduler.spec":           "SCHEDULER_SPEC",
	"scheduler.batch_size":     "SCHEDULER_BATCH_SIZE",
	"log.level":                "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("storage.driver", StorageMySQL)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true&loc=UTC")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.auto_migrate", true)
	v.SetDefault("leader.enabled", true)
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("instance.id", "")
	v.SetDefault("bidding.max_attempts", 3)
	v.SetDefault("bidding.first_bid_policy", string(domain.FirstBidAtLeastStartingPrice))
	v.SetDefault("scheduler.enabled", true)
	// every 5 minutes, seconds field first
	v.SetDefault("scheduler.spec", "0 */5 * * * *")
	v.SetDefault("scheduler.batch_size", 100)
	v.SetDefault("log.level", "info")
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/auction-platform/")

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return decode(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)

	if err := bindEnv(v); err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return decode(v)
}

func bindEnv(v *viper.Viper) error {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config.Instance.ID == "" {
		config.Instance.ID = "auction-service-" + uuid.NewString()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMySQL, StorageMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Bidding.MaxAttempts < 1 {
		return fmt.Errorf("config: bidding.max_attempts must be at least 1, got %d", c.Bidding.MaxAttempts)
	}
	if !domain.FirstBidPolicy(c.Bidding.FirstBidPolicy).IsValid() {
		return fmt.Errorf("config: unknown bidding.first_bid_policy %q", c.Bidding.FirstBidPolicy)
	}
	if c.Scheduler.BatchSize < 1 {
		return fmt.Errorf("config: scheduler.batch_size must be at least 1, got %d", c.Scheduler.BatchSize)
	}
	if c.Scheduler.Enabled && c.Scheduler.Spec == "" {
		return errors.New("config: scheduler.spec is required when the scheduler is enabled")
	}
	if c.Leader.Enabled && c.Leader.TTL < 3*time.Second {
		return fmt.Errorf("config: leader.ttl must be at least 3s, got %s", c.Leader.TTL)
	}
	return nil
}

// FirstBidPolicy returns the configured first bid policy.
func (c *Config) FirstBidPolicy() domain.FirstBidPolicy {
	return domain.FirstBidPolicy(c.Bidding.FirstBidPolicy)
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Storage: %s, Redis: %s, Instance: %s, Bidding: attempts=%d policy=%s, Scheduler: %q batch=%d",
		c.Server.Host,
		c.Server.Port,
		c.Storage.Driver,
		c.Redis.Address,
		c.Instance.ID,
		c.Bidding.MaxAttempts,
		c.Bidding.FirstBidPolicy,
		c.Scheduler.Spec,
		c.Scheduler.BatchSize,
	)
}
