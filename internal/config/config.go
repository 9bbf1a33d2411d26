package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Database drivers understood by the repository layer
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auction   AuctionConfig
	Scheduler SchedulerConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
	Seed bool // load sample listings on boot
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // memory, sqlite, postgres
	Path            string // sqlite file, ":memory:" allowed
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	AutoMigrate     bool
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// AuctionConfig holds bidding and settlement settings
type AuctionConfig struct {
	DefaultBidIncrement decimal.Decimal
	PaymentTimeout      time.Duration
	PaymentMethod       string
	NotifyBuffer        int
	NotifyWorkers       int
}

// SchedulerConfig holds auction close timer settings
type SchedulerConfig struct {
	Enabled       bool
	SweepInterval time.Duration

	// CloseLease is how long a close claim blocks other fires of the same
	// auction. A claim left by a crashed instance expires after it.
	CloseLease time.Duration
}

// Load loads configuration from an optional .env file, a TOML file and
// environment variables.
// Priority (highest to lowest):
// 1. Environment variables with AUCTION_ prefix (e.g., AUCTION_DATABASE_DRIVER)
// 2. the config file (path, or config.toml in the working directory)
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables always win over it
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("AUCTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
			Seed: v.GetBool("app.seed"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Path:            v.GetString("database.path"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Auction: AuctionConfig{
			PaymentTimeout: v.GetDuration("auction.payment_timeout"),
			PaymentMethod:  v.GetString("auction.payment_method"),
			NotifyBuffer:   v.GetInt("auction.notify_buffer"),
			NotifyWorkers:  v.GetInt("auction.notify_workers"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			SweepInterval: v.GetDuration("scheduler.sweep_interval"),
			CloseLease:    v.GetDuration("scheduler.close_lease"),
		},
	}

	if raw := v.GetString("auction.default_bid_increment"); raw != "" {
		inc, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("auction.default_bid_increment: %w", err)
		}
		cfg.Auction.DefaultBidIncrement = inc
	}

	applyDefaults(cfg, v)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config, v *viper.Viper) {
	if cfg.App.Name == "" {
		cfg.App.Name = "auction-engine"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if !v.IsSet("app.seed") {
		cfg.App.Seed = cfg.App.Env == "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverMemory
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "auction.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "auction"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if !v.IsSet("database.auto_migrate") {
		cfg.Database.AutoMigrate = true
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Auction.DefaultBidIncrement.IsZero() {
		cfg.Auction.DefaultBidIncrement = decimal.NewFromInt(1)
	}
	if cfg.Auction.PaymentTimeout == 0 {
		cfg.Auction.PaymentTimeout = 10 * time.Second
	}
	if cfg.Auction.PaymentMethod == "" {
		cfg.Auction.PaymentMethod = "card"
	}
	if cfg.Auction.NotifyBuffer == 0 {
		cfg.Auction.NotifyBuffer = 256
	}
	if cfg.Auction.NotifyWorkers == 0 {
		cfg.Auction.NotifyWorkers = 2
	}
	if !v.IsSet("scheduler.enabled") {
		cfg.Scheduler.Enabled = true
	}
	if cfg.Scheduler.SweepInterval == 0 {
		cfg.Scheduler.SweepInterval = time.Minute
	}
	if cfg.Scheduler.CloseLease == 0 {
		cfg.Scheduler.CloseLease = 2 * time.Minute
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("database.driver must be one of memory, sqlite, postgres; got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Auction.DefaultBidIncrement.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("auction.default_bid_increment must be positive")
	}
	if c.Auction.PaymentTimeout < 0 {
		return fmt.Errorf("auction.payment_timeout cannot be negative")
	}
	if c.Auction.NotifyWorkers < 0 || c.Auction.NotifyBuffer < 0 {
		return fmt.Errorf("auction.notify_workers and auction.notify_buffer cannot be negative")
	}
	if c.Scheduler.CloseLease < 0 {
		return fmt.Errorf("scheduler.close_lease cannot be negative")
	}

	if c.App.Env == "production" {
		if c.Database.Driver == DriverMemory {
			return fmt.Errorf("database.driver memory is not allowed in production")
		}
		if c.Database.Driver == DriverPostgres && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}
	return nil
}

// IsDevelopment reports whether the app runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// DSN returns the connection string for the configured driver
func (d *DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
