package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Scheduler  SchedulerConfig
	Dispatcher DispatcherConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Debug       bool
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type SchedulerConfig struct {
	ScanInterval    time.Duration
	ShutdownTimeout time.Duration
}

type DispatcherConfig struct {
	ConnectionTimeout time.Duration
	RequestTimeout    time.Duration
	MaxIdleConns      int
	MaxIdleConnsPerHost int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config

	// App
	cfg.App.Name = viper.GetString("app.name")
	cfg.App.Environment = viper.GetString("app.environment")
	cfg.App.Debug = viper.GetBool("app.debug")

	// Server
	cfg.Server.Host = viper.GetString("server.host")
	cfg.Server.Port = viper.GetInt("server.port")
	cfg.Server.ReadTimeout = viper.GetDuration("server.read_timeout")
	cfg.Server.WriteTimeout = viper.GetDuration("server.write_timeout")
	cfg.Server.IdleTimeout = viper.GetDuration("server.idle_timeout")

	// Database
	cfg.Database.Host = viper.GetString("database.host")
	cfg.Database.Port = viper.GetInt("database.port")
	cfg.Database.User = viper.GetString("database.user")
	cfg.Database.Password = viper.GetString("database.password")
	cfg.Database.Name = viper.GetString("database.name")
	cfg.Database.SSLMode = viper.GetString("database.sslmode")
	cfg.Database.MaxOpenConns = viper.GetInt("database.max_open_conns")
	cfg.Database.MaxIdleConns = viper.GetInt("database.max_idle_conns")
	cfg.Database.ConnMaxLifetime = viper.GetDuration("database.conn_max_lifetime")

	// Scheduler
	cfg.Scheduler.ScanInterval = viper.GetDuration("scheduler.scan_interval")
	cfg.Scheduler.ShutdownTimeout = viper.GetDuration("scheduler.shutdown_timeout")

	// Dispatcher
	cfg.Dispatcher.ConnectionTimeout = viper.GetDuration("dispatcher.connection_timeout")
	cfg.Dispatcher.RequestTimeout = viper.GetDuration("dispatcher.request_timeout")
	cfg.Dispatcher.MaxIdleConns = viper.GetInt("dispatcher.max_idle_conns")
	cfg.Dispatcher.MaxIdleConnsPerHost = viper.GetInt("dispatcher.max_idle_conns_per_host")

	return &cfg, nil
}

func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "flowgate")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", true)

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.idle_timeout", "60s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.name", "flowgate")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	// Scheduler defaults
	viper.SetDefault("scheduler.scan_interval", "60s")
	viper.SetDefault("scheduler.shutdown_timeout", "30s")

	// Dispatcher defaults
	viper.SetDefault("dispatcher.connection_timeout", "10s")
	viper.SetDefault("dispatcher.request_timeout", "30s")
	viper.SetDefault("dispatcher.max_idle_conns", 100)
	viper.SetDefault("dispatcher.max_idle_conns_per_host", 10)
}
