package config

import (
	"os"
	"slices"

	"bikey/internal/logger"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverBolt     = "bolt"
)

type Config struct {
	GeneralVersion             string `mapstructure:"GENERAL_VERSION"`
	Environment                string `mapstructure:"ENVIRONMENT"`
	ServerPort                 int    `mapstructure:"SERVER_PORT"`
	DatabaseDriver             string `mapstructure:"DB_DRIVER"`
	DatabasePath               string `mapstructure:"DB_PATH"`
	DatabaseHost               string `mapstructure:"DB_HOST"`
	DatabasePort               int    `mapstructure:"DB_PORT"`
	DatabaseName               string `mapstructure:"DB_NAME"`
	DatabaseUser               string `mapstructure:"DB_USER"`
	DatabasePassword           string `mapstructure:"DB_PASSWORD"`
	DatabaseCacheAddress       string `mapstructure:"DB_CACHE_ADDRESS"`
	DatabaseCachePort          int    `mapstructure:"DB_CACHE_PORT"`
	CorsAllowOrigins           string `mapstructure:"CORS_ALLOW_ORIGINS"`
	APITokenSecret             string `mapstructure:"API_TOKEN_SECRET"`
	ImportInboxDir             string `mapstructure:"IMPORT_INBOX_DIR"`
	ImportInboxIntervalMinutes int    `mapstructure:"IMPORT_INBOX_INTERVAL_MINUTES"`
	SchedulerEnabled           bool   `mapstructure:"SCHEDULER_ENABLED"`
}

var envVars = []string{
	"GENERAL_VERSION", "ENVIRONMENT", "SERVER_PORT",
	"DB_DRIVER", "DB_PATH", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
	"DB_CACHE_ADDRESS", "DB_CACHE_PORT",
	"CORS_ALLOW_ORIGINS", "API_TOKEN_SECRET",
	"IMPORT_INBOX_DIR", "IMPORT_INBOX_INTERVAL_MINUTES", "SCHEDULER_ENABLED",
}

var ConfigInstance Config

// InitConfig loads the configuration from the environment, falling back to
// .env and .env.local in the working directory.
func InitConfig() (Config, error) {
	return New(viper.New())
}

func New(v *viper.Viper) (Config, error) {
	log := logger.New("config").Function("New")
	log.Info("Initializing config")

	v.AutomaticEnv()
	setDefaults(v)

	for _, env := range envVars {
		if err := v.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	_, portSet := os.LookupEnv("SERVER_PORT")
	_, driverSet := os.LookupEnv("DB_DRIVER")
	if portSet && driverSet {
		log.Info("Environment variables detected, skipping file loading")
	} else {
		log.Info("Environment variables not found, attempting to load from files")

		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			log.Warn("Could not find .env file", "error", err)
		} else {
			log.Info("Loaded .env file")
		}

		v.SetConfigFile(".env.local")
		if err := v.MergeInConfig(); err != nil {
			log.Debug("No .env.local file found", "error", err)
		} else {
			log.Info("Loaded .env.local overrides")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	if err := validateConfig(config, log); err != nil {
		return Config{}, err
	}

	log.Info("Successfully initialized config",
		"environment", config.Environment,
		"driver", config.DatabaseDriver,
		"port", config.ServerPort,
	)
	ConfigInstance = config
	return config, nil
}

func GetConfig() Config {
	return ConfigInstance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("SERVER_PORT", 8280)
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("IMPORT_INBOX_INTERVAL_MINUTES", 5)
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
}

func validateConfig(config Config, log logger.Logger) error {
	if config.ServerPort <= 0 || config.ServerPort > 65535 {
		return log.Error("Fatal error: invalid server port", "port", config.ServerPort)
	}

	if !slices.Contains([]string{DriverPostgres, DriverSQLite, DriverBolt}, config.DatabaseDriver) {
		return log.Error("Fatal error: unknown database driver", "driver", config.DatabaseDriver)
	}

	switch config.DatabaseDriver {
	case DriverPostgres:
		if config.DatabaseHost == "" || config.DatabaseName == "" || config.DatabaseUser == "" {
			return log.Error(
				"Fatal error: DB_HOST, DB_NAME and DB_USER are required for postgres",
				"host", config.DatabaseHost,
				"name", config.DatabaseName,
			)
		}
	case DriverSQLite, DriverBolt:
		if config.DatabasePath == "" {
			return log.Error("Fatal error: DB_PATH is required", "driver", config.DatabaseDriver)
		}
	}

	if config.ImportInboxDir != "" && config.ImportInboxIntervalMinutes <= 0 {
		return log.Error(
			"Fatal error: IMPORT_INBOX_INTERVAL_MINUTES must be positive",
			"interval", config.ImportInboxIntervalMinutes,
		)
	}

	return nil
}
