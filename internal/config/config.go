package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the tradepost service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Discord  DiscordConfig
	Redis    RedisConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port      int
	RateLimit string
}

// DatabaseConfig holds storage settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
}

// AuthConfig holds session-token verification settings
type AuthConfig struct {
	JWTSecret string
}

// DiscordConfig holds webhook notification settings
type DiscordConfig struct {
	WebhookURL string
}

// RedisConfig holds the optional event stream settings
type RedisConfig struct {
	Addr    string
	Channel string
}

// LoadConfig reads configuration from .env and the environment
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("No config file found: %v", err)
	}

	viper.SetDefault("SERVER_PORT", 3000)
	viper.SetDefault("SERVER_RATE_LIMIT", "100-M")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_DSN", "tradepost.db")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", 3600)
	viper.SetDefault("REDIS_CHANNEL", "tradepost:events")

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetInt("SERVER_PORT"),
			RateLimit: viper.GetString("SERVER_RATE_LIMIT"),
		},
		Database: DatabaseConfig{
			Driver:          viper.GetString("DB_DRIVER"),
			DSN:             viper.GetString("DB_DSN"),
			MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: viper.GetInt("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			JWTSecret: viper.GetString("JWT_SECRET"),
		},
		Discord: DiscordConfig{
			WebhookURL: viper.GetString("DISCORD_WEBHOOK_URL"),
		},
		Redis: RedisConfig{
			Addr:    viper.GetString("REDIS_ADDR"),
			Channel: viper.GetString("REDIS_CHANNEL"),
		},
	}

	return cfg, nil
}
