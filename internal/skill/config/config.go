package config

import (
	"flag"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the application configuration parameters.
// Each field corresponds to an expected environment variable.
type Config struct {
	EnvLogsLevel    string `env:"LOG_LEVEL"`         // Log level for the application (e.g., DEBUG, INFO)
	EnvLogFileName  string `env:"LOG_FILE_NAME"`     // File's name for log (e.g., Skill.log)
	EnvStoragePath  string `env:"FILE_STORAGE_PATH"` // File path of the development profile store
	EnvHTTPServer   string `env:"HTTP_SERVER"`       // Listen address of the webhook server (e.g., :8080)
	EnvMapsEndpoint string `env:"MAPS_API_ENDPOINT"` // Root URL of the Google Maps web services
	EnvMapsApiKey   string `env:"MAPS_API_KEY"`      // API key for the Google Maps web services
	EnvDatabaseDSN  string `env:"DATABASE_DSN"`      // MySQL DSN; when empty the file store is used
	EnvBotToken     string `env:"TOKEN_BOT"`         // Telegram Bot Token of the development console bot
}

// NewConfig initializes a new Config instance from flags and environment
// variables, loading skill.env first when it exists. Environment variables
// override flag values.
func NewConfig() (*Config, error) {
	if err := godotenv.Load("skill.env"); err != nil {
		logrus.Infof("No skill.env file loaded: %v", err)
	}

	cfg := &Config{}
	flag.StringVar(&cfg.EnvLogsLevel, "l", "info", "Set logging level")
	flag.StringVar(&cfg.EnvLogFileName, "f", "skill.log", "Set log file name")
	flag.StringVar(&cfg.EnvHTTPServer, "a", ":8080", "Set webhook listen address")
	flag.StringVar(&cfg.EnvStoragePath, "s", "transit_users.json", "Set profile storage file path")
	flag.StringVar(&cfg.EnvMapsEndpoint, "m", "https://maps.googleapis.com/maps/api", "Set maps API endpoint")
	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
