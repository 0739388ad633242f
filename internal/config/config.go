package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DatabaseDriver        string
	DatabaseURL           string
	Port                  string
	AppEnv                string
	LogLevel              string
	LogPretty             bool
	SupervisorCounselorID int64
	MaxFormRows           int
	Debug                 bool
}

func Load() *Config {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	debug := getEnvBool("DEBUG", false)
	logLevel := getEnv("LOG_LEVEL", "info")
	if debug {
		logLevel = "debug"
	}

	return &Config{
		DatabaseDriver:        getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:           getEnv("DATABASE_URL", "student_support_center.db"),
		Port:                  getEnv("PORT", "3000"),
		AppEnv:                getEnv("APP_ENV", "production"),
		LogLevel:              logLevel,
		LogPretty:             getEnvBool("LOG_PRETTY", true),
		SupervisorCounselorID: int64(getEnvInt("SUPERVISOR_COUNSELOR_ID", 113)),
		MaxFormRows:           getEnvInt("MAX_FORM_ROWS", 50),
		Debug:                 debug,
	}
}

// Debugf logs a formatted message only when DEBUG is enabled
func (c *Config) Debugf(format string, v ...interface{}) {
	if c.Debug {
		log.Debug().Msgf(format, v...)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
