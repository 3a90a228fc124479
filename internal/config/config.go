// internal/config/config.go
package config

import (
	"os"
	"strconv"
)

type Config struct {
	ServerPort    string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AMQPURL       string
	AdminAPIKey   string
	LogLevel      string
	LogJSON       bool
}

func Load() *Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	logJSON, _ := strconv.ParseBool(getEnv("LOG_JSON", "false"))

	return &Config{
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,
		AMQPURL:       getEnv("AMQP_URL", ""),
		AdminAPIKey:   getEnv("ADMIN_API_KEY", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogJSON:       logJSON,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
