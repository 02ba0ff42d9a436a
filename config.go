package main

import (
	"os"
	"strings"
)

type Config struct {
	Port         string
	Env          string
	MongoURI     string
	MongoDB      string
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string
}

func LoadConfig() *Config {
	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		Env:        getEnv("APP_ENV", "development"),
		MongoURI:   getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:    getEnv("MONGO_DB", "storefront"),
		RedisURL:   getEnv("REDIS_URL", ""),
		KafkaTopic: getEnv("KAFKA_TOPIC", "order.events"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
