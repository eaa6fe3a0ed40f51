package config

import (
	"os"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// Marketplace GraphQL endpoint; overridable for testing against a stub.
	MarketAPIURL string

	// Listen address of the credential-capturing proxy. Empty disables it.
	CaptureAddr string
	// Upstream the capture proxy forwards to.
	CaptureTarget string
}

const defaultMarketAPIURL = "https://public-ubiservices.ubi.com/v1/profiles/me/uplay/graphql"

func Load() *Config {
	defaultDSN := "root:r6market@tcp(127.0.0.1:3306)/r6market?charset=utf8mb4&parseTime=True&loc=Local"

	return &Config{
		DatabaseURL:   getEnv("DATABASE_URL", defaultDSN),
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		MarketAPIURL:  getEnv("MARKET_API_URL", defaultMarketAPIURL),
		CaptureAddr:   getEnv("CAPTURE_ADDR", ""),
		CaptureTarget: getEnv("CAPTURE_TARGET", "https://public-ubiservices.ubi.com"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
