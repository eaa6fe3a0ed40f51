// Command alertcheck runs one alert evaluation pass and exits. Meant for
// cron-style scheduling next to the long-running server.
package main

import (
	"context"
	"log"
	"time"

	"r6market/internal/config"
	"r6market/internal/database"
	"r6market/internal/services/alerts"
	"r6market/internal/services/ubi"
	"r6market/internal/store"

	"github.com/joho/godotenv"
)

type logNotifier struct{}

func (logNotifier) Notify(v interface{}) {
	log.Printf("[ALERT] %+v", v)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	st := store.New(db)
	client := ubi.NewClient(cfg.MarketAPIURL)
	evaluator := alerts.New(st, client, logNotifier{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := evaluator.CheckOnce(ctx); err != nil {
		log.Fatal("Alert check failed:", err)
	}
	log.Println("Alert check completed")
}
