package main

import (
	"log"
	"net/http"

	"r6market/internal/api"
	"r6market/internal/capture"
	"r6market/internal/config"
	"r6market/internal/database"
	"r6market/internal/services/alerts"
	"r6market/internal/services/refresher"
	"r6market/internal/services/tradesync"
	"r6market/internal/services/ubi"
	"r6market/internal/store"
	"r6market/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	st := store.New(db)

	// A restart mid-refresh leaves the in-progress flags stale.
	if err := st.ResetRefreshFlags(); err != nil {
		log.Fatal("Failed to reset refresh flags:", err)
	}
	settings, err := st.EnsureDefaultSettings()
	if err != nil {
		log.Fatal("Failed to initialize settings:", err)
	}

	client := ubi.NewClient(cfg.MarketAPIURL)
	syncer := tradesync.New(st, client)
	rf := refresher.New(st, client, syncer)

	hub := ws.NewHub()
	go hub.Run()

	evaluator := alerts.New(st, client, hub)
	evaluator.Reset(settings)

	if cfg.CaptureAddr != "" {
		proxy, err := capture.New(st, cfg.CaptureTarget)
		if err != nil {
			log.Fatal("Failed to start capture proxy:", err)
		}
		go func() {
			log.Printf("Capture proxy listening on %s -> %s", cfg.CaptureAddr, cfg.CaptureTarget)
			if err := http.ListenAndServe(cfg.CaptureAddr, proxy); err != nil {
				log.Fatal("Capture proxy failed:", err)
			}
		}()
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	api.SetupRoutes(r.Group("/api/v1"), st, rf, evaluator, hub)
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request)
	})

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
