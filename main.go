package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LovationAdmin/finance-tracker/config"
	"github.com/LovationAdmin/finance-tracker/handlers"
	"github.com/LovationAdmin/finance-tracker/middleware"
	"github.com/LovationAdmin/finance-tracker/routes"
	"github.com/LovationAdmin/finance-tracker/services"
	"github.com/LovationAdmin/finance-tracker/store"
	"github.com/LovationAdmin/finance-tracker/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const version = "1.0.0"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	utils.IsProduction = cfg.Production
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	st, db, err := openStore(cfg)
	if err != nil {
		log.Fatal("Failed to open store:", err)
	}
	if db != nil {
		defer db.Close()
	}

	auth := services.NewAuthService(st, services.AuthConfig{
		JWTSecret:     cfg.JWTSecret,
		TokenTTL:      cfg.AccessTokenTTL,
		EncryptionKey: cfg.DataEncryptionKey,
		MaxAttempts:   cfg.LoginMaxAttempts,
		Window:        cfg.LoginWindow,
	})
	if cfg.DataEncryptionKey == "" {
		utils.SafeWarn("DATA_ENCRYPTION_KEY not set, TOTP secrets are stored unencrypted")
	}

	wsHandler := handlers.NewWSHandler(st)

	router := gin.New()
	router.Use(gin.Recovery())

	allowedOrigins := []string{cfg.FrontendURL}
	log.Printf("🌍 CORS: Allowing origins:")
	for _, origin := range allowedOrigins {
		log.Printf("   - %s", origin)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.RateLimiter())

	routes.Setup(router, auth, st, wsHandler, middleware.AuthMiddleware(auth))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": version,
			"store":   cfg.StoreDriver,
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	utils.LogStartup("Finance Tracker API", version, cfg.Port)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Websockets are hijacked connections that Shutdown does not wait for.
	if err := wsHandler.M.Close(); err != nil {
		log.Printf("⚠️ Error closing websockets: %v", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Server shutdown: %v", err)
	}
	if err := st.Close(); err != nil {
		log.Printf("⚠️ Error closing store: %v", err)
	}
	log.Println("✅ Server stopped")
}

// openStore builds the document store selected by STORE_DRIVER. db is nil for
// the in-memory store.
func openStore(cfg *config.Config) (store.Store, *sql.DB, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Println("⚠️ Using the in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil, nil
	}

	db, err := config.InitDB(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	log.Println("✅ Database connected successfully")

	if err := config.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, err
	}

	st, err := store.NewPostgresStore(db, cfg.DatabaseURL)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return st, db, nil
}
