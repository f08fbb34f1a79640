package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forum/auth"
	"forum/config"
	"forum/database"
	"forum/handlers"
	"forum/middleware"
	"forum/repository"
	"forum/repository/mongostore"
	"forum/repository/pgstore"
	"forum/repository/sqlitestore"
	"forum/routes"
	"forum/service"

	"github.com/gin-gonic/gin"
)

const connectAttempts = 3

func main() {
	log.Println("🚀 Starting forum server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("❌ Invalid configuration: ", err)
	}

	// ===== STORAGE WITH RETRY =====
	log.Printf("🔌 Connecting to %s store...", cfg.StoreDriver)

	var store repository.Store
	for i := 1; i <= connectAttempts; i++ {
		store, err = openStore(context.Background(), cfg)
		if err == nil {
			break
		}
		log.Printf("❌ Store connection attempt %d failed: %v", i, err)
		if i < connectAttempts {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("❌ Failed to open store: ", err)
	}
	log.Printf("✅ %s store ready", cfg.StoreDriver)

	// ===== GIN MODE =====
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
		log.Println("⚙️ Running in RELEASE mode")
	} else {
		gin.SetMode(gin.DebugMode)
		log.Println("⚙️ Running in DEBUG mode")
	}

	// ===== SERVICES =====
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	h := handlers.New(
		service.NewAccounts(store, issuer),
		service.NewDrafts(store),
		service.NewPublisher(store, store),
		service.NewPosts(store),
		service.NewFavorites(store),
	)

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit, time.Minute)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepLimiter(sweepCtx, limiter)

	router := routes.SetupRouter(h, issuer, routes.Options{
		AllowOrigins: cfg.CORSOrigins,
		AuthLimiter:  limiter,
	})

	// ===== SERVER CONFIG =====
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ Server error: ", err)
		}
	}()

	// ===== GRACEFUL SHUTDOWN =====
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("❌ Forced shutdown:", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Println("❌ Store close:", err)
	}

	log.Println("👋 Server stopped gracefully")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := database.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		store, err := mongostore.New(ctx, client, cfg.MongoDatabase)
		if err != nil {
			_ = database.DisconnectMongo(context.Background(), client)
			return nil, err
		}
		return store, nil

	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		store, err := pgstore.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil

	case config.DriverSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store, err := sqlitestore.New(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// sweepLimiter drops idle rate limiter entries until ctx is done.
func sweepLimiter(ctx context.Context, rl *middleware.IPRateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}
