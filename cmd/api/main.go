// cmd/api/main.go
// Main entry point for the application
// This file bootstraps all components and starts the server

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Internal packages
	"github.com/pairlink/pairlink-backend/internal/auth"
	"github.com/pairlink/pairlink-backend/internal/blinddate"
	"github.com/pairlink/pairlink-backend/internal/common/database"
	"github.com/pairlink/pairlink-backend/internal/config"
	"github.com/pairlink/pairlink-backend/internal/matchmaking"
	"github.com/pairlink/pairlink-backend/internal/session"
	"github.com/pairlink/pairlink-backend/internal/videodating"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("========================================")
	log.Println("🚀 Starting PairLink Video Dating API")
	log.Println("========================================")

	// 1. Load environment variables
	log.Println("📁 Step 1: Loading .env file...")
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found (%v), using environment variables", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// 2. Load configuration
	log.Println("\n📋 Step 2: Loading configuration...")
	cfg := config.Load()
	log.Printf("✅ Configuration loaded")

	// 3. Validate configuration
	log.Println("\n✔️  Step 3: Validating configuration...")
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed:", err)
	}
	log.Println("✅ Configuration is valid")

	// 4. Connect to PostgreSQL (optional)
	log.Println("\n🗄️  Step 4: Connecting to PostgreSQL...")
	var db *sqlx.DB

	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.NewPostgresDBFromURL(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("❌ Failed to connect to PostgreSQL:", err)
		}
		defer db.Close()
		log.Println("✅ Connected to PostgreSQL successfully")
	} else {
		log.Println("⚠️  DATABASE_URL not configured, session archive and reports disabled")
	}

	// 5. Connect to Redis (optional)
	log.Println("\n📮 Step 5: Connecting to Redis...")
	var redisClient *redis.Client

	if cfg.RedisURL != "" {
		var err error
		redisClient, err = database.NewRedisClientFromURL(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable (%v), continuing without Redis", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Println("✅ Connected to Redis successfully")
		}
	} else {
		log.Println("⚠️  REDIS_URL not configured, skipping Redis connection")
	}

	// 6. Initialize session registry
	log.Println("\n🗂️  Step 6: Initializing session registry...")

	var archiver session.Archiver
	if db != nil {
		archiver = session.NewPostgresArchive(db)
		log.Println("   ✅ Session archive enabled")
	}

	registry := session.NewRegistry(archiver)
	log.Println("✅ Session registry initialized")

	// 7. Initialize blind date controller
	log.Println("\n🙈 Step 7: Initializing blind date controller...")
	blindController := blinddate.NewController(cfg.BlurInitialPx, cfg.BlurDecrementPx)
	log.Printf("✅ Blind date controller initialized (blur %dpx, step %dpx)", cfg.BlurInitialPx, cfg.BlurDecrementPx)

	// 8. Initialize video dating module
	log.Println("\n💘 Step 8: Initializing video dating module...")

	var stats *matchmaking.RedisStats
	if redisClient != nil {
		stats = matchmaking.NewRedisStats(redisClient)
		log.Println("   ✅ Queue stats mirrored to Redis")
	}

	var reportStore videodating.ReportStore
	if db != nil {
		reportStore = videodating.NewPostgresReports(db, redisClient)
		log.Println("   ✅ Abuse report store enabled")
	}

	hub := videodating.NewHub()
	service := videodating.NewService(registry, blindController, hub, stats, reportStore, cfg.EstimatedWaitPerPos)
	hub.SetDisconnectHandler(service)

	go hub.Run()
	go service.RunStatusBroadcaster(cfg.QueueStatusInterval)

	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)
	handler := videodating.NewHandler(service, hub, authMiddleware, cfg.AllowedOrigins)
	log.Println("✅ Video dating module initialized")

	// 9. Setup routes
	log.Println("\n🛣️  Step 9: Setting up routes...")
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheck(hub, service)).Methods("GET")
	router.HandleFunc("/api", apiInfo).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	videodating.RegisterRoutes(router, handler, authMiddleware)
	log.Println("   ✅ Video dating routes registered")

	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)
	log.Println("✅ Routes configured")

	// 10. Create and start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Println("\n========================================")
		log.Printf("🚀 Server starting on http://localhost%s", srv.Addr)
		log.Printf("🌍 Environment: %s", cfg.Environment)
		log.Println("========================================")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n⚠️  Shutdown signal received...")

	log.Println("   - Stopping queue status broadcaster...")
	service.Stop()

	log.Println("   - Shutting down websocket hub...")
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server forced to shutdown:", err)
	}

	log.Println("✅ Server exited gracefully")
}

var startTime = time.Now()

// healthCheck returns server health status plus live counters
func healthCheck(hub *videodating.Hub, service *videodating.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := service.Stats()

		response := map[string]interface{}{
			"status":         "healthy",
			"timestamp":      time.Now().Format(time.RFC3339),
			"uptime":         time.Since(startTime).String(),
			"connections":    hub.GetActiveConnections(),
			"queueSize":      stats.QueueSize,
			"activeSessions": stats.ActiveSessions,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

// apiInfo returns API information
func apiInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{
        "name": "PairLink Video Dating API",
        "version": "1.0.0",
        "status": "running",
        "endpoints": {
            "health": "GET /health",
            "metrics": "GET /metrics",
            "websocket": "GET /ws/video-dating",
            "videoDating": {
                "session": "GET /api/v1/video-dating/sessions/{id}",
                "queueStats": "GET /api/v1/video-dating/queue/stats",
                "directMatch": "POST /api/v1/video-dating/matches"
            }
        }
    }`))
}

// Middleware functions

// loggingMiddleware logs all requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		log.Printf("→ %s %s from %s", r.Method, r.RequestURI, r.RemoteAddr)

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		log.Printf("← %s %s [%d] %v", r.Method, r.RequestURI, wrapped.statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working through the logging wrapper
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
