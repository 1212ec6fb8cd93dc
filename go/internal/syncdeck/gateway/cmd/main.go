package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/mcdev12/activebits/go/internal/dbconfig"
	"github.com/mcdev12/activebits/go/internal/syncdeck/gateway"
	"github.com/mcdev12/activebits/go/internal/syncdeck/store"
	storedb "github.com/mcdev12/activebits/go/internal/syncdeck/store/db"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	port := getEnv("GATEWAY_PORT", "8082")

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.Relay = getEnv("SYNCDECK_RELAY", gateway.RelayLocal)
	gatewayConfig.JetStreamConfig.URL = getEnv("NATS_URL", gatewayConfig.JetStreamConfig.URL)
	gatewayConfig.JetStreamConfig.MaxAge = getEnvAsDuration("SYNCDECK_RELAY_MAX_AGE", gatewayConfig.JetStreamConfig.MaxAge)
	gatewayConfig.RedisConfig.Addr = getEnv("REDIS_ADDR", gatewayConfig.RedisConfig.Addr)
	gatewayConfig.RedisConfig.Password = os.Getenv("REDIS_PASSWORD")
	gatewayConfig.ConnectionConfig.SendBufferSize = getEnvAsInt("SYNCDECK_SEND_BUFFER", gatewayConfig.ConnectionConfig.SendBufferSize)

	if path := os.Getenv("SYNCDECK_CONFIG"); path != "" {
		fileConfig, err := gateway.LoadFileConfig(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to load config file")
		}
		fileConfig.Apply(&gatewayConfig)
	}

	sessionStore, closeStore := setupStore()
	defer closeStore()

	log.Info().
		Str("relay", gatewayConfig.Relay).
		Str("nats_url", gatewayConfig.JetStreamConfig.URL).
		Str("port", port).
		Msg("starting syncdeck gateway")

	gatewayService, err := gateway.NewService(gatewayConfig, sessionStore, clockwork.NewRealClock())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		stats := gatewayService.GetStats()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"service":"syncdeck-gateway","version":"1.0.0","connections":%d,"sessions":%d}`,
			stats.TotalConnections, stats.ActiveSessions)
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           h2c.NewHandler(gatewayService.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	select {
	case <-serviceDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("gateway service did not stop in time")
	}

	log.Info().Msg("syncdeck gateway shutdown complete")
}

// setupStore picks the snapshot store from SYNCDECK_STORE.
func setupStore() (store.SessionStore, func()) {
	switch kind := getEnv("SYNCDECK_STORE", "memory"); kind {
	case "memory":
		return store.NewMemoryStore(clockwork.NewRealClock()), func() {}
	case "postgres":
		dbCfg := dbconfig.NewConfigFromEnv("syncdeck-gateway")
		db, err := sql.Open("postgres", dbCfg.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		db.SetMaxOpenConns(dbCfg.MaxOpenConns)
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		log.Info().Str("database", dbCfg.Database).Msg("using postgres session store")
		return store.NewPostgresStore(storedb.New(db)), func() { db.Close() }
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		ttl := getEnvAsDuration("SYNCDECK_SNAPSHOT_TTL", 7*24*time.Hour)
		log.Info().Dur("ttl", ttl).Msg("using redis session store")
		return store.NewRedisStore(rdb, "syncdeck:snapshot", ttl, clockwork.NewRealClock()), func() { rdb.Close() }
	default:
		log.Fatal().Str("store", kind).Msg("unknown SYNCDECK_STORE")
		return nil, nil
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
