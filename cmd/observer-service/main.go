package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nft-marketplace/internal/config"
	marketredis "nft-marketplace/internal/infrastructure/redis"
	marketws "nft-marketplace/internal/infrastructure/websocket"
	"nft-marketplace/internal/domain"
	"nft-marketplace/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
)

// The observer service relays the engine's listing notifications to
// websocket clients: one room per asset id. It holds no engine state.
func main() {
	log := logger.New()
	log.Info("Starting Observer Service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	connManager := marketws.NewConnectionManager(log)
	wsHandler := marketws.NewHandler(connManager, log)
	subscriber := marketredis.NewEventSubscriber(rdb, log)

	subCtx, stopSubscriber := context.WithCancel(context.Background())
	defer stopSubscriber()

	go func() {
		err := subscriber.SubscribeToListingEvents(subCtx, func(event *domain.ListingEvent) error {
			return connManager.BroadcastToAsset(event.AssetID, event)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event subscription ended", "error", err)
		}
	}()

	router := mux.NewRouter()
	router.HandleFunc("/ws/listings/{assetID}", wsHandler.HandleConnection)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"observer","timestamp":%q}`, time.Now().Format(time.RFC3339))
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port+1)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	log.Info("Starting observer server", "address", serverAddr)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down observer service...")

	stopSubscriber()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Observer service stopped")
}
