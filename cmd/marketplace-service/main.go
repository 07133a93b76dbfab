package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nft-marketplace/internal/api/handlers"
	"nft-marketplace/internal/config"
	"nft-marketplace/internal/infrastructure/leader"
	"nft-marketplace/internal/infrastructure/mysql"
	marketredis "nft-marketplace/internal/infrastructure/redis"
	"nft-marketplace/internal/infrastructure/registry"
	"nft-marketplace/internal/services"
	"nft-marketplace/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting Marketplace Service")

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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}()

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// External collaborators: asset registry and settlement substrate.
	registryClient := registry.NewClient(cfg.Registry.BaseURL, cfg.Registry.Timeout)

	// Engine assembly.
	listingStore := mysql.NewListingRepository(db)
	stateCache := marketredis.NewStateCache(rdb)
	withdrawals := marketredis.NewWithdrawalBook(rdb)
	eventPublisher := marketredis.NewEventPublisher(rdb)
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)
	clock := services.SystemClock()

	ledger := services.NewListingLedger(listingStore, stateCache, log)
	if err := ledger.Restore(ctx); err != nil {
		log.Error("Failed to restore listing state", "error", err)
		os.Exit(1)
	}

	guard := services.NewAccessGuard(cfg.Market.Administrator, cfg.Market.Curator)
	fees := services.NewFeeDistributor(cfg.Market.CuratorCutPct,
		cfg.Market.ArtistRoyaltyPct, cfg.Market.CreatorRoyaltyPct)
	custodian := services.NewCustodian(registryClient, registryClient, withdrawals,
		cfg.Market.EngineAccount, log)

	saleEngine := services.NewSaleEngine(ledger, registryClient, custodian, fees,
		guard, eventPublisher, clock, log)
	auctionEngine := services.NewAuctionEngine(ledger, registryClient, custodian, fees,
		guard, eventPublisher, clock, cfg.Market.MinBidIncrementPct, cfg.Market.TimeBuffer, log)

	sweeper := services.NewSettlementSweeper(ledger, auctionEngine, leaderElection,
		clock, cfg.Instance.ID, cfg.Market.SweepInterval, log)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))
	e.Use(middleware.Recover())

	listingHandler := handlers.NewListingHandler(saleEngine, auctionEngine, custodian,
		ledger, guard, clock, log)
	listingHandler.Register(e.Group("/api/v1"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "marketplace",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	go func() {
		if err := sweeper.Start(context.Background()); err != nil {
			log.Error("Failed to start settlement sweeper", "error", err)
		}
	}()

	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became settlement leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting marketplace server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down marketplace service...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sweeper.Stop(); err != nil {
		log.Error("Failed to stop settlement sweeper", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(ctx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Marketplace service stopped")
}
