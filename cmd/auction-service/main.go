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

	"auction-platform/internal/api/handlers"
	apimw "auction-platform/internal/api/middleware"
	"auction-platform/internal/config"
	"auction-platform/internal/domain"
	"auction-platform/internal/infrastructure/leader"
	"auction-platform/internal/infrastructure/memory"
	"auction-platform/internal/infrastructure/mysql"
	"auction-platform/internal/services"
	"auction-platform/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
)

// stores groups the ports backed by the configured storage driver.
type stores struct {
	auctions domain.AuctionRepository
	bids     domain.BidRepository
	users    domain.UserRepository
	tx       domain.TransactionManager
	ping     func(ctx context.Context) error
	close    func() error
}

func main() {
	bootLog := logger.New()

	cfg, err := loadConfig()
	if err != nil {
		bootLog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	defer log.Sync()
	log.Info("Starting auction service", "config", cfg.GetConfigString())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := openStores(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Error("Failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Error("Failed to close storage", "error", err)
		}
	}()

	election, rdb, err := newLeaderElection(cfg, log)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	clock := services.SystemClock{}
	auctionManager := services.NewAuctionManager(st.auctions, clock, cfg.Bidding.MaxAttempts, log)
	bidService := services.NewBidService(st.auctions, st.bids, st.users, st.tx, clock,
		cfg.Bidding.MaxAttempts, cfg.FirstBidPolicy(), log)
	sweeper := services.NewSweeper(st.auctions, clock, cfg.Scheduler.BatchSize, log)
	scheduler := services.NewCronAuctionScheduler(cfg.Scheduler.Spec, sweeper, election, cfg.Instance.ID, log)

	e := newServer(cfg, st, auctionManager, bidService, log)

	background, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if cfg.Scheduler.Enabled {
		if err := scheduler.Start(background); err != nil {
			log.Error("Failed to start scheduler", "error", err)
			os.Exit(1)
		}
		go campaignForLeadership(background, election, cfg.Instance.ID, log)
	}

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting HTTP server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stopBackground()
	if cfg.Scheduler.Enabled {
		if err := scheduler.Stop(); err != nil {
			log.Error("Failed to stop scheduler", "error", err)
		}
		if err := election.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
			log.Error("Failed to release leadership", "error", err)
		}
	}

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction service stopped")
}

func loadConfig() (*config.Config, error) {
	if path := os.Getenv("AUCTION_CONFIG_FILE"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func openStores(ctx context.Context, cfg *config.Config, log logger.Logger) (*stores, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewSeededStore(time.Now().UTC())
		return &stores{
			auctions: store.Auctions(),
			bids:     store.Bids(),
			users:    store.Users(),
			tx:       store,
			ping:     func(context.Context) error { return nil },
			close:    func() error { return nil },
		}, nil
	}

	db, err := mysql.Open(ctx, cfg.MySQL)
	if err != nil {
		return nil, err
	}
	log.Info("Connected to MySQL")

	if cfg.MySQL.AutoMigrate {
		if err := mysql.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("Database schema applied")
	}

	return &stores{
		auctions: mysql.NewMySQLAuctionRepository(db),
		bids:     mysql.NewMySQLBidRepository(db),
		users:    mysql.NewMySQLUserRepository(db),
		tx:       mysql.NewTxManager(db),
		ping:     db.PingContext,
		close:    db.Close,
	}, nil
}

func newLeaderElection(cfg *config.Config, log logger.Logger) (domain.LeaderElection, *redis.Client, error) {
	if !cfg.Leader.Enabled {
		log.Info("Leader election disabled, this instance sweeps on its own")
		return leader.NewStandalone(), nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	return leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL, log), rdb, nil
}

// campaignForLeadership keeps trying to take the sweep lock until ctx ends.
func campaignForLeadership(ctx context.Context, election domain.LeaderElection, instanceID string, log logger.Logger) {
	wasLeader := false
	for {
		isLeader, err := election.BecomeLeader(ctx, instanceID)
		wait := 10 * time.Second
		switch {
		case err != nil:
			log.Error("Failed to attempt leadership", "error", err)
			wait = 5 * time.Second
		case isLeader && !wasLeader:
			log.Info("Became sweep leader", "instance_id", instanceID)
		case !isLeader && wasLeader:
			log.Warn("No longer the sweep leader", "instance_id", instanceID)
		}
		if err == nil {
			wasLeader = isLeader
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func newServer(cfg *config.Config, st *stores, auctionManager *services.AuctionManager,
	bidService *services.BidService, log logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()
	e.HTTPErrorHandler = handlers.ErrorHandler(log)

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPut,
			http.MethodPost, http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			apimw.HeaderUserID,
		},
		ExposeHeaders: []string{echo.HeaderLocation},
		MaxAge:        86400,
	}))

	handlers.RegisterRoutes(e.Group("/v1/api"), st.users,
		handlers.NewAuctionHandler(auctionManager, log),
		handlers.NewBidHandler(bidService, log))

	e.GET("/health", func(c echo.Context) error {
		status, code := "ok", http.StatusOK
		if err := st.ping(c.Request().Context()); err != nil {
			log.Error("Health check failed", "error", err)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
		return c.JSON(code, map[string]interface{}{
			"status":    status,
			"service":   "auction-service",
			"storage":   cfg.Storage.Driver,
			"instance":  cfg.Instance.ID,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	return e
}
