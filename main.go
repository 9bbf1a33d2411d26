package main

import (
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/cache"
	"auction-engine/internal/config"
	"auction-engine/internal/lifecycle"
	"auction-engine/internal/locking"
	"auction-engine/internal/notification"
	"auction-engine/internal/payment"
	"auction-engine/internal/repository"
	"auction-engine/internal/scheduler"
	"auction-engine/internal/server"
	"auction-engine/internal/settlement"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm/logger"
)

func main() {
	app := &cli.App{
		Name:  "auction-engine",
		Usage: "auction bidding and settlement engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a TOML config file (default: ./config.toml if present)",
				EnvVars: []string{"AUCTION_CONFIG"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API, close timers and notification workers",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the SQL schema",
				Action: migrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		utils.Fatal("auction-engine exited", map[string]any{"error": err.Error()})
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := utils.ConfigureLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}
	return cfg, nil
}

func gormLogLevel() logger.LogLevel {
	if utils.IsDebug() {
		return logger.Info
	}
	return logger.Warn
}

func migrate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == config.DriverMemory {
		return errors.New("migrate requires database.driver sqlite or postgres")
	}

	db, err := repository.OpenDatabase(cfg.Database, gormLogLevel())
	if err != nil {
		return err
	}
	if err := repository.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	utils.Info("schema migrated", map[string]any{"driver": cfg.Database.Driver})
	return nil
}

// openRepository returns the configured store and a function releasing it
func openRepository(cfg *config.Config) (repository.AuctionDB, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		return repository.NewMemoryRepo(), func() {}, nil
	}

	db, err := repository.OpenDatabase(cfg.Database, gormLogLevel())
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return repository.NewGormRepo(db), closeDB, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	sinks := notification.MultiNotifier{notification.LogNotifier{}}
	var idem cache.IdempotencyStore = cache.NewInMemoryIdempotencyStore(time.Minute)
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		_ = idem.Close()
		idem = cache.NewRedisIdempotencyStore(client, "")
		sinks = append(sinks, notification.NewRedisPublisher(client))
	}
	defer func() { _ = idem.Close() }()

	dispatcher := notification.NewDispatcher(sinks, cfg.Auction.NotifyBuffer, cfg.Auction.NotifyWorkers)
	defer dispatcher.Close()

	locks := locking.NewKeyedMutex()
	wallet := payment.NewWalletGateway()

	coordinator := settlement.NewCoordinator(repo, wallet,
		settlement.WithLocks(locks),
		settlement.WithNotifier(dispatcher),
		settlement.WithPaymentTimeout(cfg.Auction.PaymentTimeout),
		settlement.WithPaymentMethod(cfg.Auction.PaymentMethod),
	)

	managerOpts := []lifecycle.Option{
		lifecycle.WithLocks(locks),
		lifecycle.WithNotifier(dispatcher),
		lifecycle.WithDefaultIncrement(cfg.Auction.DefaultBidIncrement),
	}
	if cfg.Scheduler.Enabled {
		closeTimers := scheduler.New(coordinator, repo,
			scheduler.WithIdempotencyStore(idem, cfg.Scheduler.CloseLease),
			scheduler.WithSweepInterval(cfg.Scheduler.SweepInterval),
		)
		if err := closeTimers.Start(ctx); err != nil {
			return err
		}
		defer closeTimers.Stop()
		managerOpts = append(managerOpts, lifecycle.WithTimer(closeTimers))
	}
	manager := lifecycle.NewManager(repo, coordinator, managerOpts...)

	biddingSvc := bidding.NewBiddingService(repo,
		bidding.WithLocks(locks),
		bidding.WithNotifier(dispatcher),
	)

	if cfg.App.Seed {
		if err := seed(ctx, manager, wallet); err != nil {
			utils.Warn("failed to seed sample auctions", map[string]any{"error": err.Error()})
		}
	}

	router := server.SetupRouter(server.Services{
		Bidding:  biddingSvc,
		Auctions: manager,
		Orders:   coordinator,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		utils.Info("starting auction server", map[string]any{
			"addr":   srv.Addr,
			"env":    cfg.App.Env,
			"driver": cfg.Database.Driver,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	utils.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seed creates and starts a few sample auctions and funds demo bidders
func seed(ctx context.Context, manager *lifecycle.Manager, wallet *payment.WalletGateway) error {
	samples := []lifecycle.CreateAuctionRequest{
		{ListingID: "auction1", SellerID: "seller1", Title: "Vintage film camera", StartingBid: decimal.NewFromInt(100), DurationMinutes: 60},
		{ListingID: "auction2", SellerID: "seller1", Title: "Signed vinyl record", StartingBid: decimal.NewFromInt(200), DurationMinutes: 120},
		{ListingID: "auction3", SellerID: "seller2", Title: "Mechanical keyboard", StartingBid: decimal.NewFromInt(150),
			ReservePrice: decimal.NewNullDecimal(decimal.NewFromInt(300)), DurationMinutes: 30},
	}

	for _, user := range []string{"user1", "user2", "user3"} {
		if _, err := wallet.Deposit(user, decimal.NewFromInt(10000)); err != nil {
			return err
		}
	}

	for _, req := range samples {
		if _, err := manager.CreateAuction(ctx, req); err != nil {
			return err
		}
		if _, err := manager.StartAuction(ctx, req.ListingID, req.SellerID, 0); err != nil {
			return err
		}
	}

	return nil
}
