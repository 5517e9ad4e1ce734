package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-auction/internal/address"
	"ms-auction/internal/api"
	"ms-auction/internal/auction"
	"ms-auction/internal/bids"
	"ms-auction/internal/config"
	"ms-auction/internal/deposit"
	"ms-auction/internal/escrow"
	"ms-auction/internal/identity"
	"ms-auction/internal/lease"
	"ms-auction/internal/ledger"
	"ms-auction/internal/logger"
	"ms-auction/internal/notify"
	"ms-auction/internal/settlement"
	"ms-auction/internal/sse"
	"ms-auction/internal/store"
	"ms-auction/internal/wallet"
)

const sweepInterval = time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	cfg := config.Load()
	appLog := logger.NewLogger()

	ctx := context.Background()

	// --- PostgreSQL Setup ---
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to open Postgres connection: %v", err)
	}
	defer sqldb.Close()

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	if err := store.Migrate(ctx, bunDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// --- Redis Setup ---
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// --- Kafka Producer ---
	producer := notify.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, appLog)
	defer producer.Close()

	// --- Stripe Gateway ---
	gateway, err := escrow.NewStripeGateway(cfg.Stripe.SecretKey, appLog)
	if err != nil {
		log.Fatalf("Failed to initialize Stripe gateway: %v", err)
	}

	// --- Services ---
	db := &store.DB{Bun: bunDB}
	ledgerStore := ledger.New(bunDB, appLog)
	auctionLease := lease.New(redisClient, cfg.Auction.LeaseTTL, appLog)
	addresses := address.New(bunDB)

	emitter := sse.NewBidEventEmitter()

	auctionSvc := auction.NewService(db, cfg.Auction, appLog)
	bidSvc := bids.NewService(db, notify.NewTee(producer, emitter), appLog)
	depositSvc := deposit.NewService(db, ledgerStore, gateway, auctionLease, addresses, producer, appLog)
	settlementSvc := settlement.NewService(db, ledgerStore, gateway, depositSvc, producer, cfg.Auction, appLog)
	walletSvc := wallet.NewService(db, ledgerStore, gateway, cfg.Auction.DefaultCurrency, appLog)
	webhook := escrow.NewWebhookProcessor(cfg.Stripe.WebhookSecret, depositSvc, appLog)

	handler := &api.Handler{
		Auctions:   auctionSvc,
		Bids:       bidSvc,
		Deposits:   depositSvc,
		Settlement: settlementSvc,
		Wallet:     walletSvc,
		Webhook:    webhook,
		Emitter:    emitter,
		Log:        appLog,
	}

	// --- Time Sweeps ---
	sweepCtx, stopSweeps := context.WithCancel(ctx)
	defer stopSweeps()
	go runSweeps(sweepCtx, settlementSvc, appLog)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      handler.Routes(identity.Middleware(cfg.Auth.OIDCIssuer)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLog.Info("SERVER", "Auction service running on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("SERVER", "Shutdown signal received, cleaning up")

	stopSweeps()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	appLog.Info("SERVER", "Server exited gracefully")
}

// runSweeps drives the expiry and payment-window sweeps until the
// context is cancelled.
func runSweeps(ctx context.Context, svc *settlement.Service, appLog *logger.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := svc.MarkExpired(ctx); err != nil {
				appLog.Error("SWEEP", fmt.Sprintf("Expiry sweep failed: %v", err))
			} else if n > 0 {
				appLog.Info("SWEEP", fmt.Sprintf("Expiry sweep settled %d auctions", n))
			}
			if n, err := svc.MarkPaymentExpired(ctx); err != nil {
				appLog.Error("SWEEP", fmt.Sprintf("Payment window sweep failed: %v", err))
			} else if n > 0 {
				appLog.Info("SWEEP", fmt.Sprintf("Payment window sweep settled %d auctions", n))
			}
		}
	}
}
