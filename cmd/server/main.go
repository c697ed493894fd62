package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ticket-exchange/internal/api"
	"ticket-exchange/internal/config"
	"ticket-exchange/internal/db"
	"ticket-exchange/internal/engine"
	"ticket-exchange/internal/escrow"
	"ticket-exchange/internal/guard"
	"ticket-exchange/internal/ledger"
	"ticket-exchange/internal/payout"
	"ticket-exchange/internal/refund"
	"ticket-exchange/internal/security"
	"ticket-exchange/internal/ticket"
	"ticket-exchange/internal/verify"
	"ticket-exchange/internal/ws"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("config", "err", err)
	}

	store, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("db open", "err", err)
	}
	if err := store.Migrate(cfg.MigrationsDir); err != nil {
		log.Fatalw("migrate", "err", err)
	}
	log.Infow("database ready")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalw("redis url", "err", err)
	}
	rdb := redis.NewClient(redisOpts)

	payer, err := payout.New(payout.Provider(cfg.PayoutProvider), log)
	if err != nil {
		log.Fatalw("payout provider", "err", err)
	}

	dir := ticket.NewStoreDirectory(store)
	gate := verify.NewStoreGate(store)
	led := ledger.New(store, payer, gate, log)
	vault := escrow.NewVault(store, dir, payer, led.Latch(), cfg.PlatformFeeBps, log)
	refunds := refund.NewService(store, dir, led.Latch(), refund.NewCalculator(), cfg.RefundCap, log)
	priceGuard := guard.New(cfg.MaxPriceIncreaseBps, cfg.ResaleCooldown)

	hub := ws.NewHub(log)

	policy := engine.ExtensionPolicy{
		Window:    cfg.BidExtensionWindow,
		Extension: cfg.BidExtension,
		Max:       cfg.MaxBidExtensions,
	}
	mgr := engine.NewManager(store, priceGuard, vault, dir, gate, hub.Publish, policy, log)
	if err := mgr.Boot(context.Background()); err != nil {
		log.Fatalw("engine boot", "err", err)
	}

	limiter := security.NewRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, api.CallerID, log)

	srv := api.NewServer(store, led, vault, refunds, mgr, dir, hub, limiter, cfg.JWTSecret, log)

	log.Infow("listening", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, srv.Router()); err != nil {
		log.Fatalw("server", "err", err)
	}
}
