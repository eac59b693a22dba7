package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"idem/internal/http"
	"idem/internal/identity/handler"
	"idem/internal/identity/metrics"
	"idem/internal/identity/ports"
	"idem/internal/identity/reconcile"
	"idem/internal/identity/service"
	identitystore "idem/internal/identity/store"
	"idem/internal/identity/validation"
	"idem/internal/platform/config"
	"idem/internal/platform/httpserver"
	"idem/internal/platform/logger"
	platformredis "idem/internal/platform/redis"
	"idem/internal/remote"
	"idem/internal/wallet"
	walletstore "idem/internal/wallet/store"
	auditkafka "idem/pkg/platform/audit/kafka"
	auditpub "idem/pkg/platform/audit/publisher"
	auditmem "idem/pkg/platform/audit/store/memory"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, cleanupStorage, err := buildStorage(ctx, cfg, log)
	if err != nil {
		log.Error("storage init failed", "error", err)
		os.Exit(1)
	}
	defer cleanupStorage()

	wallets, redisClient, cleanupWallet, err := buildWalletProvider(cfg, log)
	if err != nil {
		log.Error("wallet init failed", "error", err)
		os.Exit(1)
	}
	defer cleanupWallet()

	auditor, cleanupAudit, err := buildAuditPublisher(ctx, cfg, log)
	if err != nil {
		log.Error("audit init failed", "error", err)
		os.Exit(1)
	}
	defer cleanupAudit()

	m := metrics.New()
	engine := validation.New(validation.WithLogger(log))

	reconciler, err := reconcile.New(storage, wallets,
		reconcile.WithLogger(log),
		reconcile.WithAuditPublisher(auditor),
		reconcile.WithMetrics(m),
	)
	if err != nil {
		log.Error("reconciler init failed", "error", err)
		os.Exit(1)
	}

	identity, err := service.New(storage, wallets, engine,
		service.WithLogger(log),
		service.WithAuditPublisher(auditor),
		service.WithMetrics(m),
		service.WithFetcher(remote.New(remote.WithLogger(log))),
	)
	if err != nil {
		log.Error("service init failed", "error", err)
		os.Exit(1)
	}

	var checks []httpapi.HealthCheck
	if redisClient != nil {
		checks = append(checks, redisClient.Health)
	}

	router := httpapi.NewRouter(handler.New(identity, reconciler, log), log, checks...)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting idem", "addr", cfg.Addr)
	if err := httpserver.Run(ctx, srv, cfg.ShutdownTimeout); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func buildStorage(ctx context.Context, cfg config.Config, log *slog.Logger) (ports.Storage, func(), error) {
	if cfg.PostgresDSN == "" {
		log.Info("using in-memory identity store")
		return identitystore.NewInMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	store := identitystore.NewPostgres(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Info("using postgres identity store")
	return store, func() { _ = db.Close() }, nil
}

// buildWalletProvider also hands back the redis client, when configured, so
// main can register its health probe.
func buildWalletProvider(cfg config.Config, log *slog.Logger) (ports.WalletProvider, *platformredis.Client, func(), error) {
	cleanup := func() {}

	var credStore wallet.Store
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, nil, nil, err
	}
	if redisClient != nil {
		log.Info("using redis wallet store")
		credStore = walletstore.NewRedisStore(redisClient.Client)
		cleanup = func() { _ = redisClient.Close() }
	} else {
		log.Info("using in-memory wallet store")
		credStore = walletstore.NewInMemoryStore()
	}

	factory := func(context.Context) (ports.Wallet, error) {
		if cfg.WalletPassphrase != "" {
			return wallet.Restore(cfg.WalletPassphrase, credStore, wallet.WithLogger(log))
		}
		return wallet.Create(credStore, wallet.WithLogger(log))
	}
	return wallet.NewManager(factory), redisClient, cleanup, nil
}

func buildAuditPublisher(ctx context.Context, cfg config.Config, log *slog.Logger) (ports.AuditPublisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("using in-memory audit store")
		publisher := auditpub.NewPublisher(auditmem.NewInMemoryStore(), auditpub.WithLogger(log))
		return publisher, func() { publisher.Close() }, nil
	}

	store, err := auditkafka.New(ctx, cfg.KafkaBrokers, cfg.KafkaAuditTopic)
	if err != nil {
		return nil, nil, err
	}
	log.Info("using kafka audit sink", "topic", cfg.KafkaAuditTopic)
	publisher := auditpub.NewPublisher(store, auditpub.WithLogger(log), auditpub.WithAsyncBuffer(256))
	return publisher, func() {
		publisher.Close()
		store.Close()
	}, nil
}
