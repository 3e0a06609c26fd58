package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/events"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/ledger"
	"github.com/fjod/go_cart/storefront/internal/library"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/purchase"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("storefront stopped with error", zap.Error(err))
	}
	log.Info("storefront stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Cart snapshot storage
	store, err := storage.Open(ctx, storage.Options{
		Backend:          storage.Backend(cfg.CartStore),
		Key:              cfg.StorageKey,
		SQLitePath:       cfg.SQLitePath,
		SQLiteMigrations: cfg.SQLiteMigrationsPath,
		RedisAddr:        cfg.RedisAddr,
		RedisPassword:    cfg.RedisPassword,
		MongoURI:         cfg.MongoURI,
		MongoDBName:      cfg.MongoDBName,
	})
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("Cart store ready", zap.String("backend", cfg.CartStore), zap.String("key", cfg.StorageKey))

	bus := events.NewBus(cfg.Session, log)
	bus.SubscribeAll(func(_ context.Context, ev events.Event) error {
		log.Info("notification",
			zap.String("type", ev.Type.String()),
			zap.String("level", string(ev.Level)),
			zap.String("message", ev.Message))
		return nil
	})

	if cfg.KafkaEnabled() {
		sink := events.NewKafkaSink(cfg.EventsTopic, cfg.KafkaBrokers...)
		defer sink.Close()
		bus.SubscribeAll(sink.Handle)
		log.Info("Kafka event sink enabled", zap.String("topic", cfg.EventsTopic))
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer nc.Close()
		bus.SubscribeAll(events.NewNATSSink(nc).Handle)
		log.Info("NATS event sink enabled", zap.String("url", cfg.NATSURL))
	}

	cartManager := cart.NewManager(ctx, store, bus, m, log.Named("cart"))

	client := purchase.NewClient(purchase.Options{
		BaseURL: cfg.PurchaseAPIURL,
		Token:   cfg.PurchaseAPIToken,
		Timeout: cfg.PurchaseAPITimeout,
	}, log.Named("purchase"))

	// Library cache is shared through Redis when one is configured
	var libCache library.Cache = library.NopCache{}
	if cfg.RedisAddr != "" {
		redisClient, err := storage.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		libCache = library.NewRedisCache(redisClient)
	}
	lib := library.NewService(cfg.Session, client, libCache, log.Named("library"))
	bus.Subscribe(events.TypePurchaseCompleted, lib.OnPurchaseCompleted)

	g, gctx := errgroup.WithContext(ctx)

	var recorder checkout.Recorder = checkout.NopRecorder{}
	var runs h.RunLister
	if cfg.LedgerEnabled {
		creds := &ledger.Credentials{
			Host:              cfg.DBHost,
			Port:              cfg.DBPort,
			User:              cfg.DBUser,
			Password:          cfg.DBPassword,
			DBName:            cfg.DBName,
			MigrationsDirPath: cfg.LedgerMigrationsPath,
		}
		repo, err := ledger.NewRepository(creds)
		if err != nil {
			return err
		}
		defer repo.Close()
		if err := repo.RunMigrations(creds); err != nil {
			return err
		}
		recorder = repo
		runs = repo
		log.Info("Checkout ledger enabled", zap.String("db", cfg.DBName))

		if cfg.KafkaEnabled() {
			poller := ledger.NewOutboxPoller(repo, log.Named("outbox"), cfg.OutboxTopic, cfg.KafkaBrokers...)
			defer poller.Close()
			g.Go(func() error {
				poller.Run(gctx)
				return nil
			})
		}
	}

	if cfg.KafkaEnabled() {
		consumer := library.NewConsumer(libCache, log.Named("library-consumer"), cfg.EventsTopic, cfg.ConsumerGroupID, cfg.KafkaBrokers...)
		defer consumer.Close()
		g.Go(func() error {
			consumer.Run(gctx)
			return nil
		})
	}

	orchestrator := checkout.NewOrchestrator(cfg.Session, cartManager, client, bus, recorder, m, log.Named("checkout"))

	router := h.NewRouter(h.RouterConfig{
		Cart:           h.NewCartHandler(cartManager, cfg.RequestTimeout, log),
		Checkout:       h.NewCheckoutHandler(orchestrator, cfg.Session, runs, log),
		Library:        h.NewLibraryHandler(lib, cfg.PurchaseAPITimeout),
		Metrics:        m,
		Gatherer:       reg,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		log.Info("Storefront starting", zap.String("port", cfg.HTTPPort), zap.String("session", cfg.Session))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
