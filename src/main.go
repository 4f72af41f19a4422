package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eunej/CleanField/internal/attestation"
	"github.com/eunej/CleanField/internal/claim"
	"github.com/eunej/CleanField/internal/config"
	"github.com/eunej/CleanField/internal/eligibility"
	"github.com/eunej/CleanField/internal/events"
	"github.com/eunej/CleanField/internal/farmlock"
	"github.com/eunej/CleanField/internal/farms"
	"github.com/eunej/CleanField/internal/hotspot"
	"github.com/eunej/CleanField/internal/httpapi"
	"github.com/eunej/CleanField/internal/reward"
	"github.com/eunej/CleanField/internal/service"
	"github.com/eunej/CleanField/internal/settlement"
	"github.com/eunej/CleanField/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "development" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting cleanfield",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"store", cfg.StoreType,
		"lock_backend", cfg.LockBackend,
		"detection_provider", cfg.DetectionProvider,
		"settlement_mode", cfg.SettlementMode,
		"strict_attestation", cfg.StrictAttestation,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	claimStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "store", cfg.StoreType, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	locker, closeLocker, err := openLocker(ctx, cfg)
	if err != nil {
		slog.Error("failed to open lock backend", "backend", cfg.LockBackend, "error", err)
		os.Exit(1)
	}
	defer closeLocker()

	attestor, err := attestation.NewAttestor(cfg.AttestorKeySeed)
	if err != nil {
		slog.Error("failed to create attestor", "error", err)
		os.Exit(1)
	}
	if len(cfg.AttestorKeySeed) == 0 {
		slog.Warn("using ephemeral attestor key; attestations will not verify after restart")
	}
	slog.Info("attestor ready", "public_key", attestor.PublicKey())

	rewards, err := reward.NewCalculator(reward.Rates{
		PrimaryPerHectare:   cfg.PrimaryPerHectare,
		PrimaryCurrency:     cfg.PrimaryCurrency,
		SecondaryPerHectare: cfg.SecondaryPerHectare,
		SecondaryCurrency:   cfg.SecondaryCurrency,
	})
	if err != nil {
		slog.Error("invalid reward rates", "error", err)
		os.Exit(1)
	}

	publisher := events.NewPublisher("cleanfield")
	if cfg.EventWebhookURL != "" {
		publisher.RegisterDefault(cfg.EventWebhookURL)
	}

	registry := farms.NewDemoRegistry()
	builder := attestation.NewBuilder(attestation.BuilderConfig{
		AppID:      cfg.AppID,
		TemplateID: cfg.TemplateID,
		Salt:       cfg.AttestationSalt,
	}, attestor)
	engine := eligibility.NewEngine(eligibility.Policy{
		Mode:        cfg.EligibilityPolicy,
		MinInterval: cfg.MinClaimInterval,
		Location:    cfg.ClaimTimezone,
	})

	processor := claim.New(claim.Deps{
		Farms:   registry,
		Store:   claimStore,
		Locker:  locker,
		Engine:  engine,
		Rewards: rewards,
		Settler: newSettler(cfg),
		Events:  publisher,
	})

	svc := service.New(service.Deps{
		Farms:              registry,
		Checker:            hotspot.NewChecker(newProvider(cfg), cfg.DetectionTimeout, cfg.DetectionBufferKm),
		Builder:            builder,
		Verifier:           attestation.NewVerifier(attestation.VerifierConfig{TTL: cfg.AttestationTTL, Strict: cfg.StrictAttestation}, builder),
		Claims:             processor,
		Rewards:            rewards,
		Policy:             engine.Policy(),
		Events:             publisher,
		BatchConcurrency:   cfg.BatchConcurrency,
		RequireAttestation: cfg.StrictAttestation,
	})

	// Setup HTTP router
	router := httpapi.NewRouter(svc, httpapi.RouterConfig{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		EnableReset:    cfg.Environment != "production",
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.DetectionTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return
	}

	slog.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (store.ClaimStore, func(), error) {
	switch cfg.StoreType {
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongodb: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, nil, fmt.Errorf("ping mongodb: %w", err)
		}
		s := store.NewMongoStore(client, cfg.MongoDB)
		if err := s.EnsureIndexes(ctx); err != nil {
			slog.Warn("failed to create indexes", "error", err)
		}
		slog.Info("using mongodb store", "db", cfg.MongoDB)
		return s, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				slog.Error("failed to disconnect mongodb", "error", err)
			}
		}, nil

	case "firestore":
		s, err := store.NewFirestoreStore(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using firestore store", "project", cfg.FirestoreProjectID)
		return s, closeLogged(s, "firestore"), nil

	case "postgres":
		db, err := store.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewPostgresStore(db)
		if err := s.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure postgres schema: %w", err)
		}
		slog.Info("using postgres store")
		return s, closeLogged(s, "postgres"), nil

	default:
		slog.Info("using in-memory store")
		return store.NewMemoryStore(), func() {}, nil
	}
}

func openLocker(ctx context.Context, cfg *config.Config) (farmlock.Locker, func(), error) {
	if cfg.LockBackend != "redis" {
		return farmlock.NewLocalLocker(), func() {}, nil
	}
	client := farmlock.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("using redis farm lock", "addr", cfg.RedisAddr, "ttl", cfg.LockTTL)
	return farmlock.NewRedisLocker(client, cfg.LockTTL), closeLogged(client, "redis"), nil
}

func newProvider(cfg *config.Config) hotspot.Provider {
	if cfg.DetectionProvider == "gistda" {
		return hotspot.NewGISTDAProvider(cfg.GistdaURL, cfg.DetectionTimeout)
	}
	return hotspot.NewMockProvider()
}

func newSettler(cfg *config.Config) settlement.Executor {
	if cfg.SettlementMode == "relay" {
		return settlement.NewRelayExecutor(cfg.SettlementRelayURL, cfg.SettlementRelayToken, 30*time.Second)
	}
	return settlement.NewMockExecutor()
}

type closer interface {
	Close() error
}

func closeLogged(c closer, name string) func() {
	return func() {
		if err := c.Close(); err != nil {
			slog.Error("failed to close backend", "backend", name, "error", err)
		}
	}
}
