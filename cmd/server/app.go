package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/tgauth/internal/auth"
	"github.com/iudanet/tgauth/internal/botauth"
	"github.com/iudanet/tgauth/internal/config"
	"github.com/iudanet/tgauth/internal/crypto"
	"github.com/iudanet/tgauth/internal/events"
	"github.com/iudanet/tgauth/internal/lockout"
	"github.com/iudanet/tgauth/internal/pubsub"
	"github.com/iudanet/tgauth/internal/server"
	"github.com/iudanet/tgauth/internal/server/handlers"
	"github.com/iudanet/tgauth/internal/server/jwt"
	"github.com/iudanet/tgauth/internal/server/middleware"
	"github.com/iudanet/tgauth/internal/server/storage"
	"github.com/iudanet/tgauth/internal/server/storage/postgres"
	"github.com/iudanet/tgauth/internal/server/storage/sqlite"
	"github.com/iudanet/tgauth/internal/session"
	"github.com/iudanet/tgauth/internal/telegram"
	"github.com/iudanet/tgauth/internal/tokens"
	"github.com/iudanet/tgauth/internal/verification"
)

// app держит собранные зависимости сервера
type app struct {
	log        *slog.Logger
	store      storage.Store
	bridge     pubsub.Bridge
	broker     *events.RabbitMQ
	svc        *auth.Service
	router     http.Handler
	sweepEvery time.Duration
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{log: log, sweepEvery: cfg.Sweep.Interval}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	var err error
	if a.store, err = openStore(ctx, cfg); err != nil {
		return nil, err
	}

	a.bridge = openBridge(cfg, log)

	var publisher events.Publisher = events.NewLogPublisher(log)
	if cfg.RabbitMQ.URL != "" {
		if a.broker, err = events.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName); err != nil {
			return nil, fmt.Errorf("failed to connect rabbitmq: %w", err)
		}
		publisher = a.broker
	}

	signer, err := jwt.NewSigner(jwt.Config{
		Secret:     []byte(cfg.Tokens.Secret),
		Issuer:     cfg.Tokens.Issuer,
		AccessTTL:  cfg.Tokens.AccessTTL,
		RefreshTTL: cfg.Tokens.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	sessions := session.NewRegistry(session.Config{
		Logger:           log,
		MaxActive:        cfg.Tokens.MaxSessions,
		RevokedRetention: cfg.Tokens.RevokedRetention,
		SweepBatch:       cfg.Sweep.BatchSize,
	})
	issuer := tokens.NewIssuer(signer, sessions, tokens.StaticMembership{TenantID: cfg.App.TenantID})

	bot := botauth.New(a.store, issuer, a.bridge, publisher, botauth.Config{
		Logger:     log,
		BotURL:     cfg.Telegram.BotURL,
		Window:     cfg.Telegram.AuthWindow,
		SweepBatch: cfg.Sweep.BatchSize,
	})

	a.svc, err = auth.New(auth.Deps{
		Store:    a.store,
		Hasher:   crypto.NewBcryptHasher(cfg.Security.BcryptCost),
		Signer:   signer,
		Sessions: sessions,
		Issuer:   issuer,
		Telegram: telegram.NewValidator(cfg.Telegram.BotToken, nil),
		Bot:      bot,
		Verification: verification.New(verification.Config{
			Logger:     log,
			RateLimit:  cfg.Security.VerificationLimit,
			RateWindow: cfg.Security.VerificationWin,
			SweepBatch: cfg.Sweep.BatchSize,
		}),
		Events: publisher,
	}, auth.Config{
		Logger:    log,
		Lockout:   lockout.NewPolicy(cfg.Security.LockoutThreshold, cfg.Security.LockoutDuration),
		PublicURL: cfg.App.PublicURL,
	})
	if err != nil {
		return nil, err
	}

	a.router = server.NewRouter(server.RouterConfig{
		Logger: log,
		Auth: handlers.NewAuthHandler(log, a.svc, handlers.Options{
			BotSecret:     cfg.Telegram.BotSecret,
			StreamTimeout: cfg.Telegram.AuthWindow,
		}),
		Health: handlers.NewHealthHandler(log, a.store, Version),
		Signer: signer,
		Limits: middleware.DefaultRateLimits(),
	})

	ready = true
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		st, err := postgres.New(ctx, cfg.Storage.PostgresDSN, postgres.PoolConfig{
			MaxConns:        cfg.Storage.MaxConns,
			MinConns:        cfg.Storage.MinConns,
			MaxConnLifetime: cfg.Storage.ConnMaxLife,
			MaxConnIdleTime: cfg.Storage.ConnMaxIdle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return st, nil
	default:
		st, err := sqlite.New(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return st, nil
	}
}

// openBridge выбирает Redis для нескольких реплик, иначе in-process bridge
func openBridge(cfg *config.Config, log *slog.Logger) pubsub.Bridge {
	if cfg.Redis.Addr == "" {
		return pubsub.NewMemory(log)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return pubsub.NewRedis(client, cfg.Redis.Prefix, log)
}

// runSweeper периодически удаляет устаревшие записи до отмены ctx
func (a *app) runSweeper(ctx context.Context) {
	if a.sweepEvery <= 0 {
		return
	}

	ticker := time.NewTicker(a.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.svc.Sweep(ctx); err != nil && ctx.Err() == nil {
				a.log.Error("sweep failed", slog.Any("error", err))
			}
		}
	}
}

// Close освобождает ресурсы в обратном порядке
func (a *app) Close() {
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			a.log.Error("failed to close rabbitmq", slog.Any("error", err))
		}
	}
	if a.bridge != nil {
		if err := a.bridge.Close(); err != nil {
			a.log.Error("failed to close pubsub bridge", slog.Any("error", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error("failed to close storage", slog.Any("error", err))
		}
	}
}
