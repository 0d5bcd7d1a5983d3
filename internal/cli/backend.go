package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/callflow"
	"github.com/aretw0/callflow/internal/config"
	"github.com/aretw0/callflow/pkg/adapters/memory"
	"github.com/aretw0/callflow/pkg/adapters/redis"
	"github.com/aretw0/callflow/pkg/adapters/sqlite"
	"github.com/aretw0/callflow/pkg/observability"
	"github.com/aretw0/callflow/pkg/persistence/middleware"
	"github.com/aretw0/callflow/pkg/ports"
	"github.com/aretw0/callflow/pkg/session"
)

// Backend is the storage selected by the configuration.
type Backend struct {
	Repo     ports.FlowRepository
	Sessions *session.Manager
	Locker   ports.DistributedLocker
	Metrics  *observability.Metrics

	sessionMW []middleware.Middleware
	closers   []func() error
}

// OpenBackend builds the flow repository and preview session store for cfg.
// Redis backs both flows and sessions and adds a distributed lock; SQLite
// keeps flows on disk with sessions in memory.
func OpenBackend(cfg config.Config, logger *slog.Logger) (*Backend, error) {
	b := &Backend{Metrics: observability.NewMetrics()}
	sessionOpts := []session.Option{session.WithLogger(logger)}

	active, fallbacks, err := cfg.SessionKeys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		mw, err := middleware.NewEncryption(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallbacks})
		if err != nil {
			return nil, err
		}
		b.sessionMW = append(b.sessionMW, mw)
		logger.Debug("preview sessions are encrypted at rest")
	}

	switch cfg.Store {
	case config.StoreMemory:
		b.Repo = memory.NewRepository()
		b.Sessions = session.NewManager(b.WrapSessions(memory.NewStore()), sessionOpts...)

	case config.StoreRedis:
		client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		b.closers = append(b.closers, client.Close)

		b.Repo = redis.NewRepository(client, redis.WithFlowPrefix(cfg.Redis.Prefix+"flow:"))
		b.Locker = redis.NewLocker(client, cfg.Redis.Prefix+"lock:")
		store := redis.NewFromClient(client,
			redis.WithPrefix(cfg.Redis.Prefix+"session:"),
			redis.WithTTL(time.Duration(cfg.Redis.SessionTTL)),
		)
		sessionOpts = append(sessionOpts, session.WithLocker(b.Locker))
		b.Sessions = session.NewManager(b.WrapSessions(store), sessionOpts...)

	case config.StoreSQLite:
		repo, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		b.closers = append(b.closers, repo.Close)
		b.Repo = repo
		b.Sessions = session.NewManager(b.WrapSessions(memory.NewStore()), sessionOpts...)

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	logger.Debug("backend opened", "store", cfg.Store)
	return b, nil
}

// WrapSessions applies the configured session middleware to store.
func (b *Backend) WrapSessions(store ports.StateStore) ports.StateStore {
	return middleware.Chain(store, b.sessionMW...)
}

// Service wires a callflow.Service over the backend.
func (b *Backend) Service(logger *slog.Logger, hooks ...callflow.ServiceOption) *callflow.Service {
	opts := []callflow.ServiceOption{
		callflow.WithSessions(b.Sessions),
		callflow.WithServiceMetrics(b.Metrics),
		callflow.WithServiceLogger(logger),
	}
	if b.Locker != nil {
		opts = append(opts, callflow.WithFlowLocker(b.Locker))
	}
	return callflow.NewService(b.Repo, append(opts, hooks...)...)
}

// Close releases every connection the backend opened.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
