// Package bootstrap assembles the process graph shared by cmd/api and
// cmd/worker: storage, cache, event bus and the application handlers.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/studypets/studypets-core/config"
	"github.com/studypets/studypets-core/internal/application/command"
	"github.com/studypets/studypets-core/internal/application/eventhandler"
	"github.com/studypets/studypets-core/internal/application/query"
	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/daily"
	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/leaderboard"
	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/practice"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/internal/infrastructure/messaging"
	"github.com/studypets/studypets-core/internal/infrastructure/persistence/memory"
	"github.com/studypets/studypets-core/internal/infrastructure/persistence/postgres"
	"github.com/studypets/studypets-core/internal/infrastructure/persistence/redis"
	"github.com/studypets/studypets-core/pkg/circuitbreaker"
	"github.com/studypets/studypets-core/pkg/logger"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store is the set of repositories both storage backends provide.
type Store interface {
	Tx() shared.Transactor
	Wallets() economy.Repository
	Daily() daily.Repository
	Sessions() practice.SessionRepository
	Questions() practice.QuestionCatalog
	Cycles() practice.CycleRepository
	Pets() pet.Repository
	Catalog() pet.Catalog
	Rewards() leaderboard.Repository
	Links() access.LinkRepository
	Keys() access.KeyRepository
}

var (
	_ Store = (*postgres.Store)(nil)
	_ Store = (*memory.DB)(nil)
)

type eventBus interface {
	shared.EventBus
	Close() error
}

// ══════════════════════════════════════════════════════════════════════════════
// INFRASTRUCTURE
// ══════════════════════════════════════════════════════════════════════════════

// Infra holds the opened backing services. DB and Cache are nil when the
// process runs on the in-memory store or without Redis.
type Infra struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  timeutil.Clock
	Store  Store
	DB     *postgres.Connection
	Cache  *redis.Cache
	Bus    shared.EventBus

	boards  *redis.WeeklyBoardCache
	locker  *redis.Locker
	closers []func()
}

// Option adjusts Open.
type Option func(*Infra)

// WithClock replaces the system clock.
func WithClock(c timeutil.Clock) Option {
	return func(i *Infra) { i.Clock = c }
}

// WithStore skips opening storage and uses store as is.
func WithStore(store Store) Option {
	return func(i *Infra) { i.Store = store }
}

// WithCache skips dialing Redis and uses cache as is.
func WithCache(cache *redis.Cache) Option {
	return func(i *Infra) { i.Cache = cache }
}

// Open connects storage, Redis and the event bus. On error everything opened
// so far is closed again.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger, opts ...Option) (_ *Infra, err error) {
	if log == nil {
		log = slog.Default()
	}
	infra := &Infra{
		Config: cfg,
		Logger: log,
		Clock:  timeutil.SystemClock{},
	}
	for _, opt := range opts {
		opt(infra)
	}
	defer func() {
		if err != nil {
			infra.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// Storage
	// ─────────────────────────────────────────────────────────────────────────
	if infra.Store == nil {
		if err := infra.openStore(ctx); err != nil {
			return nil, err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Redis (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if infra.Cache == nil && !cfg.Redis.Disabled {
		infra.dialRedis(ctx)
	}
	if infra.Cache != nil {
		breaker := circuitbreaker.CacheBreaker("leaderboard-cache", func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		})
		infra.boards = redis.NewWeeklyBoardCache(infra.Cache).WithBreaker(breaker)
		infra.locker = redis.NewLocker(infra.Cache, log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Event bus
	// ─────────────────────────────────────────────────────────────────────────
	bus, err := infra.openBus(ctx)
	if err != nil {
		return nil, err
	}
	infra.Bus = bus
	infra.onClose(func() {
		if err := bus.Close(); err != nil {
			log.Warn("failed to close event bus", "error", err)
		}
	})

	if err := eventhandler.Register(bus, infra.boardInvalidator(), log); err != nil {
		return nil, fmt.Errorf("register event handlers: %w", err)
	}

	return infra, nil
}

func (i *Infra) openStore(ctx context.Context) error {
	dbCfg := i.Config.Database
	if dbCfg.URL == "" {
		if !i.Config.IsDevelopment() {
			return errors.New("database URL is required outside development")
		}
		db := memory.New(memory.WithClock(i.Clock))
		SeedDemo(db)
		i.Store = db
		i.Logger.Warn("using in-memory store; data is lost on exit")
		return nil
	}

	i.Logger.Info("connecting to database...")
	conn, err := postgres.NewConnectionFromURL(ctx, dbCfg.URL, postgres.PoolOptions{
		MaxConns:        dbCfg.MaxConns,
		MinConns:        dbCfg.MinConns,
		MaxConnLifetime: dbCfg.ConnMaxLifetime,
		MaxConnIdleTime: dbCfg.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	i.DB = conn
	i.onClose(func() {
		i.Logger.Info("closing database connection...")
		conn.Close()
	})

	if dbCfg.AutoMigrate {
		if err := migrate(ctx, conn, i.Logger); err != nil {
			return err
		}
	}

	i.Store = postgres.NewStore(conn)
	i.Logger.Info("database connection established")
	return nil
}

func migrate(ctx context.Context, conn *postgres.Connection, log *slog.Logger) error {
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(conn)
	applied, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		log.Warn("failed to get migration status", "error", err)
		return nil
	}
	latest := 0
	for _, m := range status {
		if m.IsApplied && m.Version > latest {
			latest = m.Version
		}
	}
	log.Info("migrations completed", "applied", applied, "schema_version", latest, "total", len(status))
	return nil
}

// dialRedis connects to Redis. Failure is not fatal: the board is then
// computed on every read and distribution relies on the database lock.
func (i *Infra) dialRedis(ctx context.Context) {
	rc := i.Config.Redis
	i.Logger.Info("connecting to Redis...", "host", rc.Host, "port", rc.Port)
	cache, err := redis.NewCache(ctx, rc)
	if err != nil {
		i.Logger.Warn("failed to connect to Redis, caching disabled", "error", err)
		return
	}
	i.Cache = cache
	i.onClose(func() { _ = cache.Close() })
	i.Logger.Info("Redis connection established")
}

func (i *Infra) openBus(ctx context.Context) (eventBus, error) {
	local := messaging.DefaultInMemoryEventBusConfig()
	local.Logger = i.Logger.With(logger.Component("eventbus"))

	if i.Cache == nil {
		return messaging.NewInMemoryEventBus(local), nil
	}

	bus, err := messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
		Client:         i.Cache.Client(),
		LocalBusConfig: local,
		Logger:         local.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open redis event bus: %w", err)
	}
	return bus, nil
}

// boardInvalidator returns the cache as an interface, or a no-op when there
// is no cache. A typed nil would not compare equal to nil downstream.
func (i *Infra) boardInvalidator() eventhandler.BoardInvalidator {
	if i.boards == nil {
		return nopBoards{}
	}
	return i.boards
}

// BoardCache returns the weekly leaderboard cache, or nil without Redis.
func (i *Infra) BoardCache() query.LeaderboardCache {
	if i.boards == nil {
		return nil
	}
	return i.boards
}

// Locker returns the distribution lock, or nil without Redis.
func (i *Infra) Locker() command.Locker {
	if i.locker == nil {
		return nil
	}
	return i.locker
}

func (i *Infra) onClose(fn func()) {
	i.closers = append(i.closers, fn)
}

// Close releases everything Open acquired, in reverse order.
func (i *Infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
	i.closers = nil
}

type nopBoards struct{}

func (nopBoards) InvalidateWeek(context.Context, timeutil.Date) error { return nil }
