package setup

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/LavaJover/shvark-mpesa-service/internal/config"
	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/boltstore"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/cache"
	publisher "github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/logger"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/migrate"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/mpesa"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/notifier"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/postgres"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/postgres/repository"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverBolt     = "bolt"

	callbackTimeout = 5 * time.Second
)

// Dependencies holds the infrastructure the service runs on. Optional parts
// (Cache, Publisher, Subscriber, Audit) are nil when disabled in config.
type Dependencies struct {
	Config     *config.MpesaConfig
	DB         *gorm.DB
	Repo       domain.TransactionRepository
	Provider   *mpesa.Client
	Cache      *cache.RedisIdempotencyCache
	Publisher  *publisher.DefaultKafkaPublisher
	Subscriber *publisher.DefaultKafkaSubscriber
	Notifier   *notifier.HTTPNotifier
	Audit      *logger.AsyncAuditLogger
	Metrics    *metrics.TransactionMetrics

	closers []func() error
}

func InitializeDependencies(cfg *config.MpesaConfig) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Notifier: notifier.NewHTTPNotifier(callbackTimeout),
		Metrics:  metrics.NewTransactionMetrics(prometheus.DefaultRegisterer),
	}

	if err := deps.initStorage(); err != nil {
		deps.Close()
		return nil, err
	}

	provider, err := mpesa.NewClient(cfg.Provider)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("mpesa client: %w", err)
	}
	deps.Provider = provider

	if cfg.Redis.Enabled {
		deps.initCache()
	}

	if cfg.KafkaService.Enabled {
		brokers := []string{net.JoinHostPort(cfg.KafkaService.Host, cfg.KafkaService.Port)}
		deps.Publisher = publisher.NewDefaultKafkaPublisher(brokers, cfg.KafkaService.EventsTopic)
		deps.Subscriber = publisher.NewDefaultKafkaSubscriber(brokers)
		deps.closers = append(deps.closers, deps.Publisher.Close)
	}

	if deps.DB != nil {
		deps.Audit = logger.NewAsyncAuditLogger(
			logger.NewPGAuditStore(deps.DB),
			cfg.AuditLog.BufferSize,
			cfg.AuditLog.MaxRetries,
			cfg.AuditLog.Backoff,
		)
	}

	return deps, nil
}

func (d *Dependencies) initStorage() error {
	switch d.Config.Storage.Driver {
	case StorageDriverBolt:
		store, err := boltstore.New(d.Config.Storage.BoltPath)
		if err != nil {
			return fmt.Errorf("bolt store: %w", err)
		}
		d.Repo = store
		d.closers = append(d.closers, store.Close)
		slog.Info("using bolt transaction store", "path", d.Config.Storage.BoltPath)
	case StorageDriverPostgres, "":
		d.DB = postgres.MustInitDB(d.Config.Storage)
		if d.Config.Storage.MigrateOnStart {
			if err := migrate.RunMigrations(d.DB, d.Config.Storage.MigrationsPath); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
		}
		d.Repo = repository.NewDefaultTransactionRepository(d.DB)
		d.closers = append(d.closers, func() error {
			sqlDB, err := d.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	default:
		return fmt.Errorf("unknown storage driver %q", d.Config.Storage.Driver)
	}
	return nil
}

// initCache leaves the cache disabled when redis does not answer at startup.
func (d *Dependencies) initCache() {
	c := cache.NewRedisIdempotencyCache(d.Config.Redis.Addr, d.Config.Redis.Password, d.Config.Redis.DB, d.Config.Redis.TTL)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		slog.Warn("redis unavailable, idempotency cache disabled", "addr", d.Config.Redis.Addr, "error", err)
		c.Close()
		return
	}
	d.Cache = c
	d.closers = append(d.closers, c.Close)
}

// Close releases resources in reverse order of acquisition.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			slog.Error("failed to close dependency", "error", err)
		}
	}
	d.closers = nil
}
