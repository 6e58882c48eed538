package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordering/internal/cache"
	"github.com/vladislavdragonenkov/ordering/internal/domain"
	"github.com/vladislavdragonenkov/ordering/internal/gate"
	"github.com/vladislavdragonenkov/ordering/internal/service/catalog"
	"github.com/vladislavdragonenkov/ordering/internal/service/identity"
	"github.com/vladislavdragonenkov/ordering/internal/storage/memory"
	"github.com/vladislavdragonenkov/ordering/internal/storage/postgres"
)

const cacheNamespace = "ordering"

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Orders   domain.OrderRepository
	Outbox   domain.OutboxRepository
	Identity domain.IdentityService
	Catalog  domain.CatalogService
	Gate     *gate.Gate
	Cache    cache.Cache

	// Store не nil только при работе поверх Postgres.
	Store  *postgres.Store
	Logger *log.Entry
}

// NewDependencies создаёт и инициализирует все зависимости приложения.
// NOTE: при пустых ORDERING_IDENTITY_URL / ORDERING_CATALOG_URL используются
// mock-сервисы — режим для разработки и демо, не для production.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("подключение к postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("миграции схемы: %w", err)
		}
		deps.Store = store
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		logger.Info("хранилище: postgres")
	} else {
		deps.Orders = memory.NewOrderRepository()
		deps.Outbox = memory.NewOutboxRepository()
		logger.Info("хранилище: in-memory")
	}

	deps.Gate = gate.NewGate(gate.Settings{
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	}, logger)

	if cfg.IdentityURL != "" {
		deps.Identity = identity.NewClient(cfg.IdentityURL, cfg.HTTPClientTimeout, logger)
	} else {
		deps.Identity = identity.NewMockService()
		logger.Warn("identity: используется mock-сервис")
	}

	if cfg.CatalogURL != "" {
		deps.Catalog = catalog.NewClient(cfg.CatalogURL, cfg.HTTPClientTimeout, logger)
	} else {
		deps.Catalog = catalog.NewMockService()
		logger.Warn("catalog: используется mock-сервис")
	}

	if cfg.RedisAddr != "" {
		deps.Cache = cache.NewRedisCache(cfg.RedisAddr, cacheNamespace)
		logger.WithField("addr", cfg.RedisAddr).Info("кэш имён товаров: redis")
	} else {
		deps.Cache = cache.NewMemoryCache(cacheNamespace)
		logger.Info("кэш имён товаров: in-memory")
	}

	return deps, nil
}

// Close освобождает ресурсы зависимостей.
func (d *Dependencies) Close() {
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("ошибка закрытия postgres")
		}
	}
}
