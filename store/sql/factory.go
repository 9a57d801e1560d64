package sqlstore

import (
	"github.com/goliatone/go-delivery-relay/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// Stores bundles the relay's persistence surface, built from one bun
// connection.
type Stores struct {
	db         *bun.DB
	orderStore core.OrderStore
	rawOrders  *OrderStore
	eventStore *WebhookEventStore
}

type StoresOption func(*storesConfig)

type storesConfig struct {
	cache repositorycache.CacheService
}

// WithOrderCache layers the read cache over order lookups. Without it
// reads go straight to the database.
func WithOrderCache(cacheService repositorycache.CacheService) StoresOption {
	return func(c *storesConfig) {
		c.cache = cacheService
	}
}

// NewStores accepts a *bun.DB or anything exposing DB() *bun.DB, such as
// the persistence client.
func NewStores(persistenceClient any, options ...StoresOption) (*Stores, error) {
	db, err := resolveBunDB(persistenceClient)
	if err != nil {
		return nil, err
	}
	cfg := &storesConfig{}
	for _, option := range options {
		option(cfg)
	}

	orderStore, err := NewOrderStore(db)
	if err != nil {
		return nil, err
	}
	eventStore, err := NewWebhookEventStore(db)
	if err != nil {
		return nil, err
	}

	stores := &Stores{
		db:         db,
		orderStore: orderStore,
		rawOrders:  orderStore,
		eventStore: eventStore,
	}
	if cfg.cache != nil {
		cached, err := NewCachedOrderStore(orderStore, cfg.cache)
		if err != nil {
			return nil, err
		}
		stores.orderStore = cached
	}
	return stores, nil
}

func (s *Stores) OrderStore() core.OrderStore {
	if s == nil {
		return nil
	}
	return s.orderStore
}

func (s *Stores) EventLedger() core.EventLedger {
	if s == nil {
		return nil
	}
	return s.eventStore
}

func (s *Stores) EventStore() *WebhookEventStore {
	if s == nil {
		return nil
	}
	return s.eventStore
}

func (s *Stores) DB() *bun.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, core.NewConfigurationError("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, core.NewConfigurationError("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, core.NewConfigurationError("sqlstore: unsupported persistence client type")
	}
}
