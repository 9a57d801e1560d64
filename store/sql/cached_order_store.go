package sqlstore

import (
	"context"
	"net/url"
	"strings"

	"github.com/goliatone/go-delivery-relay/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const orderCacheKeyPrefix = "delivery-relay::order::v1"

// CachedOrderStore layers a read cache over an order store. Upserts write
// through to the base store and invalidate the cached snapshot.
type CachedOrderStore struct {
	base  core.OrderStore
	cache repositorycache.CacheService
}

func NewCachedOrderStore(base core.OrderStore, cacheService repositorycache.CacheService) (*CachedOrderStore, error) {
	if base == nil {
		return nil, core.NewConfigurationError("sqlstore: base order store is required")
	}
	if cacheService == nil {
		return nil, core.NewConfigurationError("sqlstore: order cache service is required")
	}
	return &CachedOrderStore{base: base, cache: cacheService}, nil
}

// OrderCacheKey is the deterministic cache key for an order snapshot:
// delivery-relay::order::v1::<order_id> with the id URL-path escaped.
func OrderCacheKey(orderID string) (string, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", core.NewBadInputError("sqlstore: order id is required for cache key", nil)
	}
	return orderCacheKeyPrefix + "::" + url.PathEscape(orderID), nil
}

func (s *CachedOrderStore) GetOrder(ctx context.Context, orderID string) (core.OrderDetails, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.OrderDetails{}, core.NewPersistenceError(nil, "sqlstore: cached order store is not configured", nil)
	}
	cacheKey, err := OrderCacheKey(orderID)
	if err != nil {
		return core.OrderDetails{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.OrderDetails, error) {
		return s.base.GetOrder(ctx, orderID)
	})
}

func (s *CachedOrderStore) UpsertOrder(ctx context.Context, details core.OrderDetails) error {
	if s == nil || s.base == nil || s.cache == nil {
		return core.NewPersistenceError(nil, "sqlstore: cached order store is not configured", nil)
	}
	if err := s.base.UpsertOrder(ctx, details); err != nil {
		return err
	}
	cacheKey, err := OrderCacheKey(details.OrderID)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.NewPersistenceError(err, "sqlstore: invalidate cached order", map[string]any{
			"order_id": details.OrderID,
		})
	}
	return nil
}

var _ core.OrderStore = (*CachedOrderStore)(nil)
