package repository

import (
	"context"
	"time"

	"hik-access-bridge/internal/metrics"
	"hik-access-bridge/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CustomerLister source of the roster.
type CustomerLister interface {
	ListCustomers(ctx context.Context) ([]models.CustomerRecord, error)
}

const rosterKey = "roster"

// CachedCustomerRepository short-lived cache in front of the roster query; the roster UI
// polls it while reconciliation reads it once per run.
type CachedCustomerRepository struct {
	source CustomerLister
	cache  *expirable.LRU[string, []models.CustomerRecord]
}

func NewCachedCustomerRepository(source CustomerLister, size int, ttl time.Duration) *CachedCustomerRepository {
	if size <= 0 {
		size = 1
	}
	return &CachedCustomerRepository{
		source: source,
		cache:  expirable.NewLRU[string, []models.CustomerRecord](size, nil, ttl),
	}
}

func (r *CachedCustomerRepository) ListCustomers(ctx context.Context) ([]models.CustomerRecord, error) {
	if v, ok := r.cache.Get(rosterKey); ok {
		metrics.RosterCacheHits.Inc()
		return v, nil
	}
	metrics.RosterCacheMisses.Inc()

	customers, err := r.source.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	r.cache.Add(rosterKey, customers)
	return customers, nil
}

// Invalidate drops the cached roster.
func (r *CachedCustomerRepository) Invalidate() {
	r.cache.Remove(rosterKey)
}
