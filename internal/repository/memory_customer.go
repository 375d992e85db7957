package repository

import (
	"context"
	"sync"

	"hik-access-bridge/internal/models"
)

// MemoryCustomerRepository in-memory roster, used when the roster database is disabled.
type MemoryCustomerRepository struct {
	mu        sync.RWMutex
	customers []models.CustomerRecord
}

func NewMemoryCustomerRepository(customers []models.CustomerRecord) *MemoryCustomerRepository {
	return &MemoryCustomerRepository{customers: append([]models.CustomerRecord(nil), customers...)}
}

func (r *MemoryCustomerRepository) ListCustomers(_ context.Context) ([]models.CustomerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.CustomerRecord(nil), r.customers...), nil
}

// Replace swaps the whole roster.
func (r *MemoryCustomerRepository) Replace(customers []models.CustomerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers = append([]models.CustomerRecord(nil), customers...)
}
