package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/karatlabs/karat/internal/entity"
)

// MemoryStore is an in-process catalog used in simulate mode and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]entity.Product
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{products: make(map[string]entity.Product)}
}

// Seed loads products, replacing any existing entries with the same ID.
func (s *MemoryStore) Seed(products ...entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		s.products[p.ID] = p
	}
}

// ListDynamic returns the dynamically priced products.
func (s *MemoryStore) ListDynamic(_ context.Context) ([]entity.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.Product
	for _, p := range s.products {
		if p.IsDynamic() {
			out = append(out, p)
		}
	}
	return out, nil
}

// WriteDisplayPrice updates one product's display price.
func (s *MemoryStore) WriteDisplayPrice(_ context.Context, id string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("product %s not found", id)
	}
	p.DisplayPrice = price
	s.products[id] = p
	return nil
}

// Get returns a product by ID.
func (s *MemoryStore) Get(id string) (entity.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	return p, ok
}
