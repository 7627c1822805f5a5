package duplicator

import (
	"context"
	"sync"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

// Store durably records one snapshot per logical order, keyed by
// LogicalID. Save overwrites. LoadAll repopulates the ledger at startup.
type Store interface {
	Save(ctx context.Context, order *model.DuplicatedOrder) error
	Delete(ctx context.Context, logicalID string) error
	LoadAll(ctx context.Context) ([]*model.DuplicatedOrder, error)
}

// InMemoryStore keeps snapshots in a map. Used by tests and by runs that
// opt out of a database; survives ledger restarts within one process.
type InMemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*model.DuplicatedOrder
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		orders: make(map[string]*model.DuplicatedOrder),
	}
}

func (s *InMemoryStore) Save(_ context.Context, order *model.DuplicatedOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.LogicalID] = order.Clone()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, logicalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, logicalID)
	return nil
}

func (s *InMemoryStore) LoadAll(_ context.Context) ([]*model.DuplicatedOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.DuplicatedOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.Clone())
	}
	return out, nil
}
