package memory

import (
	"context"
	"fmt"
	"sync"
	"withdrawal/internal/domain"
	"withdrawal/internal/port"

	"github.com/google/uuid"
)

type withdrawalRepository struct {
	mu          sync.RWMutex
	withdrawals map[uuid.UUID]domain.Withdrawal
	keys        map[string]uuid.UUID
}

func NewWithdrawalRepository() port.WithdrawalRepository {
	return &withdrawalRepository{
		withdrawals: make(map[uuid.UUID]domain.Withdrawal),
		keys:        make(map[string]uuid.UUID),
	}
}

func (r *withdrawalRepository) Save(_ context.Context, w domain.Withdrawal) *domain.Withdrawal {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.withdrawals[w.ID]
	r.withdrawals[w.ID] = w
	if !ok {
		return nil
	}
	return &prev
}

func (r *withdrawalRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.withdrawals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrWithdrawalNotFound, id)
	}
	return &w, nil
}

func (r *withdrawalRepository) Exists(_ context.Context, id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.withdrawals[id]
	return ok
}

func (r *withdrawalRepository) List(_ context.Context) []domain.Withdrawal {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Withdrawal, 0, len(r.withdrawals))
	for _, w := range r.withdrawals {
		out = append(out, w)
	}
	return out
}

func (r *withdrawalRepository) ClaimIdempotencyKey(_ context.Context, key string, id uuid.UUID) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bound, ok := r.keys[key]; ok {
		return bound, false
	}
	r.keys[key] = id
	return id, true
}
