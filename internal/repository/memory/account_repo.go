package memory

import (
	"context"
	"fmt"
	"sync"
	"withdrawal/internal/domain"
	"withdrawal/internal/port"

	"github.com/shopspring/decimal"
)

// account guards its own balance; the repository lock only guards the map.
type account struct {
	mu      sync.RWMutex
	address string
	balance decimal.Decimal
}

func (a *account) snapshot() *domain.Account {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return &domain.Account{Address: a.address, Balance: a.balance}
}

type accountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*account
}

func NewAccountRepository() port.AccountRepository {
	return &accountRepository{accounts: make(map[string]*account)}
}

func (r *accountRepository) lookup(address string) (*account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[address]
	return a, ok
}

func (r *accountRepository) Create(_ context.Context, address string, balance decimal.Decimal) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[address]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountAlreadyExists, address)
	}

	a := &account{address: address, balance: balance}
	r.accounts[address] = a
	return &domain.Account{Address: address, Balance: balance}, nil
}

func (r *accountRepository) Get(_ context.Context, address string) (*domain.Account, error) {
	a, ok := r.lookup(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, address)
	}
	return a.snapshot(), nil
}

func (r *accountRepository) Exists(_ context.Context, address string) bool {
	_, ok := r.lookup(address)
	return ok
}

func (r *accountRepository) Deposit(_ context.Context, address string, amount decimal.Decimal) (*domain.Account, error) {
	a, ok := r.lookup(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, address)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.balance = a.balance.Add(amount)
	return &domain.Account{Address: a.address, Balance: a.balance}, nil
}

func (r *accountRepository) Withdraw(_ context.Context, address string, amount decimal.Decimal) (*domain.Account, error) {
	a, ok := r.lookup(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, address)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.balance.LessThan(amount) {
		return nil, fmt.Errorf("%w: account %s balance is not sufficient for %s",
			domain.ErrInsufficientBalance, address, amount.StringFixed(2))
	}
	a.balance = a.balance.Sub(amount)
	return &domain.Account{Address: a.address, Balance: a.balance}, nil
}

// List reads each account consistently, but the result is not one atomic
// snapshot across accounts.
func (r *accountRepository) List(_ context.Context) []domain.Account {
	r.mu.RLock()
	entries := make([]*account, 0, len(r.accounts))
	for _, a := range r.accounts {
		entries = append(entries, a)
	}
	r.mu.RUnlock()

	out := make([]domain.Account, 0, len(entries))
	for _, a := range entries {
		out = append(out, *a.snapshot())
	}
	return out
}
