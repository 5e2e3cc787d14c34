package port

import (
	"context"
	"withdrawal/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository is the ledger. Deposit and Withdraw are atomic per address
// and never serialize against other addresses.
type AccountRepository interface {
	Create(ctx context.Context, address string, balance decimal.Decimal) (*domain.Account, error)
	Get(ctx context.Context, address string) (*domain.Account, error)
	Exists(ctx context.Context, address string) bool
	Deposit(ctx context.Context, address string, amount decimal.Decimal) (*domain.Account, error)
	Withdraw(ctx context.Context, address string, amount decimal.Decimal) (*domain.Account, error)
	List(ctx context.Context) []domain.Account
}

// WithdrawalRepository does no status validation; callers own transitions.
type WithdrawalRepository interface {
	// Save upserts by id and returns the previous value, if any.
	Save(ctx context.Context, w domain.Withdrawal) *domain.Withdrawal
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	Exists(ctx context.Context, id uuid.UUID) bool
	List(ctx context.Context) []domain.Withdrawal
	// ClaimIdempotencyKey binds key to id unless it is already bound, in which
	// case it returns the bound id and false.
	ClaimIdempotencyKey(ctx context.Context, key string, id uuid.UUID) (uuid.UUID, bool)
}

// Journal records terminal withdrawals for audit.
type Journal interface {
	Record(ctx context.Context, w domain.Withdrawal) error
}
