package port

import (
	"context"
	"withdrawal/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementGateway is the external provider that moves funds to addresses
// this service does not manage.
type SettlementGateway interface {
	Submit(ctx context.Context, id uuid.UUID, address string, amount decimal.Decimal) error
	// PollStatus fails with domain.ErrUnknownWithdrawal for ids it never saw.
	PollStatus(ctx context.Context, id uuid.UUID) (domain.WithdrawalStatus, error)
}

// WithdrawalWatcher takes ownership of a submitted withdrawal until it reaches
// a terminal status.
type WithdrawalWatcher interface {
	Watch(w domain.Withdrawal)
}
