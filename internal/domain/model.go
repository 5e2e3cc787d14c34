package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	StatusProcessing WithdrawalStatus = "PROCESSING"
	StatusCompleted  WithdrawalStatus = "COMPLETED"
	StatusFailed     WithdrawalStatus = "FAILED"
)

// IsTerminal reports whether no further transition may leave s.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Account struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

type AccountReq struct {
	Address string          `json:"address" validate:"required"`
	Balance decimal.Decimal `json:"balance" validate:"gt=0"`
}

type BalanceReq struct {
	Address string          `json:"address" validate:"required"`
	Amount  decimal.Decimal `json:"amount" validate:"gt=0"`
}

type WithdrawalReq struct {
	FromAddress    string          `json:"fromAddress" validate:"required"`
	ToAddress      string          `json:"toAddress" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty" validate:"omitempty,max=128"`
}

// Withdrawal is treated as a value: only WithStatus produces a changed copy.
type Withdrawal struct {
	ID             uuid.UUID        `json:"id"`
	FromAddress    string           `json:"fromAddress"`
	ToAddress      string           `json:"toAddress"`
	Amount         decimal.Decimal  `json:"amount"`
	Status         WithdrawalStatus `json:"status"`
	IdempotencyKey string           `json:"idempotencyKey,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

func NewWithdrawal(req *WithdrawalReq) Withdrawal {
	now := time.Now().UTC()
	return Withdrawal{
		ID:             uuid.New(),
		FromAddress:    req.FromAddress,
		ToAddress:      req.ToAddress,
		Amount:         req.Amount,
		Status:         StatusProcessing,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (w Withdrawal) WithStatus(status WithdrawalStatus) Withdrawal {
	w.Status = status
	w.UpdatedAt = time.Now().UTC()
	return w
}

// Matches reports whether req describes the same transfer as w.
func (w Withdrawal) Matches(req *WithdrawalReq) bool {
	return w.FromAddress == req.FromAddress &&
		w.ToAddress == req.ToAddress &&
		w.Amount.Equal(req.Amount)
}

type WithdrawalStatusResp struct {
	ID     uuid.UUID        `json:"id"`
	Status WithdrawalStatus `json:"status"`
}
