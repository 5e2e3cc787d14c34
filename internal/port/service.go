package port

import (
	"context"
	"withdrawal/internal/domain"

	"github.com/google/uuid"
)

type AccountService interface {
	CreateAccount(ctx context.Context, req *domain.AccountReq) (*domain.Account, error)
	GetAccount(ctx context.Context, address string) (*domain.Account, error)
	ListAccounts(ctx context.Context) []domain.Account
	AdjustBalance(ctx context.Context, req *domain.BalanceReq) (*domain.Account, error)
}

type WithdrawalService interface {
	CreateWithdrawal(ctx context.Context, req *domain.WithdrawalReq) (*domain.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	GetWithdrawalStatus(ctx context.Context, id uuid.UUID) (domain.WithdrawalStatus, error)
	ListWithdrawals(ctx context.Context) []domain.Withdrawal
}
