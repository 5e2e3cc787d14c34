package service

import (
	"context"
	"strings"
	"withdrawal/internal/domain"
	"withdrawal/internal/port"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type accountService struct {
	accounts port.AccountRepository
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewAccountService(accounts port.AccountRepository, logger zerolog.Logger) port.AccountService {
	return &accountService{
		accounts: accounts,
		validate: newValidator(),
		logger:   logger.With().Str("component", "account_service").Logger(),
	}
}

func (s *accountService) CreateAccount(ctx context.Context, req *domain.AccountReq) (*domain.Account, error) {
	req.Address = strings.TrimSpace(req.Address)
	if err := validateReq(s.validate, req); err != nil {
		return nil, err
	}

	acc, err := s.accounts.Create(ctx, req.Address, req.Balance)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("address", acc.Address).Str("balance", acc.Balance.String()).Msg("account created")
	return acc, nil
}

func (s *accountService) GetAccount(ctx context.Context, address string) (*domain.Account, error) {
	return s.accounts.Get(ctx, strings.TrimSpace(address))
}

func (s *accountService) ListAccounts(ctx context.Context) []domain.Account {
	return s.accounts.List(ctx)
}

// AdjustBalance deposits a positive amount into an existing account.
func (s *accountService) AdjustBalance(ctx context.Context, req *domain.BalanceReq) (*domain.Account, error) {
	req.Address = strings.TrimSpace(req.Address)
	if err := validateReq(s.validate, req); err != nil {
		return nil, err
	}

	acc, err := s.accounts.Deposit(ctx, req.Address, req.Amount)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("address", acc.Address).Str("amount", req.Amount.String()).Msg("balance adjusted")
	return acc, nil
}
