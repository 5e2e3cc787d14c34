package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"withdrawal/internal/domain"
	"withdrawal/internal/port"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type sagaStep int

const (
	stepRecordPersisted sagaStep = iota
	stepSourceDebited
	stepDestinationCredited
	stepSubmitted
	stepCompleted
)

// sagaLog is the ordered list of steps one saga run has finished. It lives
// only for the duration of CreateWithdrawal.
type sagaLog []sagaStep

func (l *sagaLog) done(step sagaStep) { *l = append(*l, step) }

func (l sagaLog) has(step sagaStep) bool {
	for _, s := range l {
		if s == step {
			return true
		}
	}
	return false
}

type withdrawalService struct {
	accounts       port.AccountRepository
	withdrawals    port.WithdrawalRepository
	gateway        port.SettlementGateway
	watcher        port.WithdrawalWatcher
	journal        port.Journal
	gatewayTimeout time.Duration
	validate       *validator.Validate
	logger         zerolog.Logger
}

// NewWithdrawalService builds the withdrawal saga. journal may be nil.
func NewWithdrawalService(
	accounts port.AccountRepository,
	withdrawals port.WithdrawalRepository,
	gateway port.SettlementGateway,
	watcher port.WithdrawalWatcher,
	journal port.Journal,
	gatewayTimeout time.Duration,
	logger zerolog.Logger,
) port.WithdrawalService {
	return &withdrawalService{
		accounts:       accounts,
		withdrawals:    withdrawals,
		gateway:        gateway,
		watcher:        watcher,
		journal:        journal,
		gatewayTimeout: gatewayTimeout,
		validate:       newValidator(),
		logger:         logger.With().Str("component", "withdrawal_saga").Logger(),
	}
}

func (s *withdrawalService) CreateWithdrawal(ctx context.Context, req *domain.WithdrawalReq) (*domain.Withdrawal, error) {
	req.FromAddress = strings.TrimSpace(req.FromAddress)
	req.ToAddress = strings.TrimSpace(req.ToAddress)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)

	if err := validateReq(s.validate, req); err != nil {
		return nil, err
	}
	if req.FromAddress == req.ToAddress {
		return nil, domain.ErrSameAccount
	}
	if !s.accounts.Exists(ctx, req.FromAddress) {
		return nil, fmt.Errorf("source %w: %s", domain.ErrAccountNotFound, req.FromAddress)
	}

	w := domain.NewWithdrawal(req)

	if req.IdempotencyKey != "" {
		boundID, claimed := s.withdrawals.ClaimIdempotencyKey(ctx, req.IdempotencyKey, w.ID)
		if !claimed {
			return s.replay(ctx, boundID, req)
		}
	}

	if s.accounts.Exists(ctx, req.ToAddress) {
		return s.runInternal(ctx, w)
	}
	return s.runExternal(ctx, w)
}

// replay answers a request whose idempotency key is already bound.
func (s *withdrawalService) replay(ctx context.Context, id uuid.UUID, req *domain.WithdrawalReq) (*domain.Withdrawal, error) {
	existing, err := s.withdrawals.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrWithdrawalNotFound) {
			return nil, domain.ErrWithdrawalInFlight
		}
		return nil, err
	}
	if !existing.Matches(req) {
		return nil, domain.ErrIdempotencyKeyMismatch
	}
	if existing.Status == domain.StatusFailed {
		return nil, fmt.Errorf("%w: %s", domain.ErrWithdrawalFailed, existing.ID)
	}
	return existing, nil
}

// runInternal moves funds between two managed accounts.
func (s *withdrawalService) runInternal(ctx context.Context, w domain.Withdrawal) (result *domain.Withdrawal, err error) {
	var log sagaLog
	defer s.compensateOnExit(ctx, w, &log, &err)

	s.withdrawals.Save(ctx, w)
	log.done(stepRecordPersisted)

	if _, err = s.accounts.Withdraw(ctx, w.FromAddress, w.Amount); err != nil {
		return nil, err
	}
	log.done(stepSourceDebited)

	if _, err = s.accounts.Deposit(ctx, w.ToAddress, w.Amount); err != nil {
		return nil, err
	}
	log.done(stepDestinationCredited)

	completed := w.WithStatus(domain.StatusCompleted)
	s.withdrawals.Save(ctx, completed)
	log.done(stepCompleted)

	s.logger.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("from", w.FromAddress).
		Str("to", w.ToAddress).
		Str("amount", w.Amount.String()).
		Msg("internal withdrawal completed")
	recordOutcome(ctx, s.journal, s.logger, completed)
	return &completed, nil
}

// runExternal reserves funds, submits to the settlement gateway and hands
// the withdrawal to the watcher. The outcome is not awaited.
func (s *withdrawalService) runExternal(ctx context.Context, w domain.Withdrawal) (result *domain.Withdrawal, err error) {
	var log sagaLog
	defer s.compensateOnExit(ctx, w, &log, &err)

	if _, err = s.accounts.Withdraw(ctx, w.FromAddress, w.Amount); err != nil {
		return nil, err
	}
	log.done(stepSourceDebited)

	if err = s.submit(ctx, w); err != nil {
		return nil, fmt.Errorf("submit external withdrawal: %w", err)
	}
	log.done(stepSubmitted)

	s.withdrawals.Save(ctx, w)
	log.done(stepRecordPersisted)

	s.watcher.Watch(w)
	log.done(stepCompleted)

	s.logger.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("from", w.FromAddress).
		Str("to", w.ToAddress).
		Str("amount", w.Amount.String()).
		Msg("external withdrawal submitted")
	return &w, nil
}

func (s *withdrawalService) submit(ctx context.Context, w domain.Withdrawal) error {
	if s.gatewayTimeout <= 0 {
		return s.gateway.Submit(ctx, w.ID, w.ToAddress, w.Amount)
	}
	submitCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	return s.gateway.Submit(submitCtx, w.ID, w.ToAddress, w.Amount)
}

// compensateOnExit runs once per saga, on every exit path including panics.
// It applies exactly the compensations the finished steps still owe.
func (s *withdrawalService) compensateOnExit(ctx context.Context, w domain.Withdrawal, log *sagaLog, errp *error) {
	r := recover()
	if log.has(stepCompleted) {
		if r != nil {
			panic(r)
		}
		return
	}
	if r != nil {
		*errp = fmt.Errorf("withdrawal saga panicked: %v", r)
	}

	ctx = context.WithoutCancel(ctx)
	logger := s.logger.With().
		Str("withdrawal_id", w.ID.String()).
		Str("from", w.FromAddress).
		Str("to", w.ToAddress).
		Str("amount", w.Amount.String()).
		Logger()

	// Funds already left through the gateway; only reconciliation may decide.
	if log.has(stepSubmitted) {
		if !log.has(stepRecordPersisted) {
			s.withdrawals.Save(ctx, w)
		}
		s.watcher.Watch(w)
		logger.Warn().Err(*errp).Msg("saga failed after submission, handed to reconciliation")
		return
	}

	// Both legs of an internal transfer are booked; the record must say so.
	if log.has(stepDestinationCredited) {
		completed := w.WithStatus(domain.StatusCompleted)
		s.withdrawals.Save(ctx, completed)
		logger.Warn().Err(*errp).Msg("saga failed after both legs were booked, marked completed")
		recordOutcome(ctx, s.journal, s.logger, completed)
		return
	}

	if log.has(stepSourceDebited) {
		if _, err := s.accounts.Deposit(ctx, w.FromAddress, w.Amount); err != nil {
			logger.Error().Err(err).Msg("refund of source account failed")
		} else {
			logger.Info().Msg("source account refunded")
		}
	}

	failed := w.WithStatus(domain.StatusFailed)
	s.withdrawals.Save(ctx, failed)
	logger.Warn().Err(*errp).Msg("withdrawal failed")
	recordOutcome(ctx, s.journal, s.logger, failed)
}

func (s *withdrawalService) GetWithdrawal(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	return s.withdrawals.GetByID(ctx, id)
}

func (s *withdrawalService) GetWithdrawalStatus(ctx context.Context, id uuid.UUID) (domain.WithdrawalStatus, error) {
	w, err := s.withdrawals.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return w.Status, nil
}

func (s *withdrawalService) ListWithdrawals(ctx context.Context) []domain.Withdrawal {
	return s.withdrawals.List(ctx)
}

func recordOutcome(ctx context.Context, journal port.Journal, logger zerolog.Logger, w domain.Withdrawal) {
	if journal == nil {
		return
	}
	if err := journal.Record(context.WithoutCancel(ctx), w); err != nil {
		logger.Warn().Err(err).Str("withdrawal_id", w.ID.String()).Msg("journal write failed")
	}
}
