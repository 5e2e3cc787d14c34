package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"withdrawal/internal/domain"
	"withdrawal/internal/port"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type ReconcilerConfig struct {
	Interval             time.Duration
	Concurrency          int
	MaxTransientFailures int
	GatewayTimeout       time.Duration
}

type pendingWithdrawal struct {
	withdrawal domain.Withdrawal
	// consecutive transient poll failures; only touched by the tick that polls it
	transientFailures int
}

// Reconciler polls the settlement gateway for every submitted withdrawal and
// moves it to its terminal status, refunding the source account on failure.
// It is the only writer of terminal status for external withdrawals.
type Reconciler struct {
	mu      sync.Mutex
	pending map[uuid.UUID]*pendingWithdrawal

	accounts    port.AccountRepository
	withdrawals port.WithdrawalRepository
	gateway     port.SettlementGateway
	journal     port.Journal
	cfg         ReconcilerConfig
	logger      zerolog.Logger
}

var _ port.WithdrawalWatcher = (*Reconciler)(nil)

// NewReconciler builds the loop. journal may be nil.
func NewReconciler(
	cfg ReconcilerConfig,
	accounts port.AccountRepository,
	withdrawals port.WithdrawalRepository,
	gateway port.SettlementGateway,
	journal port.Journal,
	logger zerolog.Logger,
) *Reconciler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxTransientFailures < 1 {
		cfg.MaxTransientFailures = 1
	}
	return &Reconciler{
		pending:     make(map[uuid.UUID]*pendingWithdrawal),
		accounts:    accounts,
		withdrawals: withdrawals,
		gateway:     gateway,
		journal:     journal,
		cfg:         cfg,
		logger:      logger.With().Str("component", "reconciler").Logger(),
	}
}

func (r *Reconciler) Watch(w domain.Withdrawal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[w.ID]; ok {
		return
	}
	r.pending[w.ID] = &pendingWithdrawal{withdrawal: w}
}

func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Run ticks every cfg.Interval until ctx is done. Ticks never overlap.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.cfg.Interval <= 0 {
		return fmt.Errorf("reconciler interval must be positive, got %s", r.cfg.Interval)
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.cfg.Interval).Msg("reconciler started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Int("pending", r.Pending()).Msg("reconciler stopped")
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick visits every pending withdrawal exactly once.
func (r *Reconciler) Tick(ctx context.Context) {
	r.mu.Lock()
	batch := make([]*pendingWithdrawal, 0, len(r.pending))
	for _, p := range r.pending {
		batch = append(batch, p)
	}
	r.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for _, p := range batch {
		g.Go(func() error {
			r.reconcile(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Reconciler) reconcile(ctx context.Context, p *pendingWithdrawal) {
	w := p.withdrawal
	status, err := r.poll(ctx, w.ID)
	if err != nil && ctx.Err() != nil {
		// shutting down; the outcome is still unknown
		return
	}

	switch {
	case err == nil && status == domain.StatusCompleted:
		r.finalize(ctx, p, domain.StatusCompleted, nil)
	case err == nil && status == domain.StatusFailed:
		r.finalize(ctx, p, domain.StatusFailed, nil)
	case err == nil && status == domain.StatusProcessing:
		p.transientFailures = 0
	case errors.Is(err, domain.ErrUnknownWithdrawal):
		r.finalize(ctx, p, domain.StatusFailed, err)
	default:
		if err == nil {
			err = fmt.Errorf("%w: unexpected status %q", domain.ErrGatewayUnavailable, status)
		}
		p.transientFailures++
		if p.transientFailures >= r.cfg.MaxTransientFailures {
			r.finalize(ctx, p, domain.StatusFailed, err)
			return
		}
		r.logger.Warn().
			Err(err).
			Str("withdrawal_id", w.ID.String()).
			Int("attempt", p.transientFailures).
			Int("max_attempts", r.cfg.MaxTransientFailures).
			Msg("status poll failed, will retry")
	}
}

func (r *Reconciler) poll(ctx context.Context, id uuid.UUID) (domain.WithdrawalStatus, error) {
	if r.cfg.GatewayTimeout <= 0 {
		return r.gateway.PollStatus(ctx, id)
	}
	pollCtx, cancel := context.WithTimeout(ctx, r.cfg.GatewayTimeout)
	defer cancel()
	return r.gateway.PollStatus(pollCtx, id)
}

// finalize writes the terminal status, refunds on failure and drops the
// withdrawal from the pending set in one step.
func (r *Reconciler) finalize(ctx context.Context, p *pendingWithdrawal, status domain.WithdrawalStatus, cause error) {
	ctx = context.WithoutCancel(ctx)
	w := p.withdrawal
	logger := r.logger.With().
		Str("withdrawal_id", w.ID.String()).
		Str("from", w.FromAddress).
		Str("to", w.ToAddress).
		Str("amount", w.Amount.String()).
		Logger()

	defer func() {
		r.mu.Lock()
		delete(r.pending, w.ID)
		r.mu.Unlock()
	}()

	if current, err := r.withdrawals.GetByID(ctx, w.ID); err == nil && current.Status.IsTerminal() {
		logger.Warn().Str("status", string(current.Status)).Msg("withdrawal already terminal, dropping")
		return
	}

	updated := w.WithStatus(status)
	r.withdrawals.Save(ctx, updated)

	if status == domain.StatusFailed {
		if _, err := r.accounts.Deposit(ctx, w.FromAddress, w.Amount); err != nil {
			logger.Error().Err(err).Msg("refund of source account failed")
		}
		logger.Warn().Err(cause).Msg("external withdrawal failed, source account refunded")
	} else {
		logger.Info().Msg("external withdrawal completed")
	}

	recordOutcome(ctx, r.journal, r.logger, updated)
}
