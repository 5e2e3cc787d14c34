// Package gateway holds settlement gateway implementations.
package gateway

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"withdrawal/internal/domain"
	"withdrawal/internal/port"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type submission struct {
	address  string
	amount   decimal.Decimal
	outcome  domain.WithdrawalStatus
	settleAt time.Time
}

// Simulated stands in for the external settlement provider. The outcome of
// each submission is drawn when it is submitted and reported once the settle
// delay has passed.
type Simulated struct {
	mu          sync.Mutex
	submissions map[uuid.UUID]*submission
	available   bool
	settleDelay time.Duration
	failureRate float64
	now         func() time.Time
	logger      zerolog.Logger
}

func NewSimulated(settleDelay time.Duration, failureRate float64, logger zerolog.Logger) *Simulated {
	return &Simulated{
		submissions: make(map[uuid.UUID]*submission),
		available:   true,
		settleDelay: settleDelay,
		failureRate: failureRate,
		now:         time.Now,
		logger:      logger.With().Str("component", "simulated_gateway").Logger(),
	}
}

var _ port.SettlementGateway = (*Simulated)(nil)

func (g *Simulated) Submit(ctx context.Context, id uuid.UUID, address string, amount decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("%w: destination address is empty", domain.ErrValidation)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be more than zero", domain.ErrValidation)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.available {
		return domain.ErrGatewayUnavailable
	}
	if _, ok := g.submissions[id]; ok {
		return fmt.Errorf("%w: withdrawal %s already submitted", domain.ErrConflict, id)
	}

	outcome := domain.StatusCompleted
	if rand.Float64() < g.failureRate {
		outcome = domain.StatusFailed
	}
	g.submissions[id] = &submission{
		address:  address,
		amount:   amount,
		outcome:  outcome,
		settleAt: g.now().Add(g.settleDelay),
	}

	g.logger.Debug().
		Str("withdrawal_id", id.String()).
		Str("to", address).
		Str("amount", amount.String()).
		Str("outcome", string(outcome)).
		Msg("external withdrawal accepted")
	return nil
}

func (g *Simulated) PollStatus(ctx context.Context, id uuid.UUID) (domain.WithdrawalStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.available {
		return "", domain.ErrGatewayUnavailable
	}
	s, ok := g.submissions[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownWithdrawal, id)
	}
	if g.now().Before(s.settleAt) {
		return domain.StatusProcessing, nil
	}
	return s.outcome, nil
}

// Settle forces the outcome of a submitted withdrawal and makes it visible
// on the next poll.
func (g *Simulated) Settle(id uuid.UUID, outcome domain.WithdrawalStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.submissions[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownWithdrawal, id)
	}
	s.outcome = outcome
	s.settleAt = g.now()
	return nil
}

func (g *Simulated) SetAvailable(available bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.available = available
}
