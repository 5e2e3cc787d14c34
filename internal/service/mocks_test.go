package service

import (
	"context"
	"testing"
	"time"

	"withdrawal/internal/domain"
	"withdrawal/internal/port"
	"withdrawal/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Submit(ctx context.Context, id uuid.UUID, address string, amount decimal.Decimal) error {
	args := m.Called(ctx, id, address, amount)
	return args.Error(0)
}

func (m *MockGateway) PollStatus(ctx context.Context, id uuid.UUID) (domain.WithdrawalStatus, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.WithdrawalStatus), args.Error(1)
}

type MockJournal struct {
	mock.Mock
}

func (m *MockJournal) Record(ctx context.Context, w domain.Withdrawal) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

type fixture struct {
	accounts    port.AccountRepository
	withdrawals port.WithdrawalRepository
	gateway     *MockGateway
	journal     *MockJournal
	reconciler  *Reconciler
	service     port.WithdrawalService
}

func newFixture(t *testing.T, maxTransientFailures int) *fixture {
	t.Helper()

	f := &fixture{
		accounts:    memory.NewAccountRepository(),
		withdrawals: memory.NewWithdrawalRepository(),
		gateway:     new(MockGateway),
		journal:     new(MockJournal),
	}
	f.journal.On("Record", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.reconciler = NewReconciler(ReconcilerConfig{
		Interval:             10 * time.Millisecond,
		Concurrency:          4,
		MaxTransientFailures: maxTransientFailures,
		GatewayTimeout:       time.Second,
	}, f.accounts, f.withdrawals, f.gateway, f.journal, zerolog.Nop())
	f.service = NewWithdrawalService(f.accounts, f.withdrawals, f.gateway, f.reconciler, f.journal, time.Second, zerolog.Nop())
	return f
}

func (f *fixture) createAccount(t *testing.T, address string, balance int64) {
	t.Helper()
	_, err := f.accounts.Create(context.Background(), address, decimal.NewFromInt(balance))
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, address string) decimal.Decimal {
	t.Helper()
	acc, err := f.accounts.Get(context.Background(), address)
	require.NoError(t, err)
	return acc.Balance
}

func (f *fixture) status(t *testing.T, id uuid.UUID) domain.WithdrawalStatus {
	t.Helper()
	w, err := f.withdrawals.GetByID(context.Background(), id)
	require.NoError(t, err)
	return w.Status
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (f *fixture) assertBalance(t *testing.T, address, want string) {
	t.Helper()
	got := f.balance(t, address)
	require.Truef(t, got.Equal(dec(want)), "balance of %s: want %s, got %s", address, want, got)
}

// panickingWithdrawals panics on the Save call numbered panicOn (1-based) and
// delegates every other call.
type panickingWithdrawals struct {
	port.WithdrawalRepository
	panicOn int
	saves   int
}

func (p *panickingWithdrawals) Save(ctx context.Context, w domain.Withdrawal) *domain.Withdrawal {
	p.saves++
	if p.saves == p.panicOn {
		panic("store crashed")
	}
	return p.WithdrawalRepository.Save(ctx, w)
}

// panickingWatcher panics on the first Watch and delegates afterwards.
type panickingWatcher struct {
	port.WithdrawalWatcher
	panicked bool
}

func (p *panickingWatcher) Watch(w domain.Withdrawal) {
	if !p.panicked {
		p.panicked = true
		panic("watcher crashed")
	}
	p.WithdrawalWatcher.Watch(w)
}
