package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"withdrawal/internal/domain"
	"withdrawal/internal/gateway"
	"withdrawal/internal/repository/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// submitExternal creates A=10 and an accepted external withdrawal of 1.
func submitExternal(t *testing.T, f *fixture) *domain.Withdrawal {
	t.Helper()
	f.createAccount(t, "A", 10)
	f.gateway.On("Submit", mock.Anything, mock.Anything, "unknown", mock.Anything).Return(nil).Once()

	w, err := f.service.CreateWithdrawal(context.Background(), &domain.WithdrawalReq{
		FromAddress: "A", ToAddress: "unknown", Amount: dec("1"),
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusProcessing, w.Status)
	f.assertBalance(t, "A", "9")
	return w
}

func TestReconciler_Completed(t *testing.T) {
	f := newFixture(t, 1)
	w := submitExternal(t, f)
	f.gateway.On("PollStatus", mock.Anything, w.ID).Return(domain.StatusCompleted, nil).Once()

	f.reconciler.Tick(context.Background())

	assert.Equal(t, domain.StatusCompleted, f.status(t, w.ID))
	f.assertBalance(t, "A", "9")
	assert.Equal(t, 0, f.reconciler.Pending())
	f.journal.AssertCalled(t, "Record", mock.Anything, mock.MatchedBy(func(j domain.Withdrawal) bool {
		return j.ID == w.ID && j.Status == domain.StatusCompleted
	}))
}

func TestReconciler_FailedRefunds(t *testing.T) {
	f := newFixture(t, 1)
	w := submitExternal(t, f)
	f.gateway.On("PollStatus", mock.Anything, w.ID).Return(domain.StatusFailed, nil).Once()

	f.reconciler.Tick(context.Background())

	assert.Equal(t, domain.StatusFailed, f.status(t, w.ID))
	f.assertBalance(t, "A", "10")
	assert.Equal(t, 0, f.reconciler.Pending())
}

func TestReconciler_UnknownWithdrawalRefundsImmediately(t *testing.T) {
	f := newFixture(t, 5)
	w := submitExternal(t, f)
	f.gateway.On("PollStatus", mock.Anything, w.ID).
		Return(domain.WithdrawalStatus(""), domain.ErrUnknownWithdrawal).Once()

	f.reconciler.Tick(context.Background())

	assert.Equal(t, domain.StatusFailed, f.status(t, w.ID))
	f.assertBalance(t, "A", "10")
}

func TestReconciler_ProcessingStaysPending(t *testing.T) {
	f := newFixture(t, 1)
	w := submitExternal(t, f)
	f.gateway.On("PollStatus", mock.Anything, w.ID).Return(domain.StatusProcessing, nil).Twice()

	f.reconciler.Tick(context.Background())
	f.reconciler.Tick(context.Background())

	assert.Equal(t, domain.StatusProcessing, f.status(t, w.ID))
	f.assertBalance(t, "A", "9")
	assert.Equal(t, 1, f.reconciler.Pending())
	f.gateway.AssertNumberOfCalls(t, "PollStatus", 2)
}

func TestReconciler_TransientErrorImmediateWhenMaxIsOne(t *testing.T) {
	f := newFixture(t, 1)
	w := submitExternal(t, f)
	f.gateway.On("PollStatus", mock.Anything, w.ID).
		Return(domain.WithdrawalStatus(""), fmt.Errorf("connection reset")).Once()

	f.reconciler.Tick(context.Background())

	assert.Equal(t, domain.StatusFailed, f.status(t, w.ID))
	f.assertBalance(t, "A", "10")
}

func TestReconciler_TransientErrorsRetriedUpToLimit(t *testing.T) {
	f := newFixture(t, 3)
	w := submitExternal(t, f)
	f.gateway.On("PollStatus", mock.Anything, w.ID).
		Return(domain.WithdrawalStatus(""), domain.ErrGatewayUnavailable).Times(3)

	f.reconciler.Tick(context.Background())
	f.reconciler.Tick(context.Background())
	assert.Equal(t, domain.StatusProcessing, f.status(t, w.ID))
	f.assertBalance(t, "A", "9")

	f.reconciler.Tick(context.Background())
	assert.Equal(t, domain.StatusFailed, f.status(t, w.ID))
	f.assertBalance(t, "A", "10")
	f.gateway.AssertExpectations(t)
}

func TestReconciler_ProcessingResetsTransientCounter(t *testing.T) {
	f := newFixture(t, 2)
	w := submitExternal(t, f)
	f.gateway.On("PollStatus", mock.Anything, w.ID).
		Return(domain.WithdrawalStatus(""), domain.ErrGatewayUnavailable).Once()
	f.gateway.On("PollStatus", mock.Anything, w.ID).Return(domain.StatusProcessing, nil).Once()
	f.gateway.On("PollStatus", mock.Anything, w.ID).
		Return(domain.WithdrawalStatus(""), domain.ErrGatewayUnavailable).Once()

	for i := 0; i < 3; i++ {
		f.reconciler.Tick(context.Background())
	}

	assert.Equal(t, domain.StatusProcessing, f.status(t, w.ID))
	assert.Equal(t, 1, f.reconciler.Pending())
}

func TestReconciler_TerminalStateIsFinal(t *testing.T) {
	f := newFixture(t, 1)
	w := submitExternal(t, f)
	f.gateway.On("PollStatus", mock.Anything, w.ID).Return(domain.StatusFailed, nil).Once()

	for i := 0; i < 3; i++ {
		f.reconciler.Tick(context.Background())
	}

	assert.Equal(t, domain.StatusFailed, f.status(t, w.ID))
	f.assertBalance(t, "A", "10")
	f.gateway.AssertNumberOfCalls(t, "PollStatus", 1)
}

func TestReconciler_AlreadyTerminalRecordIsNotRefundedTwice(t *testing.T) {
	f := newFixture(t, 1)
	w := submitExternal(t, f)
	f.withdrawals.Save(context.Background(), w.WithStatus(domain.StatusCompleted))
	f.gateway.On("PollStatus", mock.Anything, w.ID).Return(domain.StatusFailed, nil).Once()

	f.reconciler.Tick(context.Background())

	assert.Equal(t, domain.StatusCompleted, f.status(t, w.ID))
	f.assertBalance(t, "A", "9")
	assert.Equal(t, 0, f.reconciler.Pending())
}

func TestReconciler_WatchIsIdempotent(t *testing.T) {
	f := newFixture(t, 1)
	w := submitExternal(t, f)

	f.reconciler.Watch(*w)
	assert.Equal(t, 1, f.reconciler.Pending())
}

func TestReconciler_TickVisitsAllPending(t *testing.T) {
	f := newFixture(t, 1)
	f.createAccount(t, "A", 100)
	f.gateway.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("PollStatus", mock.Anything, mock.Anything).Return(domain.StatusFailed, nil)

	for i := 0; i < 20; i++ {
		_, err := f.service.CreateWithdrawal(context.Background(), &domain.WithdrawalReq{
			FromAddress: "A", ToAddress: fmt.Sprintf("ext-%d", i), Amount: dec("5"),
		})
		require.NoError(t, err)
	}
	f.assertBalance(t, "A", "0")

	f.reconciler.Tick(context.Background())

	assert.Equal(t, 0, f.reconciler.Pending())
	f.assertBalance(t, "A", "100")
	f.gateway.AssertNumberOfCalls(t, "PollStatus", 20)
}

func TestReconciler_RunRejectsNonPositiveInterval(t *testing.T) {
	r := NewReconciler(ReconcilerConfig{}, memory.NewAccountRepository(), memory.NewWithdrawalRepository(),
		new(MockGateway), nil, zerolog.Nop())

	assert.Error(t, r.Run(context.Background()))
}

func TestReconciler_RunWithSimulatedGateway(t *testing.T) {
	accounts := memory.NewAccountRepository()
	withdrawals := memory.NewWithdrawalRepository()
	gw := gateway.NewSimulated(time.Hour, 0, zerolog.Nop())
	r := NewReconciler(ReconcilerConfig{
		Interval:             10 * time.Millisecond,
		Concurrency:          2,
		MaxTransientFailures: 1,
		GatewayTimeout:       time.Second,
	}, accounts, withdrawals, gw, nil, zerolog.Nop())
	svc := NewWithdrawalService(accounts, withdrawals, gw, r, nil, time.Second, zerolog.Nop())

	_, err := accounts.Create(context.Background(), "A", dec("10"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	completed, err := svc.CreateWithdrawal(ctx, &domain.WithdrawalReq{FromAddress: "A", ToAddress: "ext-1", Amount: dec("1")})
	require.NoError(t, err)
	failed, err := svc.CreateWithdrawal(ctx, &domain.WithdrawalReq{FromAddress: "A", ToAddress: "ext-2", Amount: dec("2")})
	require.NoError(t, err)

	require.NoError(t, gw.Settle(completed.ID, domain.StatusCompleted))
	require.NoError(t, gw.Settle(failed.ID, domain.StatusFailed))

	require.Eventually(t, func() bool { return r.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	s, err := svc.GetWithdrawalStatus(context.Background(), completed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, s)
	s, err = svc.GetWithdrawalStatus(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, s)

	acc, err := accounts.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("9")), "got %s", acc.Balance)
}
