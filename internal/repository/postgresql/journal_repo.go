package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"withdrawal/internal/domain"
	"withdrawal/internal/port"

	"github.com/lib/pq"
)

var (
	uniqueConstraint pq.ErrorCode = "23505"
)

type journalRepository struct {
	db *sql.DB
}

// NewJournalRepository appends terminal withdrawals to withdrawal_journal.
func NewJournalRepository(db *sql.DB) port.Journal {
	return &journalRepository{db: db}
}

func (r *journalRepository) Record(ctx context.Context, w domain.Withdrawal) error {
	if !w.Status.IsTerminal() {
		return fmt.Errorf("journal accepts terminal withdrawals only, got %s", w.Status)
	}

	const query = `INSERT INTO withdrawal_journal (id, from_address, to_address, amount, status, idempotency_key, created_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var key sql.NullString
	if w.IdempotencyKey != "" {
		key = sql.NullString{String: w.IdempotencyKey, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		w.ID, w.FromAddress, w.ToAddress, w.Amount.String(), string(w.Status), key, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("insert withdrawal %s into journal: %w", w.ID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueConstraint
}
