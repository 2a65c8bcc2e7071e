package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/banking-server/internal/models"
)

const transactionColumns = `id, reference, actor_id, from_id, to_id, amount, from_balance, to_balance, date, reason`

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

// insertTransaction appends t to the ledger, filling in its id, reference and date.
func insertTransaction(ctx context.Context, tx *sqlx.Tx, t *models.Transaction) error {
	if t.Reference == "" {
		t.Reference = uuid.NewString()
	}
	if t.Date.IsZero() {
		t.Date = time.Now().UTC()
	}

	query := tx.Rebind(`
		INSERT INTO accounts_transactions (reference, actor_id, from_id, to_id, amount, from_balance, to_balance, date, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	return tx.QueryRowxContext(ctx, query,
		t.Reference, t.ActorID, t.FromID, t.ToID, t.Amount, t.FromBalance, t.ToBalance, t.Date, t.Reason,
	).Scan(&t.ID)
}

func getTransactionByReference(ctx context.Context, q queryer, reference string) (*models.Transaction, error) {
	query := q.Rebind(`SELECT ` + transactionColumns + ` FROM accounts_transactions WHERE reference = ?`)

	var t models.Transaction
	err := sqlx.GetContext(ctx, q, &t, query, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &t, nil
}

// GetTransactionByReference returns nil when no entry carries reference
func (r *SQLRepository) GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	return getTransactionByReference(ctx, r.db, reference)
}

// RecentTransactions returns the newest entries touching accountID, newest first
func (r *SQLRepository) RecentTransactions(ctx context.Context, accountID int64, limit int) ([]models.Transaction, error) {
	query := r.db.Rebind(`
		SELECT ` + transactionColumns + `
		FROM accounts_transactions
		WHERE from_id = ? OR to_id = ?
		ORDER BY date DESC, id DESC
		LIMIT ?
	`)

	transactions := []models.Transaction{}
	if err := r.db.SelectContext(ctx, &transactions, query, accountID, accountID, limit); err != nil {
		return nil, err
	}

	return transactions, nil
}

// ListTransactions returns one zero-based page of entries touching accountID
// along with the total page count.
func (r *SQLRepository) ListTransactions(ctx context.Context, accountID int64, page, pageSize int) ([]models.Transaction, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		r.db.Rebind(`SELECT COUNT(*) FROM accounts_transactions WHERE from_id = ? OR to_id = ?`),
		accountID, accountID)
	if err != nil {
		return nil, 0, err
	}

	query := r.db.Rebind(`
		SELECT ` + transactionColumns + `
		FROM accounts_transactions
		WHERE from_id = ? OR to_id = ?
		ORDER BY date DESC, id DESC
		LIMIT ? OFFSET ?
	`)

	transactions := []models.Transaction{}
	if err := r.db.SelectContext(ctx, &transactions, query, accountID, accountID, pageSize, page*pageSize); err != nil {
		return nil, 0, err
	}

	return transactions, pageCount(total, pageSize), nil
}
