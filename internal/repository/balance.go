package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rongwang/banking-server/internal/models"
)

// BalanceChange describes a deposit into or withdrawal from one account
type BalanceChange struct {
	AccountID int64
	Amount    int64
	ActorID   int64
	// Reference identifies the request; a retried reference is not applied twice.
	Reference string
	Reason    string
}

// Transfer describes a movement between two accounts
type Transfer struct {
	FromAccountID int64
	ToAccountID   int64
	Amount        int64
	ActorID       int64
	Reference     string
	Reason        string
}

// Deposit credits change.Amount and records a ledger entry with no source account.
func (r *SQLRepository) Deposit(ctx context.Context, change BalanceChange) (*models.Transaction, error) {
	if change.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidAmount, change.Amount)
	}

	txn := &models.Transaction{
		Reference: change.Reference,
		ActorID:   &change.ActorID,
		ToID:      &change.AccountID,
		Amount:    change.Amount,
		Reason:    change.Reason,
	}

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if replay, err := r.replayTx(ctx, tx, txn); err != nil || replay != nil {
			if replay != nil {
				txn = replay
			}
			return err
		}

		balance, err := credit(ctx, tx, change.AccountID, change.Amount)
		if err != nil {
			return err
		}
		txn.ToBalance = &balance

		return insertTransaction(ctx, tx, txn)
	})
	if err != nil {
		return r.recoverReplay(ctx, txn, err)
	}

	return txn, nil
}

// Withdraw debits change.Amount. The balance never goes below zero: the
// debit only applies when the row still holds enough funds.
func (r *SQLRepository) Withdraw(ctx context.Context, change BalanceChange) (*models.Transaction, error) {
	if change.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidAmount, change.Amount)
	}

	txn := &models.Transaction{
		Reference: change.Reference,
		ActorID:   &change.ActorID,
		FromID:    &change.AccountID,
		Amount:    change.Amount,
		Reason:    change.Reason,
	}

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if replay, err := r.replayTx(ctx, tx, txn); err != nil || replay != nil {
			if replay != nil {
				txn = replay
			}
			return err
		}

		balance, err := debit(ctx, tx, change.AccountID, change.Amount)
		if err != nil {
			return err
		}
		txn.FromBalance = &balance

		return insertTransaction(ctx, tx, txn)
	})
	if err != nil {
		return r.recoverReplay(ctx, txn, err)
	}

	return txn, nil
}

// TransferBalance moves an amount between two accounts in one transaction.
// Rows are locked in ascending id order so opposing transfers cannot deadlock.
func (r *SQLRepository) TransferBalance(ctx context.Context, transfer Transfer) (*models.Transaction, error) {
	if transfer.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidAmount, transfer.Amount)
	}
	if transfer.FromAccountID == transfer.ToAccountID {
		return nil, fmt.Errorf("%w: source and destination are the same account", models.ErrInvalidTarget)
	}

	txn := &models.Transaction{
		Reference: transfer.Reference,
		ActorID:   &transfer.ActorID,
		FromID:    &transfer.FromAccountID,
		ToID:      &transfer.ToAccountID,
		Amount:    transfer.Amount,
		Reason:    transfer.Reason,
	}

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if replay, err := r.replayTx(ctx, tx, txn); err != nil || replay != nil {
			if replay != nil {
				txn = replay
			}
			return err
		}

		ids := []int64{transfer.FromAccountID, transfer.ToAccountID}
		if ids[0] > ids[1] {
			ids[0], ids[1] = ids[1], ids[0]
		}

		for _, id := range ids {
			if id == transfer.FromAccountID {
				balance, err := debit(ctx, tx, id, transfer.Amount)
				if err != nil {
					return err
				}
				txn.FromBalance = &balance
				continue
			}

			balance, err := credit(ctx, tx, id, transfer.Amount)
			if err != nil {
				return err
			}
			txn.ToBalance = &balance
		}

		return insertTransaction(ctx, tx, txn)
	})
	if err != nil {
		return r.recoverReplay(ctx, txn, err)
	}

	return txn, nil
}

func credit(ctx context.Context, tx *sqlx.Tx, accountID, amount int64) (int64, error) {
	var balance int64
	err := tx.QueryRowxContext(ctx,
		tx.Rebind(`UPDATE accounts SET balance = balance + ? WHERE id = ? RETURNING balance`),
		amount, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", models.ErrAccountNotFound, accountID)
	}
	return balance, err
}

func debit(ctx context.Context, tx *sqlx.Tx, accountID, amount int64) (int64, error) {
	var balance int64
	err := tx.QueryRowxContext(ctx,
		tx.Rebind(`UPDATE accounts SET balance = balance - ? WHERE id = ? AND balance >= ? RETURNING balance`),
		amount, accountID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	// No row came back: either the account is gone or it cannot cover the debit.
	var exists int
	err = tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM accounts WHERE id = ?`), accountID)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, fmt.Errorf("%w: %d", models.ErrAccountNotFound, accountID)
	}
	return 0, models.ErrInsufficientFunds
}

// replayTx returns the stored entry when want's reference was already
// recorded. A stored entry describing a different movement is a conflict.
func (r *SQLRepository) replayTx(ctx context.Context, tx *sqlx.Tx, want *models.Transaction) (*models.Transaction, error) {
	if want.Reference == "" {
		return nil, nil
	}

	stored, err := getTransactionByReference(ctx, tx, want.Reference)
	if err != nil || stored == nil {
		return nil, err
	}
	if !sameMovement(stored, want) {
		return nil, fmt.Errorf("%w: reference %q already used", models.ErrConflict, want.Reference)
	}

	stored.Replayed = true
	return stored, nil
}

// recoverReplay handles a write that lost a race on the unique reference:
// if the winner recorded the same movement, its entry is returned instead.
func (r *SQLRepository) recoverReplay(ctx context.Context, want *models.Transaction, cause error) (*models.Transaction, error) {
	if want.Reference == "" || isDomainError(cause) {
		return nil, cause
	}

	stored, err := getTransactionByReference(ctx, r.db, want.Reference)
	if err != nil || stored == nil || !sameMovement(stored, want) {
		return nil, cause
	}

	stored.Replayed = true
	return stored, nil
}

func sameMovement(a, b *models.Transaction) bool {
	return a.Amount == b.Amount && sameID(a.FromID, b.FromID) && sameID(a.ToID, b.ToID)
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func isDomainError(err error) bool {
	for _, target := range []error{
		models.ErrAccountNotFound,
		models.ErrInsufficientFunds,
		models.ErrInvalidTarget,
		models.ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
