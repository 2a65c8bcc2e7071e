package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rongwang/banking-server/internal/models"
)

const accountColumns = `a.id, COALESCE(a.label, '') AS label, a.owner, COALESCE(a.group_name, '') AS group_name,
	a.balance, a.is_default, a.type, a.created_at`

// CreateAccount inserts the account and its owner access row in one transaction.
// A personal account becomes the character's default when it has none yet.
func (r *SQLRepository) CreateAccount(
	ctx context.Context,
	charID int64,
	label string,
	accountType models.AccountType,
) (*models.Account, error) {
	owner := charID
	account := &models.Account{
		Label:     label,
		Owner:     &owner,
		Type:      accountType,
		CreatedAt: time.Now().UTC(),
	}

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if accountType == models.AccountPersonal {
			var defaults int
			err := tx.GetContext(ctx, &defaults,
				tx.Rebind(`SELECT COUNT(*) FROM accounts WHERE owner = ? AND is_default = ?`), charID, true)
			if err != nil {
				return err
			}
			account.IsDefault = defaults == 0
		}

		err := tx.QueryRowxContext(ctx, tx.Rebind(`
			INSERT INTO accounts (label, owner, balance, is_default, type, created_at)
			VALUES (?, ?, 0, ?, ?, ?)
			RETURNING id
		`), account.Label, charID, account.IsDefault, account.Type, account.CreatedAt).Scan(&account.ID)
		if err != nil {
			return err
		}

		return r.setAccessTx(ctx, tx, account.ID, charID, models.RoleOwner, account.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// DeleteAccount removes the account and every access row. Ledger rows are kept.
func (r *SQLRepository) DeleteAccount(ctx context.Context, accountID int64) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		// Delete access rows first (due to foreign key constraint)
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM accounts_access WHERE account_id = ?`), accountID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM accounts WHERE id = ?`), accountID)
		if err != nil {
			return err
		}
		return requireRow(res, models.ErrAccountNotFound)
	})
}

func (r *SQLRepository) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	query := r.db.Rebind(`SELECT ` + accountColumns + ` FROM accounts a WHERE a.id = ?`)

	var account models.Account
	err := r.db.GetContext(ctx, &account, query, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Account not found
		}
		return nil, err
	}

	return &account, nil
}

func (r *SQLRepository) GetDefaultAccount(ctx context.Context, charID int64) (*models.Account, error) {
	query := r.db.Rebind(`SELECT ` + accountColumns + ` FROM accounts a WHERE a.owner = ? AND a.is_default = ? ORDER BY a.id LIMIT 1`)

	var account models.Account
	err := r.db.GetContext(ctx, &account, query, charID, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No default account
		}
		return nil, err
	}

	return &account, nil
}

// GetCharacterAccounts lists every account the character has a role on,
// joined with the owner's name.
func (r *SQLRepository) GetCharacterAccounts(ctx context.Context, charID int64) ([]models.AccessRow, error) {
	query := r.db.Rebind(`
		SELECT ` + accountColumns + `, o.first_name AS owner_first_name, o.last_name AS owner_last_name, c.role
		FROM accounts_access c
		JOIN accounts a ON a.id = c.account_id
		LEFT JOIN characters o ON o.char_id = a.owner
		WHERE c.char_id = ?
		ORDER BY a.id
	`)

	var rows []models.AccessRow
	if err := r.db.SelectContext(ctx, &rows, query, charID); err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *SQLRepository) RenameAccount(ctx context.Context, accountID int64, label string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE accounts SET label = ? WHERE id = ?`), label, accountID)
	if err != nil {
		return err
	}
	return requireRow(res, models.ErrAccountNotFound)
}

// ConvertToShared turns a personal, non-default account into a shared one.
// Converting an already shared account is a no-op.
func (r *SQLRepository) ConvertToShared(ctx context.Context, accountID int64) error {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE accounts SET type = ? WHERE id = ? AND type = ? AND is_default = ?`),
		models.AccountShared, accountID, models.AccountPersonal, false)
	if err != nil {
		return err
	}
	if err := requireRow(res, nil); err == nil {
		return nil
	}

	account, err := r.GetAccount(ctx, accountID)
	switch {
	case err != nil:
		return err
	case account == nil:
		return models.ErrAccountNotFound
	case account.Type == models.AccountShared:
		return nil
	default:
		return fmt.Errorf("%w: default account cannot be shared", models.ErrInvalidTarget)
	}
}

// requireRow returns notFound when res affected no rows. A nil notFound
// yields a generic sql.ErrNoRows.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if notFound == nil {
			return sql.ErrNoRows
		}
		return notFound
	}
	return nil
}
