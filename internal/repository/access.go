package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rongwang/banking-server/internal/models"
)

// RoleOf returns the character's role on the account, or RoleNone when it has none
func (r *SQLRepository) RoleOf(ctx context.Context, accountID, charID int64) (models.Role, error) {
	query := r.db.Rebind(`SELECT role FROM accounts_access WHERE account_id = ? AND char_id = ?`)

	var role models.Role
	err := r.db.GetContext(ctx, &role, query, accountID, charID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RoleNone, nil
		}
		return models.RoleNone, err
	}

	return role, nil
}

// SetAccess grants role to the character, replacing any role it held before
func (r *SQLRepository) SetAccess(ctx context.Context, accountID, charID int64, role models.Role) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		return r.setAccessTx(ctx, tx, accountID, charID, role, time.Now().UTC())
	})
}

func (r *SQLRepository) setAccessTx(
	ctx context.Context,
	tx *sqlx.Tx,
	accountID, charID int64,
	role models.Role,
	createdAt time.Time,
) error {
	query := tx.Rebind(`
		INSERT INTO accounts_access (account_id, char_id, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (account_id, char_id) DO UPDATE SET role = excluded.role
	`)

	_, err := tx.ExecContext(ctx, query, accountID, charID, role, createdAt)
	return err
}

// UpdateAccess changes an existing non-owner member's role. It reports false
// when no such member exists.
func (r *SQLRepository) UpdateAccess(ctx context.Context, accountID, charID int64, role models.Role) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE accounts_access SET role = ? WHERE account_id = ? AND char_id = ? AND role <> ?`),
		role, accountID, charID, models.RoleOwner)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RemoveAccess deletes a non-owner member. It reports false when nothing was removed.
func (r *SQLRepository) RemoveAccess(ctx context.Context, accountID, charID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`DELETE FROM accounts_access WHERE account_id = ? AND char_id = ? AND role <> ?`),
		accountID, charID, models.RoleOwner)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TransferOwnership hands the account to toCharID and demotes fromCharID to
// manager. All writes happen in one transaction; if fromCharID no longer owns
// the account nothing is changed and models.ErrConflict is returned.
func (r *SQLRepository) TransferOwnership(ctx context.Context, accountID, fromCharID, toCharID int64) error {
	if fromCharID == toCharID {
		return fmt.Errorf("%w: account already owned by %d", models.ErrInvalidTarget, toCharID)
	}

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		var owner sql.NullInt64
		err := tx.GetContext(ctx, &owner, tx.Rebind(`SELECT owner FROM accounts WHERE id = ?`), accountID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %d", models.ErrAccountNotFound, accountID)
			}
			return err
		}
		if !owner.Valid || owner.Int64 != fromCharID {
			return fmt.Errorf("%w: account %d is not owned by %d", models.ErrConflict, accountID, fromCharID)
		}

		if err := r.setAccessTx(ctx, tx, accountID, toCharID, models.RoleOwner, time.Now().UTC()); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			tx.Rebind(`UPDATE accounts SET owner = ?, is_default = ? WHERE id = ?`),
			toCharID, false, accountID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE accounts_access SET role = ? WHERE account_id = ? AND char_id = ? AND role = ?`),
			models.RoleManager, accountID, fromCharID, models.RoleOwner)
		if err != nil {
			return err
		}
		return requireRow(res, fmt.Errorf("%w: previous owner %d lost the owner role", models.ErrConflict, fromCharID))
	})
}

// ListUsers returns one zero-based page of members ordered owner first, then
// manager, then contributor, filtered by a case-insensitive match on the
// display name. It also returns the total page count of the filtered set.
func (r *SQLRepository) ListUsers(
	ctx context.Context,
	accountID int64,
	page int,
	search string,
	pageSize int,
) ([]models.AccessTableUser, int, error) {
	where := `c.account_id = ?`
	args := []interface{}{accountID}
	if search = strings.TrimSpace(search); search != "" {
		where += ` AND LOWER(ch.first_name || ' ' || ch.last_name) LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToLower(search))+"%")
	}

	from := `
		FROM accounts_access c
		LEFT JOIN characters ch ON ch.char_id = c.char_id
		WHERE ` + where

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*)`+from), args...); err != nil {
		return nil, 0, err
	}

	query := r.db.Rebind(`
		SELECT COALESCE(ch.first_name || ' ' || ch.last_name, '') AS name,
			COALESCE(ch.state_id, '') AS state_id,
			c.role` + from + `
		ORDER BY CASE c.role WHEN 'owner' THEN 0 WHEN 'manager' THEN 1 ELSE 2 END, name, c.char_id
		LIMIT ? OFFSET ?
	`)

	users := []models.AccessTableUser{}
	pageArgs := append(args, pageSize, page*pageSize)
	if err := r.db.SelectContext(ctx, &users, query, pageArgs...); err != nil {
		return nil, 0, err
	}

	return users, pageCount(total, pageSize), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
