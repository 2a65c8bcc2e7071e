package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rongwang/banking-server/internal/models"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// Character operations
	UpsertCharacter(ctx context.Context, character *models.Character) error
	GetCharacterByStateID(ctx context.Context, stateID string) (*models.Character, error)

	// Account operations
	CreateAccount(ctx context.Context, charID int64, label string, accountType models.AccountType) (*models.Account, error)
	DeleteAccount(ctx context.Context, accountID int64) error
	GetAccount(ctx context.Context, accountID int64) (*models.Account, error)
	GetDefaultAccount(ctx context.Context, charID int64) (*models.Account, error)
	GetCharacterAccounts(ctx context.Context, charID int64) ([]models.AccessRow, error)
	RenameAccount(ctx context.Context, accountID int64, label string) error
	ConvertToShared(ctx context.Context, accountID int64) error

	// Balance operations
	Deposit(ctx context.Context, change BalanceChange) (*models.Transaction, error)
	Withdraw(ctx context.Context, change BalanceChange) (*models.Transaction, error)
	TransferBalance(ctx context.Context, transfer Transfer) (*models.Transaction, error)

	// Account sharing operations
	RoleOf(ctx context.Context, accountID, charID int64) (models.Role, error)
	SetAccess(ctx context.Context, accountID, charID int64, role models.Role) error
	UpdateAccess(ctx context.Context, accountID, charID int64, role models.Role) (bool, error)
	RemoveAccess(ctx context.Context, accountID, charID int64) (bool, error)
	TransferOwnership(ctx context.Context, accountID, fromCharID, toCharID int64) error
	ListUsers(ctx context.Context, accountID int64, page int, search string, pageSize int) ([]models.AccessTableUser, int, error)

	// Ledger operations
	RecentTransactions(ctx context.Context, accountID int64, limit int) ([]models.Transaction, error)
	ListTransactions(ctx context.Context, accountID int64, page, pageSize int) ([]models.Transaction, int, error)
	GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
}

// SQLRepository implements the Repository interface over PostgreSQL or SQLite.
// Queries use '?' placeholders and are rebound for the connected driver.
type SQLRepository struct {
	db *sqlx.DB
}

// NewSQLRepository creates a new SQL repository
func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *SQLRepository) GetDB() *sqlx.DB {
	return r.db
}

// withTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise. fn must only use tx: SQLite runs on one connection.
func (r *SQLRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// pageCount returns ceil(total / pageSize)
func pageCount(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

var _ Repository = (*SQLRepository)(nil)
