package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rongwang/banking-server/internal/config"
	"github.com/rongwang/banking-server/internal/models"
	"github.com/rongwang/banking-server/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRepository(t *testing.T) *repository.SQLRepository {
	t.Helper()

	cfg := &config.Config{}
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.SQLitePath = ":memory:"

	db, err := config.SetupDatabase(cfg, zap.NewNop())
	require.NoError(t, err, "Failed to set up test database")
	t.Cleanup(func() { db.Close() })

	return repository.NewSQLRepository(db)
}

func createCharacter(t *testing.T, repo repository.Repository, charID int64, first, last string) *models.Character {
	t.Helper()

	character := &models.Character{
		CharID:    charID,
		StateID:   fmt.Sprintf("SID%d", charID),
		FirstName: first,
		LastName:  last,
	}
	require.NoError(t, repo.UpsertCharacter(context.Background(), character))
	return character
}

func balanceOf(t *testing.T, repo repository.Repository, accountID int64) int64 {
	t.Helper()

	account, err := repo.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	require.NotNil(t, account)
	return account.Balance
}

func ledgerCount(t *testing.T, repo repository.Repository, accountID int64) int {
	t.Helper()

	transactions, err := repo.RecentTransactions(context.Background(), accountID, 1000)
	require.NoError(t, err)
	return len(transactions)
}

func TestCreateAccount(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	createCharacter(t, repo, 1, "Alice", "Smith")

	personal, err := repo.CreateAccount(ctx, 1, "Checking", models.AccountPersonal)
	require.NoError(t, err)
	assert.True(t, personal.IsDefault, "first personal account becomes the default")

	second, err := repo.CreateAccount(ctx, 1, "Savings", models.AccountPersonal)
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	shared, err := repo.CreateAccount(ctx, 1, "Alice-account", models.AccountShared)
	require.NoError(t, err)
	assert.False(t, shared.IsDefault)

	role, err := repo.RoleOf(ctx, shared.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role)

	def, err := repo.GetDefaultAccount(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, personal.ID, def.ID)

	rows, err := repo.GetCharacterAccounts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Alice", *rows[0].OwnerFirstName)
	assert.Equal(t, models.RoleOwner, rows[2].Role)
	assert.Equal(t, models.AccountShared, rows[2].Type)
}

func TestDeleteAccount(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	createCharacter(t, repo, 1, "Alice", "Smith")

	account, err := repo.CreateAccount(ctx, 1, "Temp", models.AccountShared)
	require.NoError(t, err)
	_, err = repo.Deposit(ctx, repository.BalanceChange{AccountID: account.ID, Amount: 10, ActorID: 1})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteAccount(ctx, account.ID))

	got, err := repo.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	role, err := repo.RoleOf(ctx, account.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RoleNone, role)

	// Ledger rows survive for audit
	assert.Equal(t, 1, ledgerCount(t, repo, account.ID))

	err = repo.DeleteAccount(ctx, account.ID)
	assert.True(t, errors.Is(err, models.ErrAccountNotFound))

	_, err = repo.Deposit(ctx, repository.BalanceChange{AccountID: account.ID, Amount: 10, ActorID: 1})
	assert.True(t, errors.Is(err, models.ErrAccountNotFound))
}

func TestDepositThenOverdraw(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	createCharacter(t, repo, 1, "Alice", "Smith")

	account, err := repo.CreateAccount(ctx, 1, "Checking", models.AccountPersonal)
	require.NoError(t, err)

	txn, err := repo.Deposit(ctx, repository.BalanceChange{AccountID: account.ID, Amount: 100, ActorID: 1})
	require.NoError(t, err)
	assert.Nil(t, txn.FromID)
	require.NotNil(t, txn.ToID)
	assert.Equal(t, account.ID, *txn.ToID)
	assert.Equal(t, int64(100), *txn.ToBalance)
	assert.NotEmpty(t, txn.Reference)

	_, err = repo.Withdraw(ctx, repository.BalanceChange{AccountID: account.ID, Amount: 150, ActorID: 1})
	assert.True(t, errors.Is(err, models.ErrInsufficientFunds))

	assert.Equal(t, int64(100), balanceOf(t, repo, account.ID))
	assert.Equal(t, 1, ledgerCount(t, repo, account.ID))

	txn, err = repo.Withdraw(ctx, repository.BalanceChange{AccountID: account.ID, Amount: 100, ActorID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(0), *txn.FromBalance)
	assert.Equal(t, int64(0), balanceOf(t, repo, account.ID))
}

func TestNonPositiveAmounts(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	createCharacter(t, repo, 1, "Alice", "Smith")

	account, err := repo.CreateAccount(ctx, 1, "Checking", models.AccountPersonal)
	require.NoError(t, err)

	for _, amount := range []int64{0, -5} {
		_, err := repo.Deposit(ctx, repository.BalanceChange{AccountID: account.ID, Amount: amount, ActorID: 1})
		assert.True(t, errors.Is(err, models.ErrInvalidAmount))

		_, err = repo.Withdraw(ctx, repository.BalanceChange{AccountID: account.ID, Amount: amount, ActorID: 1})
		assert.True(t, errors.Is(err, models.ErrInvalidAmount))

		_, err = repo.TransferBalance(ctx, repository.Transfer{FromAccountID: account.ID, ToAccountID: 2, Amount: amount, ActorID: 1})
		assert.True(t, errors.Is(err, models.ErrInvalidAmount))
	}
	assert.Equal(t, 0, ledgerCount(t, repo, account.ID))
}

func TestWithdrawUnknownAccount(t *testing.T) {
	repo := setupRepository(t)

	_, err := repo.Withdraw(context.Background(), repository.BalanceChange{AccountID: 404, Amount: 1, ActorID: 1})
	assert.True(t, errors.Is(err, models.ErrAccountNotFound))
}

// SQLite runs on a single connection, so here the withdrawals are serialized
// and only the accounting is checked. postgres_test.go runs the same race on a
// real connection pool.
func TestConcurrentWithdrawals(t *testing.T) {
	assertWithdrawalsNeverOverdraw(t, setupRepository(t))
}

// assertWithdrawalsNeverOverdraw races ten withdrawals of 60 against a balance
// of 100: exactly one may succeed.
func assertWithdrawalsNeverOverdraw(t *testing.T, repo *repository.SQLRepository) {
	ctx := context.Background()
	createCharacter(t, repo, 1, "Alice", "Smith")

	account, err := repo.CreateAccount(ctx, 1, "Checking", models.AccountPersonal)
	require.NoError(t, err)
	_, err = repo.Deposit(ctx, repository.BalanceChange{AccountID: account.ID, Amount: 100, ActorID: 1})
	require.NoError(t, err)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		denied    int
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := repo.Withdraw(ctx, repository.BalanceChange{AccountID: account.ID, Amount: 60, ActorID: 1})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, models.ErrInsufficientFunds):
				denied++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, denied)
	assert.Equal(t, int64(40), balanceOf(t, repo, account.ID))
}

func TestTransferBalance(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	createCharacter(t, repo, 1, "Alice", "Smith")
	createCharacter(t, repo, 2, "Bob", "Jones")

	a, err := repo.CreateAccount(ctx, 1, "A", models.AccountPersonal)
	require.NoError(t, err)
	b, err := repo.CreateAccount(ctx, 2, "B", models.AccountPersonal)
	require.NoError(t, err)
	_, err = repo.Deposit(ctx, repository.BalanceChange{AccountID: a.ID, Amount: 500, ActorID: 1})
	require.NoError(t, err)

	t.Run("conserves the total", func(t *testing.T) {
		txn, err := repo.TransferBalance(ctx, repository.Transfer{
			FromAccountID: a.ID, ToAccountID: b.ID, Amount: 200, ActorID: 1, Reason: "rent",
		})
		require.NoError(t, err)
		assert.Equal(t, a.ID, *txn.FromID)
		assert.Equal(t, b.ID, *txn.ToID)
		assert.Equal(t, int64(300), *txn.FromBalance)
		assert.Equal(t, int64(200), *txn.ToBalance)

		assert.Equal(t, int64(300), balanceOf(t, repo, a.ID))
		assert.Equal(t, int64(200), balanceOf(t, repo, b.ID))

		// One ledger row for both legs
		recent, err := repo.RecentTransactions(ctx, b.ID, 5)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, models.Inbound, recent[0].DirectionFor(b.ID))
		assert.Equal(t, models.Outbound, recent[0].DirectionFor(a.ID))
	})

	t.Run("reverse direction", func(t *testing.T) {
		_, err := repo.TransferBalance(ctx, repository.Transfer{FromAccountID: b.ID, ToAccountID: a.ID, Amount: 50, ActorID: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(350), balanceOf(t, repo, a.ID))
		assert.Equal(t, int64(150), balanceOf(t, repo, b.ID))
	})

	t.Run("insufficient funds changes nothing", func(t *testing.T) {
		_, err := repo.TransferBalance(ctx, repository.Transfer{FromAccountID: b.ID, ToAccountID: a.ID, Amount: 1000, ActorID: 2})
		assert.True(t, errors.Is(err, models.ErrInsufficientFunds))
		assert.Equal(t, int64(350), balanceOf(t, repo, a.ID))
		assert.Equal(t, int64(150), balanceOf(t, repo, b.ID))
	})

	t.Run("missing destination rolls back the debit", func(t *testing.T) {
		_, err := repo.TransferBalance(ctx, repository.Transfer{FromAccountID: a.ID, ToAccountID: 9999, Amount: 10, ActorID: 1})
		assert.True(t, errors.Is(err, models.ErrAccountNotFound))
		assert.Equal(t, int64(350), balanceOf(t, repo, a.ID))
		assert.Equal(t, 2, ledgerCount(t, repo, b.ID))
	})

	t.Run("same account", func(t *testing.T) {
		_, err := repo.TransferBalance(ctx, repository.Transfer{FromAccountID: a.ID, ToAccountID: a.ID, Amount: 10, ActorID: 1})
		assert.True(t, errors.Is(err, models.ErrInvalidTarget))
	})
}

func TestRetriedReferenceIsNotAppliedTwice(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	createCharacter(t, repo, 1, "Alice", "Smith")

	account, err := repo.CreateAccount(ctx, 1, "Checking", models.AccountPersonal)
	require.NoError(t, err)

	change := repository.BalanceChange{AccountID: account.ID, Amount: 75, ActorID: 1, Reference: "req-1"}

	first, err := repo.Deposit(ctx, change)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := repo.Deposit(ctx, change)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(75), *second.ToBalance)

	assert.Equal(t, int64(75), balanceOf(t, repo, account.ID))
	assert.Equal(t, 1, ledgerCount(t, repo, account.ID))

	// Same reference, different movement
	_, err = repo.Withdraw(ctx, repository.BalanceChange{AccountID: account.ID, Amount: 75, ActorID: 1, Reference: "req-1"})
	assert.True(t, errors.Is(err, models.ErrConflict))
	assert.Equal(t, int64(75), balanceOf(t, repo, account.ID))

	stored, err := repo.GetTransactionByReference(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, first.ID, stored.ID)

	missing, err := repo.GetTransactionByReference(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSharingScenario(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	createCharacter(t, repo, 1, "Alice", "Smith")
	createCharacter(t, repo, 2, "Bob", "Jones")

	account, err := repo.CreateAccount(ctx, 1, "Alice-account", models.AccountShared)
	require.NoError(t, err)

	require.NoError(t, repo.SetAccess(ctx, account.ID, 2, models.RoleManager))
	role, err := repo.RoleOf(ctx, account.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, role)

	ok, err := repo.UpdateAccess(ctx, account.ID, 2, models.RoleContributor)
	require.NoError(t, err)
	assert.True(t, ok)
	role, _ = repo.RoleOf(ctx, account.ID, 2)
	assert.Equal(t, models.RoleContributor, role)

	// The owner row is never touched by member management
	ok, err = repo.UpdateAccess(ctx, account.ID, 1, models.RoleContributor)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.RemoveAccess(ctx, account.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.RemoveAccess(ctx, account.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	role, _ = repo.RoleOf(ctx, account.ID, 2)
	assert.Equal(t, models.RoleNone, role)
}

func TestTransferOwnership(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	createCharacter(t, repo, 1, "Alice", "Smith")
	createCharacter(t, repo, 2, "Bob", "Jones")

	account, err := repo.CreateAccount(ctx, 1, "Alice-account", models.AccountShared)
	require.NoError(t, err)
	require.NoError(t, repo.SetAccess(ctx, account.ID, 2, models.RoleContributor))

	require.NoError(t, repo.TransferOwnership(ctx, account.ID, 1, 2))

	users, _, err := repo.ListUsers(ctx, account.ID, 0, "", 10)
	require.NoError(t, err)
	owners := 0
	for _, u := range users {
		if u.Role == models.RoleOwner {
			owners++
			assert.Equal(t, "SID2", u.StateID)
		}
	}
	assert.Equal(t, 1, owners)

	role, _ := repo.RoleOf(ctx, account.ID, 1)
	assert.Equal(t, models.RoleManager, role)

	got, err := repo.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), *got.Owner)
	assert.False(t, got.IsDefault)

	t.Run("stale owner is a conflict", func(t *testing.T) {
		err := repo.TransferOwnership(ctx, account.ID, 1, 2)
		assert.True(t, errors.Is(err, models.ErrConflict))

		role, _ := repo.RoleOf(ctx, account.ID, 2)
		assert.Equal(t, models.RoleOwner, role)
	})

	t.Run("to self", func(t *testing.T) {
		err := repo.TransferOwnership(ctx, account.ID, 2, 2)
		assert.True(t, errors.Is(err, models.ErrInvalidTarget))
	})

	t.Run("missing account", func(t *testing.T) {
		err := repo.TransferOwnership(ctx, 9999, 1, 2)
		assert.True(t, errors.Is(err, models.ErrAccountNotFound))
	})
}

func TestListUsersPagination(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	createCharacter(t, repo, 1, "Olivia", "Owner")

	account, err := repo.CreateAccount(ctx, 1, "Club", models.AccountShared)
	require.NoError(t, err)

	for i := int64(2); i <= 16; i++ {
		createCharacter(t, repo, i, fmt.Sprintf("Member%02d", i), "Test")
		role := models.RoleContributor
		if i%5 == 0 {
			role = models.RoleManager
		}
		require.NoError(t, repo.SetAccess(ctx, account.ID, i, role))
	}

	first, pages, err := repo.ListUsers(ctx, account.ID, 0, "", 7)
	require.NoError(t, err)
	assert.Equal(t, 3, pages) // ceil(16 / 7)
	require.Len(t, first, 7)
	assert.Equal(t, models.RoleOwner, first[0].Role)
	assert.Equal(t, "Olivia Owner", first[0].Name)
	assert.Equal(t, models.RoleManager, first[1].Role)
	assert.Equal(t, models.RoleManager, first[2].Role)
	assert.Equal(t, models.RoleManager, first[3].Role)
	assert.Equal(t, models.RoleContributor, first[4].Role)

	last, _, err := repo.ListUsers(ctx, account.ID, 2, "", 7)
	require.NoError(t, err)
	assert.Len(t, last, 2)

	beyond, _, err := repo.ListUsers(ctx, account.ID, 5, "", 7)
	require.NoError(t, err)
	assert.Empty(t, beyond)

	found, pages, err := repo.ListUsers(ctx, account.ID, 0, "mEmBeR1", 7)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
	assert.Len(t, found, 7) // Member10..Member16

	none, pages, err := repo.ListUsers(ctx, account.ID, 0, "100%", 7)
	require.NoError(t, err)
	assert.Equal(t, 0, pages)
	assert.Empty(t, none)
}

func TestListTransactions(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	createCharacter(t, repo, 1, "Alice", "Smith")

	account, err := repo.CreateAccount(ctx, 1, "Checking", models.AccountPersonal)
	require.NoError(t, err)
	for i := 1; i <= 12; i++ {
		_, err := repo.Deposit(ctx, repository.BalanceChange{AccountID: account.ID, Amount: int64(i), ActorID: 1})
		require.NoError(t, err)
	}

	page, pages, err := repo.ListTransactions(ctx, account.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	require.Len(t, page, 10)
	assert.Equal(t, int64(12), page[0].Amount, "newest first")

	page, _, err = repo.ListTransactions(ctx, account.ID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	recent, err := repo.RecentTransactions(ctx, account.ID, 5)
	require.NoError(t, err)
	assert.Len(t, recent, 5)
}

func TestRenameAndConvert(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	createCharacter(t, repo, 1, "Alice", "Smith")

	def, err := repo.CreateAccount(ctx, 1, "Checking", models.AccountPersonal)
	require.NoError(t, err)
	other, err := repo.CreateAccount(ctx, 1, "Savings", models.AccountPersonal)
	require.NoError(t, err)

	require.NoError(t, repo.RenameAccount(ctx, other.ID, "Rainy day"))
	got, _ := repo.GetAccount(ctx, other.ID)
	assert.Equal(t, "Rainy day", got.Label)

	err = repo.RenameAccount(ctx, 9999, "x")
	assert.True(t, errors.Is(err, models.ErrAccountNotFound))

	require.NoError(t, repo.ConvertToShared(ctx, other.ID))
	got, _ = repo.GetAccount(ctx, other.ID)
	assert.Equal(t, models.AccountShared, got.Type)

	// Converting twice is a no-op
	assert.NoError(t, repo.ConvertToShared(ctx, other.ID))

	err = repo.ConvertToShared(ctx, def.ID)
	assert.True(t, errors.Is(err, models.ErrInvalidTarget))

	err = repo.ConvertToShared(ctx, 9999)
	assert.True(t, errors.Is(err, models.ErrAccountNotFound))
}
