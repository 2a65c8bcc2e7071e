//go:build postgres

package repository_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rongwang/banking-server/internal/config"
	"github.com/rongwang/banking-server/internal/models"
	"github.com/rongwang/banking-server/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Run with: go test -tags postgres ./internal/repository/
// The database is taken from the usual DB_* variables.
func setupPostgresRepository(t *testing.T) *repository.SQLRepository {
	t.Helper()

	cfg, err := config.ParseEnv()
	require.NoError(t, err, "Failed to parse config")
	cfg.Database.Driver = config.DriverPostgres

	db, err := config.SetupDatabase(cfg, zap.NewNop())
	require.NoError(t, err, "Failed to set up test database")
	t.Cleanup(func() { db.Close() })

	return repository.NewSQLRepository(db)
}

func TestPostgresConcurrentWithdrawals(t *testing.T) {
	assertWithdrawalsNeverOverdraw(t, setupPostgresRepository(t))
}

func TestPostgresCrossedTransfers(t *testing.T) {
	repo := setupPostgresRepository(t)
	ctx := context.Background()
	createCharacter(t, repo, 1, "Alice", "Smith")

	a, err := repo.CreateAccount(ctx, 1, "A", models.AccountShared)
	require.NoError(t, err)
	b, err := repo.CreateAccount(ctx, 1, "B", models.AccountShared)
	require.NoError(t, err)

	for _, id := range []int64{a.ID, b.ID} {
		_, err = repo.Deposit(ctx, repository.BalanceChange{AccountID: id, Amount: 1000, ActorID: 1})
		require.NoError(t, err)
	}

	// Opposite directions lock the same two rows; a fixed lock order keeps
	// this free of deadlocks.
	const rounds = 20
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := repo.TransferBalance(ctx, repository.Transfer{FromAccountID: a.ID, ToAccountID: b.ID, Amount: 7, ActorID: 1})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := repo.TransferBalance(ctx, repository.Transfer{FromAccountID: b.ID, ToAccountID: a.ID, Amount: 5, ActorID: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000-rounds*2), balanceOf(t, repo, a.ID))
	assert.Equal(t, int64(1000+rounds*2), balanceOf(t, repo, b.ID))
}
