package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreasDeCrinis/finance-tracker/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustDate(t *testing.T, iso string) core.Date {
	t.Helper()
	d, err := core.ParseFormDate(iso)
	require.NoError(t, err)
	return d
}

func TestCreateAccountDuplicateName(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	acc, err := repo.CreateAccount(ctx, core.Account{Name: "Checking"})
	require.NoError(t, err)
	assert.NotZero(t, acc.ID)
	assert.Equal(t, core.DefaultAccountType, acc.Type)

	_, err = repo.CreateAccount(ctx, core.Account{Name: "Checking"})
	assert.ErrorIs(t, err, core.ErrDuplicateName)
}

func TestGetAccountNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetAccount(context.Background(), 42)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = repo.GetAccountByName(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateAccountSettings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.CreateAccount(ctx, core.Account{Name: "Depot"})
	require.NoError(t, err)
	_, err = repo.CreateAccount(ctx, core.Account{Name: "Broker"})
	require.NoError(t, err)

	first.Name = "Depot XL"
	first.Type = "depot"
	first.MonthlyPaymentEnabled = true
	first.MonthlyPayment = core.Money{Cents: 25000}
	require.NoError(t, repo.UpdateAccountSettings(ctx, first))

	got, err := repo.GetAccount(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Depot XL", got.Name)
	assert.Equal(t, "depot", got.Type)
	assert.True(t, got.MonthlyPaymentEnabled)
	assert.Equal(t, int64(25000), got.MonthlyPayment.Cents)

	// Renaming onto another account's name collides.
	first.Name = "Broker"
	assert.ErrorIs(t, repo.UpdateAccountSettings(ctx, first), core.ErrDuplicateName)

	missing := core.Account{ID: 9999, Name: "Ghost"}
	assert.ErrorIs(t, repo.UpdateAccountSettings(ctx, missing), core.ErrNotFound)
}

func TestUpsertBalancePointOverwrites(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	acc, err := repo.CreateAccount(ctx, core.Account{Name: "Checking"})
	require.NoError(t, err)
	day := mustDate(t, "2024-01-15")

	created, err := repo.UpsertBalancePoint(ctx, acc.ID, day, core.Money{Cents: 10000})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.UpsertBalancePoint(ctx, acc.ID, day, core.Money{Cents: 20000})
	require.NoError(t, err)
	assert.False(t, created)

	// Exactly one observation remains, holding the second write's value.
	points, err := repo.ListPointsByAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, int64(20000), points[0].Balance.Cents)
	assert.Equal(t, "2024-01-15", points[0].Date.ISO())
}

func TestListPointsOrderedByDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	acc, err := repo.CreateAccount(ctx, core.Account{Name: "Checking"})
	require.NoError(t, err)

	for _, iso := range []string{"2024-03-01", "2024-01-01", "2024-02-01"} {
		_, err := repo.UpsertBalancePoint(ctx, acc.ID, mustDate(t, iso), core.Money{Cents: 100})
		require.NoError(t, err)
	}

	points, err := repo.ListPointsByAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "2024-01-01", points[0].Date.ISO())
	assert.Equal(t, "2024-02-01", points[1].Date.ISO())
	assert.Equal(t, "2024-03-01", points[2].Date.ISO())
}

func TestCurrentBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	acc, err := repo.CreateAccount(ctx, core.Account{Name: "Checking"})
	require.NoError(t, err)

	bal, err := repo.CurrentBalance(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	_, err = repo.UpsertBalancePoint(ctx, acc.ID, mustDate(t, "2024-02-01"), core.Money{Cents: 500})
	require.NoError(t, err)
	_, err = repo.UpsertBalancePoint(ctx, acc.ID, mustDate(t, "2024-01-01"), core.Money{Cents: 900})
	require.NoError(t, err)

	bal, err = repo.CurrentBalance(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal.Cents, "latest date wins regardless of insertion order")
}

func TestDeleteAccountCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	keep, err := repo.CreateAccount(ctx, core.Account{Name: "Keep"})
	require.NoError(t, err)
	drop, err := repo.CreateAccount(ctx, core.Account{Name: "Drop"})
	require.NoError(t, err)

	_, err = repo.UpsertBalancePoint(ctx, keep.ID, mustDate(t, "2024-01-01"), core.Money{Cents: 100})
	require.NoError(t, err)
	_, err = repo.UpsertBalancePoint(ctx, drop.ID, mustDate(t, "2024-01-02"), core.Money{Cents: 200})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteAccount(ctx, drop.ID))

	_, err = repo.GetAccount(ctx, drop.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	// The deleted account's observations no longer feed any series.
	all, err := repo.ListAllPoints(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keep.ID, all[0].AccountID)

	assert.ErrorIs(t, repo.DeleteAccount(ctx, drop.ID), core.ErrNotFound)
}

func TestMaxPointDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, ok, err := repo.MaxPointDate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	acc, err := repo.CreateAccount(ctx, core.Account{Name: "Checking"})
	require.NoError(t, err)
	_, err = repo.UpsertBalancePoint(ctx, acc.ID, mustDate(t, "2024-05-01"), core.Money{Cents: 1})
	require.NoError(t, err)
	_, err = repo.UpsertBalancePoint(ctx, acc.ID, mustDate(t, "2024-04-01"), core.Money{Cents: 2})
	require.NoError(t, err)

	day, ok, err := repo.MaxPointDate(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-05-01", day.ISO())
}

func TestDeleteBalancePoint(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	acc, err := repo.CreateAccount(ctx, core.Account{Name: "Checking"})
	require.NoError(t, err)
	_, err = repo.UpsertBalancePoint(ctx, acc.ID, mustDate(t, "2024-01-01"), core.Money{Cents: 100})
	require.NoError(t, err)

	points, err := repo.ListPointsByAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, points, 1)

	got, err := repo.GetBalancePoint(ctx, points[0].ID)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.AccountID)

	require.NoError(t, repo.DeleteBalancePoint(ctx, points[0].ID))
	assert.ErrorIs(t, repo.DeleteBalancePoint(ctx, points[0].ID), core.ErrNotFound)

	_, err = repo.GetBalancePoint(ctx, points[0].ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
