package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountRowColumns = []string{"id", "instagram_id", "instagram_username", "access_token", "is_active",
	"token_expires_at", "created_at", "updated_at"}

func TestAccountRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccountRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(accountRowColumns).
			AddRow(int64(1), "1784", "tattle.news", "enc-token", true, now, now, now))

	acc, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, "1784", acc.InstagramID)
	assert.True(t, acc.IsActive)
}

func TestAccountRepository_SetToken_NoRows(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectExec(`UPDATE accounts`).
		WithArgs("enc", sqlmock.AnyArg(), sqlmock.AnyArg(), int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetToken(context.Background(), 99, "enc", time.Now())
	require.Error(t, err)
}

func TestAccountRepository_ListExpiring(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccountRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM accounts\s+WHERE is_active AND access_token <> '' AND token_expires_at < \$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(accountRowColumns).
			AddRow(int64(1), "1784", "a", "t1", true, now, now, now).
			AddRow(int64(2), "1785", "b", "t2", true, now, now, now))

	accounts, err := repo.ListExpiring(context.Background(), now.Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}
