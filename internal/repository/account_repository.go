package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/tattle-publisher/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, acc *models.Account) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*models.Account, error)
	SetToken(ctx context.Context, id int64, accessToken string, expiresAt time.Time) error
}

const accountColumns = `id, instagram_id, instagram_username, access_token, is_active, token_expires_at, created_at, updated_at`

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var acc models.Account
	var expiresAt sql.NullTime
	err := row.Scan(&acc.ID, &acc.InstagramID, &acc.InstagramUsername, &acc.AccessToken,
		&acc.IsActive, &expiresAt, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		acc.TokenExpiresAt = expiresAt.Time
	}
	return &acc, nil
}

func (r *accountRepository) Create(ctx context.Context, acc *models.Account) (int64, error) {
	query := `
		INSERT INTO accounts (instagram_id, instagram_username, access_token, is_active, token_expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		acc.InstagramID,
		acc.InstagramUsername,
		acc.AccessToken,
		acc.IsActive,
		acc.TokenExpiresAt,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return acc, nil
}

// ListExpiring returns active accounts whose credential expires before the given time.
func (r *accountRepository) ListExpiring(ctx context.Context, before time.Time) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE is_active AND access_token <> '' AND token_expires_at < $1`

	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) SetToken(ctx context.Context, id int64, accessToken string, expiresAt time.Time) error {
	query := `
		UPDATE accounts
		SET access_token = $1,
			token_expires_at = $2,
			updated_at = $3
		WHERE id = $4
	`
	result, err := r.db.ExecContext(ctx, query, accessToken, expiresAt, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return errors.New("no rows affected")
	}
	return nil
}
