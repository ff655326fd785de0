package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/tattle-publisher/internal/models"
	"github.com/maheshrc27/tattle-publisher/internal/repository"
	"github.com/maheshrc27/tattle-publisher/pkg/utils"
)

type AccountService interface {
	ListExpiring(ctx context.Context, within time.Duration) ([]*models.Account, error)
	RefreshCredential(ctx context.Context, acc *models.Account) error
}

type accountService struct {
	ar        repository.AccountRepository
	ig        InstagramService
	secretKey []byte
}

func NewAccountService(ar repository.AccountRepository, ig InstagramService, secretKey string) AccountService {
	return &accountService{
		ar:        ar,
		ig:        ig,
		secretKey: []byte(secretKey),
	}
}

func (s *accountService) ListExpiring(ctx context.Context, within time.Duration) ([]*models.Account, error) {
	return s.ar.ListExpiring(ctx, time.Now().Add(within))
}

// RefreshCredential exchanges the stored long-lived token for a fresh one.
func (s *accountService) RefreshCredential(ctx context.Context, acc *models.Account) error {
	current, err := utils.Decrypt(acc.AccessToken, s.secretKey)
	if err != nil {
		return err
	}

	token, err := s.ig.RefreshAccessToken(ctx, current)
	if err != nil {
		return fmt.Errorf("failed to refresh token for account %d: %w", acc.ID, err)
	}

	encrypted, err := utils.Encrypt([]byte(token.AccessToken), s.secretKey)
	if err != nil {
		return err
	}

	if err := s.ar.SetToken(ctx, acc.ID, encrypted, token.ExpiresAt); err != nil {
		return err
	}
	slog.Info("instagram token refreshed", "account_id", acc.ID, "expires_at", token.ExpiresAt)
	return nil
}
