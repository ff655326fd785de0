package job

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/tattle-publisher/internal/models"
	"github.com/maheshrc27/tattle-publisher/internal/service"
)

// RefreshWindow is how far ahead of expiry a long-lived token gets refreshed.
const RefreshWindow = 7 * 24 * time.Hour

type TokenRefreshJob struct {
	as     service.AccountService
	within time.Duration
}

func NewTokenRefreshJob(as service.AccountService, within time.Duration) *TokenRefreshJob {
	if within <= 0 {
		within = RefreshWindow
	}
	return &TokenRefreshJob{
		as:     as,
		within: within,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	c.Run(context.Background())
}

// Run refreshes every expiring credential and reports how many failed.
func (c *TokenRefreshJob) Run(ctx context.Context) (refreshed, failed int) {
	accounts, err := c.as.ListExpiring(ctx, c.within)
	if err != nil {
		slog.Info(err.Error())
		return 0, 0
	}

	var wg sync.WaitGroup
	var ok, bad atomic.Int32

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.Account) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.as.RefreshCredential(ctx, acc); err != nil {
				slog.Info("Unable to refresh tokens for Instagram", "account_id", acc.ID, "error", err)
				bad.Add(1)
				return
			}
			ok.Add(1)
		}(acc)
	}

	wg.Wait()
	return int(ok.Load()), int(bad.Load())
}
