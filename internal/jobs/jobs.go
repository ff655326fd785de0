package job

import (
	"fmt"

	"github.com/robfig/cron"
)

const (
	tokenRefreshSpec   = "@every 6h"
	claimReconcileSpec = "@every 5m"
)

// Schedule adds the background jobs to c. publishSpec is optional; when empty
// publishing is left to the trigger endpoint.
func Schedule(c *cron.Cron, refresh *TokenRefreshJob, reconcile *ClaimReconcileJob, publish *PublishJob, publishSpec string) error {
	if err := c.AddFunc(tokenRefreshSpec, refresh.RefreshTokens); err != nil {
		return fmt.Errorf("token refresh job: %w", err)
	}
	if err := c.AddFunc(claimReconcileSpec, reconcile.ReconcileClaims); err != nil {
		return fmt.Errorf("claim reconcile job: %w", err)
	}
	if publishSpec == "" {
		return nil
	}
	if err := c.AddFunc(publishSpec, publish.PublishNext); err != nil {
		return fmt.Errorf("publish job %q: %w", publishSpec, err)
	}
	return nil
}
