package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/tattle-publisher/internal/service"
)

// PublishJob runs one publish cycle per tick. It is the in-process
// alternative to an external scheduler calling the trigger endpoint.
type PublishJob struct {
	ps service.PublishService
}

func NewPublishJob(ps service.PublishService) *PublishJob {
	return &PublishJob{ps: ps}
}

func (j *PublishJob) PublishNext() {
	outcome, err := j.ps.PublishNext(context.Background())
	if err != nil {
		slog.Error("scheduled publish failed", "error", err)
		return
	}
	if outcome == nil {
		return
	}
	slog.Info("scheduled publish finished", "post_id", outcome.PostID, "run_id", outcome.RunID, "success", outcome.Result.Success)
}

// ClaimReconcileJob settles posts whose publish run never recorded an outcome.
type ClaimReconcileJob struct {
	ps        service.PublishService
	olderThan time.Duration
}

func NewClaimReconcileJob(ps service.PublishService, olderThan time.Duration) *ClaimReconcileJob {
	return &ClaimReconcileJob{ps: ps, olderThan: olderThan}
}

func (j *ClaimReconcileJob) ReconcileClaims() {
	n, err := j.ps.ReconcileStaleClaims(context.Background(), j.olderThan)
	if err != nil {
		slog.Error("stale claim reconciliation failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("stale claims reconciled", "count", n)
	}
}
