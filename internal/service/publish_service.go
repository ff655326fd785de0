package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/maheshrc27/tattle-publisher/internal/models"
	"github.com/maheshrc27/tattle-publisher/internal/repository"
	"github.com/maheshrc27/tattle-publisher/pkg/utils"
)

const (
	interruptedMessage   = "publish interrupted before the outcome was recorded"
	undecryptableMessage = "stored credential could not be decrypted"

	// claimGrace keeps the reconciler away from runs that are about to hit
	// their own deadline.
	claimGrace = time.Minute
)

// PublishLedger remembers remote post ids between the remote publish and the
// local status write so an interrupted run can be reconciled.
type PublishLedger interface {
	RecordPublished(ctx context.Context, postID int64, externalPostID string, postedAt time.Time) error
	LookupPublished(ctx context.Context, postID int64) (string, bool, error)
}

type PublishOutcome struct {
	RunID  string
	PostID int64
	Result PublishResult
}

type PublishService interface {
	PublishNext(ctx context.Context) (*PublishOutcome, error)
	PublishPost(ctx context.Context, postID int64) (*PublishOutcome, error)
	ReconcileStaleClaims(ctx context.Context, olderThan time.Duration) (int, error)
}

type publishService struct {
	posts     PostService
	accounts  repository.AccountRepository
	attempts  repository.PublishAttemptRepository
	ledger    PublishLedger
	orch       *Orchestrator
	secretKey  []byte
	runTimeout time.Duration
}

func NewPublishService(
	posts PostService,
	accounts repository.AccountRepository,
	attempts repository.PublishAttemptRepository,
	ledger PublishLedger,
	orch *Orchestrator,
	secretKey string,
	runTimeout time.Duration) PublishService {
	return &publishService{
		posts:      posts,
		accounts:   accounts,
		attempts:   attempts,
		ledger:     ledger,
		orch:       orch,
		secretKey:  []byte(secretKey),
		runTimeout: runTimeout,
	}
}

// PublishNext publishes at most one post: the oldest approved one. A nil
// outcome means there was nothing to publish.
func (s *publishService) PublishNext(ctx context.Context) (*PublishOutcome, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	post, err := s.posts.SelectNextPublishable(ctx, runID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		slog.Info("no approved posts to publish")
		return nil, nil
	}
	return s.publishClaimed(ctx, runID, post)
}

func (s *publishService) PublishPost(ctx context.Context, postID int64) (*PublishOutcome, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	post, err := s.posts.Claim(ctx, postID, runID)
	if err != nil {
		return nil, err
	}
	return s.publishClaimed(ctx, runID, post)
}

// publishClaimed runs the publish for a post claimed under runID. The remote
// calls are bounded by runTimeout so the claim never outlives the run.
func (s *publishService) publishClaimed(ctx context.Context, runID string, post *models.Post) (*PublishOutcome, error) {
	log := slog.With("run_id", runID, "post_id", post.ID)
	log.Info("publishing post")

	var result PublishResult
	acc, err := s.loadAccount(ctx, post.AccountID)
	switch {
	case errors.Is(err, errUndecryptable):
		log.Error("account credential unusable", "error", err)
		result = PublishResult{Err: errors.New(undecryptableMessage)}
	case err != nil:
		s.release(ctx, post.ID, runID)
		return nil, err
	default:
		runCtx, cancel := s.runContext(ctx)
		result = s.orch.Publish(runCtx, post, acc)
		cancel()
	}
	outcome := &PublishOutcome{RunID: runID, PostID: post.ID, Result: result}

	if !result.Success && IsPrecondition(result.Err) {
		log.Warn("post not publishable", "error", result.Err)
		s.release(ctx, post.ID, runID)
		return outcome, nil
	}

	if result.Success {
		if err := s.ledger.RecordPublished(ctx, post.ID, result.ExternalPostID, time.Now()); err != nil {
			log.Error("failed to record publish in ledger", "error", err)
		}
	}

	if err := s.posts.RecordOutcome(ctx, post.ID, runID, result); err != nil {
		log.Error("failed to record publish outcome", "error", err)
		return outcome, err
	}

	attempt := &models.PublishAttempt{
		PostID:         post.ID,
		AccountID:      post.AccountID,
		ExternalPostID: result.ExternalPostID,
		ErrorMessage:   result.ErrorMessage(),
	}
	if _, err := s.attempts.Create(ctx, attempt); err != nil {
		log.Error("failed to save publish attempt", "error", err)
	}

	log.Info("publish run finished", "strategy", result.Strategy, "success", result.Success)
	return outcome, nil
}

func (s *publishService) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.runTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.runTimeout)
}

var errUndecryptable = errors.New("undecryptable credential")

// loadAccount returns a copy of the account with the access token decrypted.
// A missing account is left for the orchestrator to report.
func (s *publishService) loadAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("error loading account %d: %w", accountID, err)
	}
	if acc == nil {
		return nil, nil
	}

	decrypted := *acc
	if acc.AccessToken != "" {
		token, err := utils.Decrypt(acc.AccessToken, s.secretKey)
		if errors.Is(err, utils.ErrInvalidKeyLength) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("%w for account %d: %v", errUndecryptable, accountID, err)
		}
		decrypted.AccessToken = token
	}
	return &decrypted, nil
}

func (s *publishService) release(ctx context.Context, postID int64, token string) {
	if err := s.posts.ReleaseClaim(ctx, postID, token); err != nil {
		slog.Error("failed to release claim", "post_id", postID, "error", err)
	}
}

// ReconcileStaleClaims settles posts whose claim outlived olderThan. A post the
// ledger knows as published is recorded posted, anything else failed. Claims
// younger than a full run plus claimGrace are never touched, and each stale
// claim is taken over before it is settled so a run finishing concurrently
// cannot be overwritten.
func (s *publishService) ReconcileStaleClaims(ctx context.Context, olderThan time.Duration) (int, error) {
	if s.runTimeout > 0 && olderThan < s.runTimeout+claimGrace {
		olderThan = s.runTimeout + claimGrace
	}

	stale, err := s.posts.StaleClaims(ctx, olderThan)
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for _, post := range stale {
		token, err := gonanoid.New()
		if err != nil {
			return reconciled, err
		}
		taken, err := s.posts.TakeOverStaleClaim(ctx, post.ID, olderThan, token)
		if err != nil {
			slog.Error("failed to take over stale claim", "post_id", post.ID, "error", err)
			continue
		}
		if !taken {
			continue
		}

		result := PublishResult{Err: errors.New(interruptedMessage)}

		externalID, found, err := s.ledger.LookupPublished(ctx, post.ID)
		if err != nil {
			slog.Error("ledger lookup failed, retrying on a later pass", "post_id", post.ID, "error", err)
			continue
		}
		if found {
			result = PublishResult{Success: true, ExternalPostID: externalID}
		}

		if err := s.posts.RecordOutcome(ctx, post.ID, token, result); err != nil {
			if errors.Is(err, ErrInvalidState) {
				continue
			}
			slog.Error("failed to reconcile stale claim", "post_id", post.ID, "error", err)
			continue
		}
		slog.Info("stale claim reconciled", "post_id", post.ID, "posted", found)
		reconciled++
	}
	return reconciled, nil
}
