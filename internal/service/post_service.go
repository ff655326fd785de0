package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maheshrc27/tattle-publisher/internal/models"
	"github.com/maheshrc27/tattle-publisher/internal/repository"
)

// Notifier delivers side-effect notifications. Callers log and drop its errors.
type Notifier interface {
	NotifySubmitted(ctx context.Context, post *models.Post) error
	NotifyApproved(ctx context.Context, post *models.Post) error
	NotifyDeclined(ctx context.Context, post *models.Post, reason string) error
	NotifyPublishSuccess(ctx context.Context, post *models.Post) error
	NotifyPublishFailure(ctx context.Context, post *models.Post, errorMessage string) error
}

type nopNotifier struct{}

func (nopNotifier) NotifySubmitted(context.Context, *models.Post) error              { return nil }
func (nopNotifier) NotifyApproved(context.Context, *models.Post) error               { return nil }
func (nopNotifier) NotifyDeclined(context.Context, *models.Post, string) error       { return nil }
func (nopNotifier) NotifyPublishSuccess(context.Context, *models.Post) error         { return nil }
func (nopNotifier) NotifyPublishFailure(context.Context, *models.Post, string) error { return nil }

type PostService interface {
	Submit(ctx context.Context, accountID int64, email, caption string, media []string) (int64, error)
	Get(ctx context.Context, id int64) (*models.Post, error)
	List(ctx context.Context, status models.PostStatus) ([]*models.Post, error)
	Stats(ctx context.Context) (*models.PostStats, error)
	Approve(ctx context.Context, id int64) (*models.Post, error)
	Decline(ctx context.Context, id int64, reason string) (*models.Post, error)
	SelectNextPublishable(ctx context.Context, token string) (*models.Post, error)
	Claim(ctx context.Context, id int64, token string) (*models.Post, error)
	ReleaseClaim(ctx context.Context, id int64, token string) error
	StaleClaims(ctx context.Context, olderThan time.Duration) ([]*models.Post, error)
	TakeOverStaleClaim(ctx context.Context, id int64, olderThan time.Duration, token string) (bool, error)
	RecordOutcome(ctx context.Context, id int64, token string, result PublishResult) error
}

type postService struct {
	pr       repository.PostRepository
	ar       repository.AccountRepository
	notifier Notifier
	now      func() time.Time
}

func NewPostService(pr repository.PostRepository, ar repository.AccountRepository, notifier Notifier) PostService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &postService{
		pr:       pr,
		ar:       ar,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *postService) Submit(ctx context.Context, accountID int64, email, caption string, media []string) (int64, error) {
	if len(media) == 0 {
		return 0, ErrEmptyMedia
	}
	if len(media) > models.MaxMediaPerPost {
		return 0, ErrTooManyMedia
	}
	for i, uri := range media {
		if strings.TrimSpace(uri) == "" {
			return 0, fmt.Errorf("%w: media item %d is empty", ErrValidation, i)
		}
	}
	if strings.TrimSpace(email) == "" {
		return 0, fmt.Errorf("%w: email is required", ErrValidation)
	}

	acc, err := s.ar.GetByID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if acc == nil {
		return 0, fmt.Errorf("account %d: %w", accountID, ErrNotFound)
	}

	post := &models.Post{
		AccountID: accountID,
		Email:     strings.TrimSpace(email),
		Caption:   caption,
		Media:     media,
		Status:    models.PostStatusPending,
	}
	id, err := s.pr.Create(ctx, post)
	if err != nil {
		return 0, fmt.Errorf("error creating post: %w", err)
	}

	post.ID = id
	if err := s.notifier.NotifySubmitted(ctx, post); err != nil {
		slog.Error("failed to send submission notification", "post_id", id, "error", err)
	}
	return id, nil
}

func (s *postService) Get(ctx context.Context, id int64) (*models.Post, error) {
	post, err := s.pr.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, status models.PostStatus) ([]*models.Post, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.pr.List(ctx, status)
}

func (s *postService) Stats(ctx context.Context) (*models.PostStats, error) {
	counts, err := s.pr.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.PostStats{
		Pending:  counts[models.PostStatusPending],
		Approved: counts[models.PostStatusApproved],
		Declined: counts[models.PostStatusDeclined],
		Posted:   counts[models.PostStatusPosted],
		Failed:   counts[models.PostStatusFailed],
	}
	stats.Total = stats.Pending + stats.Approved + stats.Declined + stats.Posted + stats.Failed
	return stats, nil
}

func (s *postService) Approve(ctx context.Context, id int64) (*models.Post, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusPending {
		return nil, invalidState("only pending posts can be approved (post %d is %s)", id, post.Status)
	}

	if err := s.transition(ctx, id, models.PostStatusPending, models.PostStatusApproved, models.StatusFields{}); err != nil {
		return nil, err
	}

	post, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.NotifyApproved(ctx, post); err != nil {
		slog.Error("failed to send approval notification", "post_id", id, "error", err)
	}
	return post, nil
}

func (s *postService) Decline(ctx context.Context, id int64, reason string) (*models.Post, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusPending {
		return nil, invalidState("only pending posts can be declined (post %d is %s)", id, post.Status)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrDeclineReasonRequired
	}

	err = s.transition(ctx, id, models.PostStatusPending, models.PostStatusDeclined, models.StatusFields{DeclinedMessage: &reason})
	if err != nil {
		return nil, err
	}

	post, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.NotifyDeclined(ctx, post, reason); err != nil {
		slog.Error("failed to send decline notification", "post_id", id, "error", err)
	}
	return post, nil
}

// SelectNextPublishable claims the oldest approved post for token. It returns
// nil when there is nothing to publish.
func (s *postService) SelectNextPublishable(ctx context.Context, token string) (*models.Post, error) {
	post, err := s.pr.ClaimOldestApproved(ctx, s.now(), token)
	if err != nil {
		return nil, fmt.Errorf("error claiming next post: %w", err)
	}
	return post, nil
}

func (s *postService) Claim(ctx context.Context, id int64, token string) (*models.Post, error) {
	post, err := s.pr.ClaimByID(ctx, id, s.now(), token)
	if err != nil {
		return nil, fmt.Errorf("error claiming post %d: %w", id, err)
	}
	if post != nil {
		return post, nil
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.PostStatusApproved {
		return nil, invalidState("post %d is already being published", id)
	}
	return nil, invalidState("only approved posts can be published (post %d is %s)", id, current.Status)
}

func (s *postService) ReleaseClaim(ctx context.Context, id int64, token string) error {
	return s.pr.ReleaseClaim(ctx, id, token)
}

func (s *postService) StaleClaims(ctx context.Context, olderThan time.Duration) ([]*models.Post, error) {
	return s.pr.ListStaleClaims(ctx, s.now().Add(-olderThan))
}

// TakeOverStaleClaim moves a claim older than olderThan to token. It reports
// false when the claim was settled or refreshed in the meantime.
func (s *postService) TakeOverStaleClaim(ctx context.Context, id int64, olderThan time.Duration, token string) (bool, error) {
	now := s.now()
	ok, err := s.pr.ReclaimStale(ctx, id, now.Add(-olderThan), now, token)
	if err != nil {
		return false, fmt.Errorf("error taking over claim on post %d: %w", id, err)
	}
	return ok, nil
}

// RecordOutcome is the only place where a publish attempt makes a post terminal.
// It accepts approved posts whose claim is still held by token.
func (s *postService) RecordOutcome(ctx context.Context, id int64, token string, result PublishResult) error {
	var next models.PostStatus
	var fields models.StatusFields

	if result.Success {
		if result.ExternalPostID == "" {
			return errors.New("successful publish result without an external post id")
		}
		postedAt := s.now()
		externalID := result.ExternalPostID
		next = models.PostStatusPosted
		fields = models.StatusFields{ExternalPostID: &externalID, PostedAt: &postedAt}
	} else {
		message := result.ErrorMessage()
		if message == "" {
			message = "Unknown error"
		}
		next = models.PostStatusFailed
		fields = models.StatusFields{PublishError: &message}
	}

	if err := s.settle(ctx, id, token, next, fields); err != nil {
		return err
	}

	post, err := s.Get(ctx, id)
	if err != nil {
		slog.Error("failed to load post for notification", "post_id", id, "error", err)
		return nil
	}

	if result.Success {
		slog.Info("post published", "post_id", id, "instagram_post_id", result.ExternalPostID)
		if err := s.notifier.NotifyPublishSuccess(ctx, post); err != nil {
			slog.Error("failed to send success notification", "post_id", id, "error", err)
		}
	} else {
		slog.Error("post failed to publish", "post_id", id, "error", result.ErrorMessage())
		if err := s.notifier.NotifyPublishFailure(ctx, post, *fields.PublishError); err != nil {
			slog.Error("failed to send failure notification", "post_id", id, "error", err)
		}
	}
	return nil
}

func (s *postService) settle(ctx context.Context, id int64, token string, to models.PostStatus, fields models.StatusFields) error {
	ok, err := s.pr.SettleClaim(ctx, id, token, to, fields)
	if err != nil {
		return fmt.Errorf("error updating post %d status: %w", id, err)
	}
	if ok {
		return nil
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == models.PostStatusApproved {
		return invalidState("cannot move post %d to %s: claim is no longer held by this run", id, to)
	}
	return invalidState("cannot move post %d from approved to %s (current status %s)", id, to, current.Status)
}

func (s *postService) transition(ctx context.Context, id int64, from, to models.PostStatus, fields models.StatusFields) error {
	ok, err := s.pr.CompareAndSetStatus(ctx, id, from, to, fields)
	if err != nil {
		return fmt.Errorf("error updating post %d status: %w", id, err)
	}
	if ok {
		return nil
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return invalidState("cannot move post %d from %s to %s (current status %s)", id, from, to, current.Status)
}
