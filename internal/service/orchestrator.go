package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/tattle-publisher/internal/models"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultPollAttempts = 30
)

type PublishResult struct {
	Success        bool
	ExternalPostID string
	Strategy       Strategy
	Err            error
}

func (r PublishResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Orchestrator drives one approved post through container creation, the
// optional video processing wait and the final publish.
type Orchestrator struct {
	ig           InstagramService
	pollInterval time.Duration
	pollAttempts int
}

func NewOrchestrator(ig InstagramService, pollInterval time.Duration, pollAttempts int) *Orchestrator {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if pollAttempts <= 0 {
		pollAttempts = DefaultPollAttempts
	}
	return &Orchestrator{
		ig:           ig,
		pollInterval: pollInterval,
		pollAttempts: pollAttempts,
	}
}

// Publish never returns an error directly: every failure, including a panic in
// a collaborator, is reported through the result. acc must carry the decrypted
// access token.
func (o *Orchestrator) Publish(ctx context.Context, post *models.Post, acc *models.Account) (result PublishResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("publish panic recovered", "panic", r)
			result = PublishResult{Strategy: result.Strategy, Err: fmt.Errorf("publish aborted: %v", r)}
		}
	}()

	if err := checkPublishable(post, acc); err != nil {
		return PublishResult{Err: err}
	}

	strategy, items, err := ClassifyMedia(post.Media)
	if err != nil {
		return PublishResult{Err: err}
	}
	result.Strategy = strategy

	var externalID string
	switch strategy {
	case StrategySingleImage:
		externalID, err = o.publishSingleImage(ctx, acc, items[0], post.Caption)
	case StrategySingleVideo:
		externalID, err = o.publishSingleVideo(ctx, acc, items[0], post.Caption)
	default:
		externalID, err = o.publishCarousel(ctx, acc, items, post.Caption)
	}
	if err != nil {
		slog.Error("publish failed", "post_id", post.ID, "strategy", strategy, "error", err)
		result.Err = err
		return result
	}

	result.Success = true
	result.ExternalPostID = externalID
	return result
}

func checkPublishable(post *models.Post, acc *models.Account) error {
	if post == nil {
		return fmt.Errorf("post: %w", ErrNotFound)
	}
	if post.Status != models.PostStatusApproved {
		return invalidState("only approved posts can be published (post %d is %s)", post.ID, post.Status)
	}
	if acc == nil {
		return fmt.Errorf("account for post %d: %w", post.ID, ErrNotFound)
	}
	if !acc.IsActive {
		return ErrInactiveAccount
	}
	if acc.InstagramID == "" || acc.AccessToken == "" {
		return ErrMissingCredentials
	}
	return nil
}

func (o *Orchestrator) publishSingleImage(ctx context.Context, acc *models.Account, item MediaItem, caption string) (string, error) {
	containerID, err := o.ig.CreateMediaContainer(ctx, acc.InstagramID, acc.AccessToken, item, caption, false)
	if err != nil {
		return "", err
	}
	return o.ig.PublishContainer(ctx, acc.InstagramID, acc.AccessToken, containerID)
}

func (o *Orchestrator) publishSingleVideo(ctx context.Context, acc *models.Account, item MediaItem, caption string) (string, error) {
	containerID, err := o.ig.CreateMediaContainer(ctx, acc.InstagramID, acc.AccessToken, item, caption, false)
	if err != nil {
		return "", err
	}

	if err := o.waitForVideo(ctx, containerID, acc.AccessToken); err != nil {
		return "", err
	}
	return o.ig.PublishContainer(ctx, acc.InstagramID, acc.AccessToken, containerID)
}

// publishCarousel creates the children in media order; the Graph API renders
// carousel positions by the order of the children array.
func (o *Orchestrator) publishCarousel(ctx context.Context, acc *models.Account, items []MediaItem, caption string) (string, error) {
	childIDs := make([]string, 0, len(items))
	for _, item := range items {
		id, err := o.ig.CreateMediaContainer(ctx, acc.InstagramID, acc.AccessToken, item, "", true)
		if err != nil {
			return "", err
		}
		childIDs = append(childIDs, id)
	}

	// TODO: video children are published without waiting for FINISHED; poll them
	// here if the Graph API starts rejecting carousels with unprocessed videos.
	carouselID, err := o.ig.CreateCarouselContainer(ctx, acc.InstagramID, acc.AccessToken, childIDs, caption)
	if err != nil {
		return "", err
	}
	return o.ig.PublishContainer(ctx, acc.InstagramID, acc.AccessToken, carouselID)
}

func (o *Orchestrator) waitForVideo(ctx context.Context, containerID, accessToken string) error {
	for attempt := 1; attempt <= o.pollAttempts; attempt++ {
		status, err := o.ig.GetContainerStatus(ctx, containerID, accessToken)
		if err != nil {
			return err
		}

		switch status {
		case ContainerFinished:
			return nil
		case ContainerError:
			return ErrProcessingFailed
		}

		if attempt == o.pollAttempts {
			break
		}

		timer := time.NewTimer(o.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return ErrProcessingTimeout
}
