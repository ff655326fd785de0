package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/maheshrc27/tattle-publisher/configs"
	"github.com/maheshrc27/tattle-publisher/internal/transfer"
)

type ContainerStatus string

const (
	ContainerProcessing ContainerStatus = "IN_PROGRESS"
	ContainerFinished   ContainerStatus = "FINISHED"
	ContainerError      ContainerStatus = "ERROR"
)

// InstagramService wraps the container/publish protocol of the Graph API.
// Calls are not retried.
type InstagramService interface {
	CreateMediaContainer(ctx context.Context, igUserID, accessToken string, item MediaItem, caption string, isCarouselChild bool) (string, error)
	CreateCarouselContainer(ctx context.Context, igUserID, accessToken string, childIDs []string, caption string) (string, error)
	GetContainerStatus(ctx context.Context, containerID, accessToken string) (ContainerStatus, error)
	PublishContainer(ctx context.Context, igUserID, accessToken, containerID string) (string, error)
	RefreshAccessToken(ctx context.Context, accessToken string) (*transfer.InstagramToken, error)
}

type instagramService struct {
	graphURL   string
	refreshURL string
	client     *http.Client
}

func NewInstagramService(cfg config.Config) InstagramService {
	timeout := cfg.Instagram.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewInstagramServiceWithClient(cfg, &http.Client{Timeout: timeout})
}

func NewInstagramServiceWithClient(cfg config.Config, client *http.Client) InstagramService {
	return &instagramService{
		graphURL:   strings.TrimRight(cfg.Instagram.GraphURL, "/"),
		refreshURL: strings.TrimRight(cfg.Instagram.RefreshURL, "/"),
		client:     client,
	}
}

func (s *instagramService) CreateMediaContainer(ctx context.Context, igUserID, accessToken string, item MediaItem, caption string, isCarouselChild bool) (string, error) {
	payload := transfer.InstagramContainerRequest{
		AccessToken:    accessToken,
		IsCarouselItem: isCarouselChild,
	}
	if item.Kind == MediaVideo {
		payload.VideoURL = item.URL
		payload.MediaType = "VIDEO"
	} else {
		payload.ImageURL = item.URL
	}
	if !isCarouselChild {
		payload.Caption = caption
	}

	op := "create media container"
	if isCarouselChild {
		op = "create carousel item"
	}
	return s.postForID(ctx, op, fmt.Sprintf("%s/%s/media", s.graphURL, igUserID), payload)
}

func (s *instagramService) CreateCarouselContainer(ctx context.Context, igUserID, accessToken string, childIDs []string, caption string) (string, error) {
	payload := transfer.InstagramContainerRequest{
		MediaType:   "CAROUSEL",
		Caption:     caption,
		Children:    childIDs,
		AccessToken: accessToken,
	}
	return s.postForID(ctx, "create carousel container", fmt.Sprintf("%s/%s/media", s.graphURL, igUserID), payload)
}

func (s *instagramService) PublishContainer(ctx context.Context, igUserID, accessToken, containerID string) (string, error) {
	payload := transfer.InstagramPublishRequest{
		CreationID:  containerID,
		AccessToken: accessToken,
	}
	return s.postForID(ctx, "publish media", fmt.Sprintf("%s/%s/media_publish", s.graphURL, igUserID), payload)
}

func (s *instagramService) GetContainerStatus(ctx context.Context, containerID, accessToken string) (ContainerStatus, error) {
	query := url.Values{}
	query.Set("fields", "status_code")
	query.Set("access_token", accessToken)
	reqURL := fmt.Sprintf("%s/%s?%s", s.graphURL, containerID, query.Encode())

	body, err := s.do(ctx, "check video status", http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	var result transfer.InstagramStatusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("error parsing status response: %w", err)
	}

	switch ContainerStatus(result.StatusCode) {
	case ContainerFinished, "PUBLISHED":
		return ContainerFinished, nil
	case ContainerError, "EXPIRED":
		return ContainerError, nil
	default:
		return ContainerProcessing, nil
	}
}

func (s *instagramService) RefreshAccessToken(ctx context.Context, accessToken string) (*transfer.InstagramToken, error) {
	query := url.Values{}
	query.Set("grant_type", "ig_refresh_token")
	query.Set("access_token", accessToken)
	reqURL := fmt.Sprintf("%s/refresh_access_token?%s", s.refreshURL, query.Encode())

	body, err := s.do(ctx, "refresh access token", http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	var result transfer.InstagramRefreshResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("error parsing refresh response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, &GatewayError{Op: "refresh access token", StatusCode: http.StatusOK, Message: "no access token returned from Instagram"}
	}

	return &transfer.InstagramToken{
		AccessToken: result.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}, nil
}

func (s *instagramService) postForID(ctx context.Context, op, reqURL string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	respBody, err := s.do(ctx, op, http.MethodPost, reqURL, body)
	if err != nil {
		return "", err
	}

	var result transfer.InstagramIDResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.ID == "" {
		return "", &GatewayError{Op: op, StatusCode: http.StatusOK, Message: "no media ID returned from Instagram"}
	}
	return result.ID, nil
}

func (s *instagramService) do(ctx context.Context, op, method, reqURL string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error(), "op", op)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newGatewayError(op, resp.StatusCode, respBody)
	}
	return respBody, nil
}

func newGatewayError(op string, statusCode int, body []byte) error {
	var remote transfer.InstagramErrorResponse
	message := ""
	if err := json.Unmarshal(body, &remote); err == nil {
		message = remote.Error.Message
	}
	if message == "" {
		message = fmt.Sprintf("failed to %s (status code: %d)", op, statusCode)
	}
	slog.Info("instagram call rejected", "op", op, "status", statusCode, "message", message)
	return &GatewayError{Op: op, StatusCode: statusCode, Message: message}
}
