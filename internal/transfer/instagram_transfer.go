package transfer

import "time"

type InstagramToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// InstagramContainerRequest is the body of POST /{ig-user-id}/media.
type InstagramContainerRequest struct {
	ImageURL       string   `json:"image_url,omitempty"`
	VideoURL       string   `json:"video_url,omitempty"`
	MediaType      string   `json:"media_type,omitempty"`
	Caption        string   `json:"caption,omitempty"`
	IsCarouselItem bool     `json:"is_carousel_item,omitempty"`
	Children       []string `json:"children,omitempty"`
	AccessToken    string   `json:"access_token"`
}

type InstagramPublishRequest struct {
	CreationID  string `json:"creation_id"`
	AccessToken string `json:"access_token"`
}

type InstagramIDResponse struct {
	ID string `json:"id"`
}

type InstagramStatusResponse struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
}

type InstagramRefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type InstagramErrorResponse struct {
	Error struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}
