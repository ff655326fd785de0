package models

import "time"

type PostStatus string

const (
	PostStatusPending  PostStatus = "pending"
	PostStatusApproved PostStatus = "approved"
	PostStatusDeclined PostStatus = "declined"
	PostStatusPosted   PostStatus = "posted"
	PostStatusFailed   PostStatus = "failed"
)

const MaxMediaPerPost = 10

func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusPending, PostStatusApproved, PostStatusDeclined, PostStatusPosted, PostStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s PostStatus) Terminal() bool {
	return s == PostStatusDeclined || s == PostStatusPosted || s == PostStatusFailed
}

type Post struct {
	ID              int64      `db:"id" json:"id"`
	AccountID       int64      `db:"account_id" json:"account_id"`
	Email           string     `db:"email" json:"email"`
	Caption         string     `db:"caption" json:"caption"`
	Media           []string   `db:"media" json:"media"`
	Status          PostStatus `db:"status" json:"status"`
	DeclinedMessage *string    `db:"declined_message" json:"declined_message,omitempty"`
	ExternalPostID  *string    `db:"external_post_id" json:"instagram_post_id,omitempty"`
	PostedAt        *time.Time `db:"posted_at" json:"posted_at,omitempty"`
	PublishError    *string    `db:"publish_error" json:"publish_error,omitempty"`
	ClaimedAt       *time.Time `db:"claimed_at" json:"-"`
	ClaimToken      string     `db:"claim_token" json:"-"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// StatusFields are the columns written together with a status change.
type StatusFields struct {
	DeclinedMessage *string
	ExternalPostID  *string
	PostedAt        *time.Time
	PublishError    *string
}

type PostStats struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Declined int `json:"declined"`
	Posted   int `json:"posted"`
	Failed   int `json:"failed"`
	Total    int `json:"total"`
}
