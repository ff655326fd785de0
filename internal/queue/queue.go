package queue

import (
	"github.com/maheshrc27/tattle-publisher/internal/service"
)

type Queue struct {
	ps service.PublishService
	es service.EmailService
}

func NewQueue(ps service.PublishService, es service.EmailService) *Queue {
	return &Queue{
		ps: ps,
		es: es,
	}
}

const (
	TaskTypePublishPost = "post:publish"
	TaskTypeSendEmail   = "notify:email"
)

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}
