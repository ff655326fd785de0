package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/maheshrc27/tattle-publisher/internal/transfer"
)

// Enqueuer is the part of *asynq.Client the producers need.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func PublishTaskID(postID int64) string {
	return fmt.Sprintf("publish:%d", postID)
}

// EnqueuePublish queues a manual publish of one post. A second request for the
// same post while the first is still queued fails with asynq.ErrTaskIDConflict.
// The id is freed once the task completes.
func EnqueuePublish(ctx context.Context, client Enqueuer, postID int64) error {
	taskPayload, err := json.Marshal(PublishPostPayload{PostID: postID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)

	_, err = client.EnqueueContext(ctx, task, asynq.TaskID(PublishTaskID(postID)), asynq.MaxRetry(0))
	if err != nil {
		return err
	}

	slog.Info("publish task queued", "post_id", postID)
	return nil
}

func EmailTaskID() string {
	return "email:" + gonanoid.Must()
}

func EnqueueEmail(ctx context.Context, client Enqueuer, msg transfer.EmailMessage) error {
	taskPayload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeSendEmail, taskPayload)

	taskID := EmailTaskID()
	_, err = client.EnqueueContext(ctx, task, asynq.TaskID(taskID), asynq.MaxRetry(5))
	if err != nil {
		return err
	}

	slog.Info("email task queued", "task_id", taskID, "to", msg.To, "subject", msg.Subject)
	return nil
}
