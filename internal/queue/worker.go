package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/tattle-publisher/internal/service"
	"github.com/maheshrc27/tattle-publisher/internal/transfer"
)

// HandlePublishPostTask runs a manual publish. A post that is not publishable
// completes the task so its id can be queued again.
func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	outcome, err := q.ps.PublishPost(ctx, payload.PostID)
	if err != nil {
		if service.IsPrecondition(err) {
			slog.Warn("publish task skipped", "post_id", payload.PostID, "error", err)
			return nil
		}
		return err
	}

	slog.Info("publish task finished",
		"post_id", payload.PostID,
		"run_id", outcome.RunID,
		"success", outcome.Result.Success,
	)
	return nil
}

func (q *Queue) HandleSendEmailTask(ctx context.Context, task *asynq.Task) error {
	var msg transfer.EmailMessage
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("email without recipients: %w", asynq.SkipRetry)
	}

	return q.es.Send(ctx, msg)
}

// Register wires the task handlers into mux.
func (q *Queue) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypePublishPost, q.HandlePublishPostTask)
	mux.HandleFunc(TaskTypeSendEmail, q.HandleSendEmailTask)
}
