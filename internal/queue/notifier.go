package queue

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/maheshrc27/tattle-publisher/internal/models"
	"github.com/maheshrc27/tattle-publisher/internal/repository"
	"github.com/maheshrc27/tattle-publisher/internal/transfer"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const fallbackAccountName = "your account"

type emailData struct {
	AccountName  string
	PostID       int64
	Email        string
	Caption      string
	Reason       string
	Error        string
	InstagramURL string
	DashboardURL string
}

// EmailNotifier turns post lifecycle events into notify:email tasks. The mail
// itself is sent by the worker.
type EmailNotifier struct {
	client       Enqueuer
	accounts     repository.AccountRepository
	adminEmail   string
	dashboardURL string
}

func NewEmailNotifier(client Enqueuer, accounts repository.AccountRepository, adminEmail, dashboardURL string) *EmailNotifier {
	return &EmailNotifier{
		client:       client,
		accounts:     accounts,
		adminEmail:   adminEmail,
		dashboardURL: dashboardURL,
	}
}

func (n *EmailNotifier) NotifySubmitted(ctx context.Context, post *models.Post) error {
	data := n.baseData(ctx, post)

	if err := n.send(ctx, post.Email, "Submission Received - Thank You!", "submitted.html", data); err != nil {
		return err
	}
	return n.send(ctx, n.adminEmail, "New Submission for "+data.AccountName, "admin_submitted.html", data)
}

func (n *EmailNotifier) NotifyApproved(ctx context.Context, post *models.Post) error {
	return n.send(ctx, post.Email, "Your Submission Has Been Approved!", "approved.html", n.baseData(ctx, post))
}

func (n *EmailNotifier) NotifyDeclined(ctx context.Context, post *models.Post, reason string) error {
	data := n.baseData(ctx, post)
	data.Reason = reason
	return n.send(ctx, post.Email, "Update on Your Submission", "declined.html", data)
}

func (n *EmailNotifier) NotifyPublishSuccess(ctx context.Context, post *models.Post) error {
	return n.send(ctx, post.Email, "Your Post is Live!", "posted.html", n.baseData(ctx, post))
}

func (n *EmailNotifier) NotifyPublishFailure(ctx context.Context, post *models.Post, errorMessage string) error {
	data := n.baseData(ctx, post)
	data.Error = errorMessage
	return n.send(ctx, n.adminEmail, "Failed to Post: "+data.AccountName, "failed.html", data)
}

func (n *EmailNotifier) baseData(ctx context.Context, post *models.Post) emailData {
	data := emailData{
		AccountName:  fallbackAccountName,
		PostID:       post.ID,
		Email:        post.Email,
		Caption:      post.Caption,
		DashboardURL: n.dashboardURL,
	}
	if acc, err := n.accounts.GetByID(ctx, post.AccountID); err == nil && acc != nil && acc.InstagramUsername != "" {
		data.AccountName = "@" + acc.InstagramUsername
		data.InstagramURL = "https://www.instagram.com/" + acc.InstagramUsername + "/"
	}
	return data
}

func (n *EmailNotifier) send(ctx context.Context, to, subject, tmpl string, data emailData) error {
	if to == "" {
		return nil
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		return fmt.Errorf("error rendering %s: %w", tmpl, err)
	}

	return EnqueueEmail(ctx, n.client, transfer.EmailMessage{
		To:      []string{to},
		Subject: subject,
		HTML:    buf.String(),
	})
}
