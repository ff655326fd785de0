package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/tattle-publisher/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	List(ctx context.Context, status models.PostStatus) ([]*models.Post, error)
	CountByStatus(ctx context.Context) (map[models.PostStatus]int, error)
	ClaimOldestApproved(ctx context.Context, now time.Time, token string) (*models.Post, error)
	ClaimByID(ctx context.Context, id int64, now time.Time, token string) (*models.Post, error)
	ReclaimStale(ctx context.Context, id int64, before, now time.Time, token string) (bool, error)
	ReleaseClaim(ctx context.Context, id int64, token string) error
	ListStaleClaims(ctx context.Context, before time.Time) ([]*models.Post, error)
	SettleClaim(ctx context.Context, id int64, token string, next models.PostStatus, fields models.StatusFields) (bool, error)
	CompareAndSetStatus(ctx context.Context, id int64, expected, next models.PostStatus, fields models.StatusFields) (bool, error)
}

const postColumns = `id, account_id, email, caption, media, status, declined_message, external_post_id,
	posted_at, publish_error, claimed_at, claim_token, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		post            models.Post
		status          string
		declinedMessage sql.NullString
		externalPostID  sql.NullString
		postedAt        sql.NullTime
		publishError    sql.NullString
		claimedAt       sql.NullTime
		claimToken      sql.NullString
	)

	err := row.Scan(&post.ID, &post.AccountID, &post.Email, &post.Caption, pq.Array(&post.Media), &status,
		&declinedMessage, &externalPostID, &postedAt, &publishError, &claimedAt, &claimToken, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	post.Status = models.PostStatus(status)
	if declinedMessage.Valid {
		post.DeclinedMessage = &declinedMessage.String
	}
	if externalPostID.Valid {
		post.ExternalPostID = &externalPostID.String
	}
	if postedAt.Valid {
		post.PostedAt = &postedAt.Time
	}
	if publishError.Valid {
		post.PublishError = &publishError.String
	}
	if claimedAt.Valid {
		post.ClaimedAt = &claimedAt.Time
	}
	post.ClaimToken = claimToken.String
	return &post, nil
}

// scanOne maps sql.ErrNoRows to a nil post.
func scanOne(row *sql.Row) (*models.Post, error) {
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) scanAll(rows *sql.Rows) ([]*models.Post, error) {
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (account_id, email, caption, media, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, post.AccountID, post.Email, post.Caption, pq.Array(post.Media), string(post.Status)).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return scanOne(r.db.QueryRowContext(ctx, query, id))
}

// List returns posts oldest first. An empty status lists every post.
func (r *postRepository) List(ctx context.Context, status models.PostStatus) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return r.scanAll(rows)
}

func (r *postRepository) CountByStatus(ctx context.Context) (map[models.PostStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM posts GROUP BY status`)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.PostStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		counts[models.PostStatus(status)] = n
	}
	return counts, rows.Err()
}

// ClaimOldestApproved marks the oldest unclaimed approved post of an active,
// credentialed account as claimed and returns it. Concurrent callers skip rows
// locked by each other, so a post is handed out at most once. token identifies
// the owner of the claim for the later SettleClaim or ReleaseClaim.
func (r *postRepository) ClaimOldestApproved(ctx context.Context, now time.Time, token string) (*models.Post, error) {
	query := `
		UPDATE posts
		SET claimed_at = $1,
			claim_token = $2,
			updated_at = $1
		WHERE id = (
			SELECT p.id
			FROM posts p
			JOIN accounts a ON a.id = p.account_id
			WHERE p.status = 'approved'
				AND p.claimed_at IS NULL
				AND a.is_active
				AND a.instagram_id <> ''
				AND a.access_token <> ''
			ORDER BY p.created_at ASC, p.id ASC
			LIMIT 1
			FOR UPDATE OF p SKIP LOCKED
		)
		AND status = 'approved'
		AND claimed_at IS NULL
		RETURNING ` + postColumns
	return scanOne(r.db.QueryRowContext(ctx, query, now, token))
}

func (r *postRepository) ClaimByID(ctx context.Context, id int64, now time.Time, token string) (*models.Post, error) {
	query := `
		UPDATE posts
		SET claimed_at = $2,
			claim_token = $3,
			updated_at = $2
		WHERE id = $1 AND status = 'approved' AND claimed_at IS NULL
		RETURNING ` + postColumns
	return scanOne(r.db.QueryRowContext(ctx, query, id, now, token))
}

// ReclaimStale hands a claim taken before the given time over to token. It
// reports false when the post was settled, released or re-claimed meanwhile.
func (r *postRepository) ReclaimStale(ctx context.Context, id int64, before, now time.Time, token string) (bool, error) {
	query := `
		UPDATE posts
		SET claimed_at = $3,
			claim_token = $4,
			updated_at = $3
		WHERE id = $1 AND status = 'approved' AND claimed_at IS NOT NULL AND claimed_at < $2
	`
	return r.execOne(ctx, query, id, before, now, token)
}

// ReleaseClaim drops the claim only while token still owns it.
func (r *postRepository) ReleaseClaim(ctx context.Context, id int64, token string) error {
	query := `
		UPDATE posts
		SET claimed_at = NULL,
			claim_token = NULL,
			updated_at = $3
		WHERE id = $1 AND claim_token = $2
	`
	_, err := r.db.ExecContext(ctx, query, id, token, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) ListStaleClaims(ctx context.Context, before time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = 'approved' AND claimed_at IS NOT NULL AND claimed_at < $1
		ORDER BY claimed_at ASC`

	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return r.scanAll(rows)
}

// SettleClaim moves a claimed approved post to next. It reports false when the
// post is no longer approved or token no longer owns the claim.
func (r *postRepository) SettleClaim(ctx context.Context, id int64, token string, next models.PostStatus, fields models.StatusFields) (bool, error) {
	query := `
		UPDATE posts
		SET status = $3,
			declined_message = $4,
			external_post_id = $5,
			posted_at = $6,
			publish_error = $7,
			claimed_at = NULL,
			claim_token = NULL,
			updated_at = $8
		WHERE id = $1 AND status = 'approved' AND claim_token = $2
	`
	return r.execOne(ctx, query, id, token, string(next),
		nullString(fields.DeclinedMessage), nullString(fields.ExternalPostID), nullTime(fields.PostedAt),
		nullString(fields.PublishError), time.Now())
}

// CompareAndSetStatus moves an unclaimed post from expected to next in one
// statement and reports false when the post was not in the expected status.
func (r *postRepository) CompareAndSetStatus(ctx context.Context, id int64, expected, next models.PostStatus, fields models.StatusFields) (bool, error) {
	query := `
		UPDATE posts
		SET status = $3,
			declined_message = $4,
			external_post_id = $5,
			posted_at = $6,
			publish_error = $7,
			updated_at = $8
		WHERE id = $1 AND status = $2 AND claimed_at IS NULL
	`
	return r.execOne(ctx, query, id, string(expected), string(next),
		nullString(fields.DeclinedMessage), nullString(fields.ExternalPostID), nullTime(fields.PostedAt),
		nullString(fields.PublishError), time.Now())
}

// execOne runs a single-row update and reports whether the row matched.
func (r *postRepository) execOne(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
