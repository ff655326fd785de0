package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/maheshrc27/tattle-publisher/internal/models"
	"github.com/maheshrc27/tattle-publisher/internal/transfer"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type memPostRepo struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*models.Post
	casOK  int
}

func newMemPostRepo(posts ...*models.Post) *memPostRepo {
	r := &memPostRepo{posts: map[int64]*models.Post{}}
	for _, p := range posts {
		if p.ID > r.nextID {
			r.nextID = p.ID
		}
		r.posts[p.ID] = p
	}
	return r
}

func clonePost(p *models.Post) *models.Post {
	cp := *p
	cp.Media = append([]string(nil), p.Media...)
	return &cp
}

func (r *memPostRepo) Create(_ context.Context, post *models.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := clonePost(post)
	cp.ID = r.nextID
	cp.CreatedAt = time.Now()
	r.posts[cp.ID] = cp
	return cp.ID, nil
}

func (r *memPostRepo) GetByID(_ context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	return clonePost(p), nil
}

func (r *memPostRepo) List(_ context.Context, status models.PostStatus) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if status == "" || p.Status == status {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memPostRepo) CountByStatus(_ context.Context) (map[models.PostStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[models.PostStatus]int{}
	for _, p := range r.posts {
		counts[p.Status]++
	}
	return counts, nil
}

func (r *memPostRepo) ClaimOldestApproved(_ context.Context, now time.Time, token string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *models.Post
	for _, p := range r.posts {
		if p.Status != models.PostStatusApproved || p.ClaimedAt != nil {
			continue
		}
		if oldest == nil || p.CreatedAt.Before(oldest.CreatedAt) ||
			(p.CreatedAt.Equal(oldest.CreatedAt) && p.ID < oldest.ID) {
			oldest = p
		}
	}
	if oldest == nil {
		return nil, nil
	}
	claimed := now
	oldest.ClaimedAt = &claimed
	oldest.ClaimToken = token
	return clonePost(oldest), nil
}

func (r *memPostRepo) ClaimByID(_ context.Context, id int64, now time.Time, token string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusApproved || p.ClaimedAt != nil {
		return nil, nil
	}
	claimed := now
	p.ClaimedAt = &claimed
	p.ClaimToken = token
	return clonePost(p), nil
}

func (r *memPostRepo) ReclaimStale(_ context.Context, id int64, before, now time.Time, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusApproved || p.ClaimedAt == nil || !p.ClaimedAt.Before(before) {
		return false, nil
	}
	claimed := now
	p.ClaimedAt = &claimed
	p.ClaimToken = token
	return true, nil
}

func (r *memPostRepo) ReleaseClaim(_ context.Context, id int64, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[id]; ok && p.ClaimToken == token {
		p.ClaimedAt = nil
		p.ClaimToken = ""
	}
	return nil
}

func (r *memPostRepo) ListStaleClaims(_ context.Context, before time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusApproved && p.ClaimedAt != nil && p.ClaimedAt.Before(before) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memPostRepo) SettleClaim(_ context.Context, id int64, token string, next models.PostStatus, fields models.StatusFields) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusApproved || p.ClaimToken == "" || p.ClaimToken != token {
		return false, nil
	}
	r.apply(p, next, fields)
	return true, nil
}

func (r *memPostRepo) CompareAndSetStatus(_ context.Context, id int64, expected, next models.PostStatus, fields models.StatusFields) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.Status != expected || p.ClaimedAt != nil {
		return false, nil
	}
	r.apply(p, next, fields)
	return true, nil
}

func (r *memPostRepo) apply(p *models.Post, next models.PostStatus, fields models.StatusFields) {
	p.Status = next
	p.DeclinedMessage = fields.DeclinedMessage
	p.ExternalPostID = fields.ExternalPostID
	p.PostedAt = fields.PostedAt
	p.PublishError = fields.PublishError
	p.ClaimedAt = nil
	p.ClaimToken = ""
	r.casOK++
}

func (r *memPostRepo) get(id int64) *models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clonePost(r.posts[id])
}

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]*models.Account
}

func newMemAccountRepo(accounts ...*models.Account) *memAccountRepo {
	r := &memAccountRepo{accounts: map[int64]*models.Account{}}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *memAccountRepo) Create(_ context.Context, acc *models.Account) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc.ID = int64(len(r.accounts) + 1)
	r.accounts[acc.ID] = acc
	return acc.ID, nil
}

func (r *memAccountRepo) GetByID(_ context.Context, id int64) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memAccountRepo) ListExpiring(_ context.Context, before time.Time) ([]*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Account
	for _, a := range r.accounts {
		if a.IsActive && a.TokenExpiresAt.Before(before) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAccountRepo) SetToken(_ context.Context, id int64, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return errors.New("no rows affected")
	}
	a.AccessToken = token
	a.TokenExpiresAt = expiresAt
	return nil
}

type memAttemptRepo struct {
	mu       sync.Mutex
	attempts []*models.PublishAttempt
}

func (r *memAttemptRepo) Create(_ context.Context, attempt *models.PublishAttempt) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	return int64(len(r.attempts)), nil
}

func (r *memAttemptRepo) ListByPostID(_ context.Context, postID int64) ([]*models.PublishAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PublishAttempt
	for _, a := range r.attempts {
		if a.PostID == postID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memLedger struct {
	mu      sync.Mutex
	entries map[int64]string
}

func newMemLedger() *memLedger {
	return &memLedger{entries: map[int64]string{}}
}

func (l *memLedger) RecordPublished(_ context.Context, postID int64, externalPostID string, _ time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[postID] = externalPostID
	return nil
}

func (l *memLedger) LookupPublished(_ context.Context, postID int64) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.entries[postID]
	return id, ok, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(event string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) NotifySubmitted(_ context.Context, post *models.Post) error {
	return n.add(fmt.Sprintf("submitted:%d", post.ID))
}

func (n *recordingNotifier) NotifyApproved(_ context.Context, post *models.Post) error {
	return n.add(fmt.Sprintf("approved:%d", post.ID))
}

func (n *recordingNotifier) NotifyDeclined(_ context.Context, post *models.Post, reason string) error {
	return n.add(fmt.Sprintf("declined:%d:%s", post.ID, reason))
}

func (n *recordingNotifier) NotifyPublishSuccess(_ context.Context, post *models.Post) error {
	return n.add(fmt.Sprintf("posted:%d", post.ID))
}

func (n *recordingNotifier) NotifyPublishFailure(_ context.Context, post *models.Post, msg string) error {
	return n.add(fmt.Sprintf("failed:%d:%s", post.ID, msg))
}

func (n *recordingNotifier) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

// fakeInstagram scripts Graph API responses and records every call in order.
type fakeInstagram struct {
	mu       sync.Mutex
	calls    []string
	nextID   int
	statuses []ContainerStatus
	failOn   map[string]error
	panicOn  string
	token    *transfer.InstagramToken
	onStatus func()
}

func (f *fakeInstagram) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.panicOn != "" && call == f.panicOn {
		panic("boom")
	}
	return f.failOn[call]
}

func (f *fakeInstagram) id(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeInstagram) CreateMediaContainer(_ context.Context, _, _ string, item MediaItem, caption string, child bool) (string, error) {
	call := "container:" + item.URL
	if child {
		call = "child:" + item.URL
	}
	if err := f.record(call); err != nil {
		return "", err
	}
	return f.id("c"), nil
}

func (f *fakeInstagram) CreateCarouselContainer(_ context.Context, _, _ string, childIDs []string, _ string) (string, error) {
	if err := f.record("carousel:" + strings.Join(childIDs, ",")); err != nil {
		return "", err
	}
	return f.id("carousel"), nil
}

func (f *fakeInstagram) GetContainerStatus(_ context.Context, _, _ string) (ContainerStatus, error) {
	if err := f.record("status"); err != nil {
		return "", err
	}
	if f.onStatus != nil {
		f.onStatus()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return ContainerProcessing, nil
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeInstagram) PublishContainer(_ context.Context, _, _, containerID string) (string, error) {
	if err := f.record("publish:" + containerID); err != nil {
		return "", err
	}
	return "ig-" + containerID, nil
}

func (f *fakeInstagram) RefreshAccessToken(_ context.Context, token string) (*transfer.InstagramToken, error) {
	if err := f.record("refresh:" + token); err != nil {
		return nil, err
	}
	return f.token, nil
}

func (f *fakeInstagram) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeInstagram) count(prefix string) int {
	n := 0
	for _, c := range f.callList() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
