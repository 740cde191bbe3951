package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/media"
	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/repository"
)

// =========================================================================
// IN-MEMORY STORE
// =========================================================================
//
// memStore implements every repository interface with maps behind one
// mutex. Uniqueness (username, email, like pair, follow pair) is enforced
// the same way the SQLite store does it: the write itself fails with
// Conflict, so racing callers see exactly one winner.

type memStore struct {
	mu sync.Mutex

	seq           int
	users         map[string]model.User
	follows       []model.Follow
	posts         map[string]model.Post
	stories       map[string]model.Story
	views         []model.StoryView
	likes         map[[2]string]model.Like
	comments      []model.Comment
	notifications []model.Notification

	// set to a non-nil error to simulate a database failure
	createStoryErr        error
	createPostErr         error
	createNotificationErr error
	updateAvatarErr       error
	deactivateErr         error
}

var (
	_ repository.UserRepository         = (*memStore)(nil)
	_ repository.FollowRepository       = (*memStore)(nil)
	_ repository.PostRepository         = (*memStore)(nil)
	_ repository.StoryRepository        = (*memStore)(nil)
	_ repository.StoryViewRepository    = (*memStore)(nil)
	_ repository.LikeRepository         = (*memStore)(nil)
	_ repository.CommentRepository      = (*memStore)(nil)
	_ repository.NotificationRepository = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[string]model.User),
		posts:   make(map[string]model.Post),
		stories: make(map[string]model.Story),
		likes:   make(map[[2]string]model.Like),
	}
}

// nextID must be called with mu held. The zero-padded counter makes ids
// sort in creation order.
func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%04d", prefix, m.seq)
}

// tick returns a strictly increasing timestamp so "newest first" orderings
// are deterministic. Must be called with mu held.
func (m *memStore) tick() time.Time {
	m.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Second)
}

func paginate[T any](items []T, opts repository.ListOptions) []T {
	if opts.Offset >= len(items) {
		return []T{}
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// ----- users -----

func (m *memStore) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Username, user.Username) {
			return apperror.Conflict("user", "username is already taken")
		}
		if user.Email != "" && strings.EqualFold(u.Email, user.Email) {
			return apperror.Conflict("user", "email is already registered")
		}
		if user.GitHubID != 0 && u.GitHubID == user.GitHubID {
			return apperror.Conflict("user", "account already exists")
		}
	}

	user.ID = m.nextID("user")
	user.CreatedAt = m.tick()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = *user
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (m *memStore) GetUserByLogin(_ context.Context, login string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Username, login) || (u.Email != "" && strings.EqualFold(u.Email, login)) {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", login)
}

func (m *memStore) GetUserByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.GitHubID == githubID {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", fmt.Sprintf("github:%d", githubID))
}

func (m *memStore) SearchUsers(_ context.Context, prefix string, limit int) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.User{}
	for _, u := range m.users {
		if strings.HasPrefix(strings.ToLower(u.Username), strings.ToLower(prefix)) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return paginate(out, repository.ListOptions{Limit: limit}), nil
}

func (m *memStore) UpdateAvatar(_ context.Context, userID string, avatar *model.Media) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateAvatarErr != nil {
		return m.updateAvatarErr
	}
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.Avatar = avatar
	m.users[userID] = u
	return nil
}

func (m *memStore) UpdateBio(_ context.Context, userID, bio string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.Bio = bio
	m.users[userID] = u
	return nil
}

// ----- follows -----

func (m *memStore) CreateFollow(_ context.Context, f *model.Follow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.follows {
		if e.FollowerID == f.FollowerID && e.FollowedID == f.FollowedID {
			return apperror.Conflict("follow", "already following this user")
		}
	}
	f.CreatedAt = m.tick()
	m.follows = append(m.follows, *f)
	return nil
}

func (m *memStore) DeleteFollow(_ context.Context, followerID, followedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.follows[:0]
	for _, e := range m.follows {
		if e.FollowerID == followerID && e.FollowedID == followedID {
			continue
		}
		kept = append(kept, e)
	}
	m.follows = kept
	return nil
}

func (m *memStore) FollowedIDs(_ context.Context, followerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := []string{}
	for i := len(m.follows) - 1; i >= 0; i-- {
		if m.follows[i].FollowerID == followerID {
			ids = append(ids, m.follows[i].FollowedID)
		}
	}
	return ids, nil
}

func (m *memStore) FollowerIDs(_ context.Context, followedID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := []string{}
	for i := len(m.follows) - 1; i >= 0; i-- {
		if m.follows[i].FollowedID == followedID {
			ids = append(ids, m.follows[i].FollowerID)
		}
	}
	return ids, nil
}

func (m *memStore) CountFollows(_ context.Context, userID string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var followers, following int
	for _, e := range m.follows {
		if e.FollowedID == userID {
			followers++
		}
		if e.FollowerID == userID {
			following++
		}
	}
	return followers, following, nil
}

// ----- posts -----

func (m *memStore) CreatePost(_ context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createPostErr != nil {
		return m.createPostErr
	}
	p.ID = m.nextID("post")
	p.CreatedAt = m.tick()
	if p.Hashtags == nil {
		p.Hashtags = []string{}
	}
	m.posts[p.ID] = *p
	return nil
}

func (m *memStore) GetPost(_ context.Context, id string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	return &p, nil
}

func (m *memStore) sortedPosts(keep func(model.Post) bool) []model.Post {
	out := []model.Post{}
	for _, p := range m.posts {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListPostsByOwners(_ context.Context, ownerIDs []string, opts repository.ListOptions) ([]model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owners := make(map[string]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = true
	}
	return paginate(m.sortedPosts(func(p model.Post) bool { return owners[p.OwnerID] }), opts), nil
}

func (m *memStore) ListPostsByHashtag(_ context.Context, tag string, opts repository.ListOptions) ([]model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return paginate(m.sortedPosts(func(p model.Post) bool {
		for _, t := range p.Hashtags {
			if t == tag {
				return true
			}
		}
		return false
	}), opts), nil
}

func (m *memStore) CountPosts(_ context.Context, ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, p := range m.posts {
		if p.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	delete(m.posts, id)
	for k := range m.likes {
		if k[0] == id {
			delete(m.likes, k)
		}
	}
	kept := m.comments[:0]
	for _, c := range m.comments {
		if c.PostID != id {
			kept = append(kept, c)
		}
	}
	m.comments = kept
	return nil
}

// ----- stories -----

func (m *memStore) CreateStory(_ context.Context, s *model.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createStoryErr != nil {
		return m.createStoryErr
	}
	s.ID = m.nextID("story")
	m.stories[s.ID] = *s
	return nil
}

func (m *memStore) GetStory(_ context.Context, id string) (*model.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stories[id]
	if !ok {
		return nil, apperror.NotFound("story", id)
	}
	return &s, nil
}

func (m *memStore) sortedStories(keep func(model.Story) bool) []model.Story {
	out := []model.Story{}
	for _, s := range m.stories {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *memStore) ListVisibleStories(_ context.Context, ownerIDs []string, now time.Time) ([]model.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owners := make(map[string]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = true
	}
	return m.sortedStories(func(s model.Story) bool {
		return owners[s.OwnerID] && s.IsActive && s.ExpiresAt.After(now)
	}), nil
}

func (m *memStore) ListExpiredStories(_ context.Context, ownerID string, now time.Time, opts repository.ListOptions) ([]model.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return paginate(m.sortedStories(func(s model.Story) bool {
		return s.OwnerID == ownerID && (!s.IsActive || !s.ExpiresAt.After(now))
	}), opts), nil
}

func (m *memStore) DeleteStory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stories[id]; !ok {
		return apperror.NotFound("story", id)
	}
	delete(m.stories, id)
	kept := m.views[:0]
	for _, v := range m.views {
		if v.StoryID != id {
			kept = append(kept, v)
		}
	}
	m.views = kept
	return nil
}

func (m *memStore) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deactivateErr != nil {
		return 0, m.deactivateErr
	}
	var n int64
	for id, s := range m.stories {
		if s.IsActive && !s.ExpiresAt.After(now) {
			s.IsActive = false
			m.stories[id] = s
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateStoryView(_ context.Context, v *model.StoryView) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v.ID = m.nextID("view")
	m.views = append(m.views, *v)
	return nil
}

func (m *memStore) ListStoryViews(_ context.Context, storyID string) ([]model.StoryView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.StoryView{}
	for i := len(m.views) - 1; i >= 0; i-- {
		if m.views[i].StoryID == storyID {
			out = append(out, m.views[i])
		}
	}
	return out, nil
}

// ----- likes, comments, notifications -----

func (m *memStore) CreateLike(_ context.Context, l *model.Like) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := [2]string{l.PostID, l.UserID}
	if _, ok := m.likes[key]; ok {
		return apperror.Conflict("like", "post already liked")
	}
	l.CreatedAt = m.tick()
	m.likes[key] = *l
	return nil
}

func (m *memStore) DeleteLike(_ context.Context, postID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.likes, [2]string{postID, userID})
	return nil
}

func (m *memStore) CountLikes(_ context.Context, postID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k := range m.likes {
		if k[0] == postID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateComment(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = m.nextID("comment")
	c.CreatedAt = m.tick()
	m.comments = append(m.comments, *c)
	return nil
}

func (m *memStore) ListComments(_ context.Context, postID string, opts repository.ListOptions) ([]model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.Comment{}
	for _, c := range m.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return paginate(out, opts), nil
}

func (m *memStore) CreateNotification(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createNotificationErr != nil {
		return m.createNotificationErr
	}
	n.ID = m.nextID("notification")
	n.CreatedAt = m.tick()
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *memStore) ListNotifications(_ context.Context, recipientID string, opts repository.ListOptions) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.Notification{}
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if m.notifications[i].RecipientID == recipientID {
			out = append(out, m.notifications[i])
		}
	}
	return paginate(out, opts), nil
}

// =========================================================================
// MEDIA AND NOTIFIER FAKES
// =========================================================================

// fakeMedia runs the real media.Check and then "stores" the object under a
// sequential id.
type fakeMedia struct {
	mu        sync.Mutex
	seq       int
	stored    map[string]string // id → folder
	deleted   []string
	uploadErr error
	deleteErr error
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{stored: make(map[string]string)}
}

func (f *fakeMedia) Upload(_ context.Context, u media.Upload) (*model.Media, error) {
	if _, err := media.Check(u); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.seq++
	id := fmt.Sprintf("%s/media-%d", u.Folder, f.seq)
	f.stored[id] = u.Folder
	return &model.Media{ID: id, URL: "https://cdn.test/" + id}, nil
}

func (f *fakeMedia) Delete(_ context.Context, mediaID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, mediaID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.stored, mediaID)
	return nil
}

func (f *fakeMedia) storedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

// recordingNotifier captures notifications instead of storing them.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) all() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notification(nil), r.sent...)
}

// =========================================================================
// HELPERS
// =========================================================================

var errDatabaseDown = errors.New("database is on fire")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// pngBody returns a body that http.DetectContentType reports as image/png.
func pngBody() (io.ReadSeeker, int64) {
	b := append([]byte("\x89PNG\x0D\x0A\x1A\x0A"), bytes.Repeat([]byte{0}, 64)...)
	return bytes.NewReader(b), int64(len(b))
}

func textBody() (io.ReadSeeker, int64) {
	b := []byte("just some plain text, definitely not an image")
	return bytes.NewReader(b), int64(len(b))
}

func mustCreateUser(t *testing.T, store *memStore, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com"}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%q): %v", username, err)
	}
	return u
}

func mustFollow(t *testing.T, store *memStore, follower, followed string) {
	t.Helper()
	if err := store.CreateFollow(context.Background(), &model.Follow{FollowerID: follower, FollowedID: followed}); err != nil {
		t.Fatalf("CreateFollow(%s → %s): %v", follower, followed, err)
	}
}

func testMedia(id string) model.Media {
	return model.Media{ID: id, URL: "https://cdn.test/" + id}
}
