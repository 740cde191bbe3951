package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/repository"
)

var storyEpoch = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

// createTestStory inserts an active story created at createdAt with the
// standard TTL.
func createTestStory(t *testing.T, db *DB, ownerID string, createdAt time.Time) *model.Story {
	t.Helper()
	s := &model.Story{
		OwnerID:   ownerID,
		Media:     model.Media{ID: "stories/" + ownerID, URL: "https://cdn.example.com/" + ownerID},
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(model.StoryTTL),
		IsActive:  true,
	}
	if err := db.CreateStory(context.Background(), s); err != nil {
		t.Fatalf("failed to create test story: %v", err)
	}
	return s
}

func TestCreateAndGetStory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := createTestStory(t, db, "owner", storyEpoch)
	if s.ID == "" {
		t.Fatal("CreateStory() did not set ID")
	}

	got, err := db.GetStory(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetStory() error = %v", err)
	}
	if !got.CreatedAt.Equal(storyEpoch) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, storyEpoch)
	}
	if !got.ExpiresAt.Equal(storyEpoch.Add(24 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want created + 24h", got.ExpiresAt)
	}
	if !got.IsActive {
		t.Error("IsActive = false, want true")
	}
	if got.Media != s.Media {
		t.Errorf("Media = %+v, want %+v", got.Media, s.Media)
	}

	if _, err := db.GetStory(ctx, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetStory(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListVisibleStories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	older := createTestStory(t, db, "b", storyEpoch)
	newer := createTestStory(t, db, "b", storyEpoch.Add(time.Hour))
	createTestStory(t, db, "c", storyEpoch)
	createTestStory(t, db, "b", storyEpoch.Add(-30*time.Hour))

	tests := []struct {
		name    string
		now     time.Time
		wantIDs []string
	}{
		{"both live", storyEpoch.Add(2 * time.Hour), []string{newer.ID, older.ID}},
		{"at exact expiry of older", storyEpoch.Add(24 * time.Hour), []string{newer.ID}},
		{"after both", storyEpoch.Add(26 * time.Hour), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListVisibleStories(ctx, []string{"a", "b"}, tt.now)
			if err != nil {
				t.Fatalf("ListVisibleStories() error = %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d stories, want %d", len(got), len(tt.wantIDs))
			}
			for i := range got {
				if got[i].ID != tt.wantIDs[i] {
					t.Errorf("stories[%d] = %s, want %s", i, got[i].ID, tt.wantIDs[i])
				}
				if !got[i].IsVisible(tt.now) {
					t.Errorf("stories[%d] returned but not visible at %v", i, tt.now)
				}
			}
		})
	}
}

func TestListVisibleStories_NoOwners(t *testing.T) {
	db := newTestDB(t)

	got, err := db.ListVisibleStories(context.Background(), nil, storyEpoch)
	if err != nil {
		t.Fatalf("ListVisibleStories() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ListVisibleStories(nil) = %#v, want empty slice", got)
	}
}

// manyOwnerIDs returns n made-up owner ids followed by extra. n is chosen
// by callers to exceed SQLite's default limit of 32766 bound variables.
func manyOwnerIDs(n int, extra ...string) []string {
	ids := make([]string, 0, n+len(extra))
	for i := 0; i < n; i++ {
		ids = append(ids, fmt.Sprintf("user-%d", i))
	}
	return append(ids, extra...)
}

func TestListVisibleStories_LargeFollowSet(t *testing.T) {
	db := newTestDB(t)

	story := createTestStory(t, db, "b", storyEpoch)

	got, err := db.ListVisibleStories(context.Background(), manyOwnerIDs(40000, "b"), storyEpoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListVisibleStories() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != story.ID {
		t.Errorf("ListVisibleStories() = %v, want [%s]", got, story.ID)
	}
}

func TestDeactivateExpired(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	expired1 := createTestStory(t, db, "a", storyEpoch)
	expired2 := createTestStory(t, db, "b", storyEpoch.Add(time.Minute))
	live := createTestStory(t, db, "a", storyEpoch.Add(10*time.Hour))

	sweepAt := storyEpoch.Add(25 * time.Hour)

	n, err := db.DeactivateExpired(ctx, sweepAt)
	if err != nil {
		t.Fatalf("DeactivateExpired() error = %v", err)
	}
	if n != 2 {
		t.Errorf("first sweep changed %d rows, want 2", n)
	}

	// Same now again: nothing left to change.
	n, err = db.DeactivateExpired(ctx, sweepAt)
	if err != nil {
		t.Fatalf("second DeactivateExpired() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep changed %d rows, want 0", n)
	}

	for _, id := range []string{expired1.ID, expired2.ID} {
		s, _ := db.GetStory(ctx, id)
		if s.IsActive {
			t.Errorf("story %s still active after sweep", id)
		}
	}
	s, _ := db.GetStory(ctx, live.ID)
	if !s.IsActive {
		t.Error("live story was deactivated")
	}
}

func TestDeactivateExpired_BoundaryIsInclusive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := createTestStory(t, db, "a", storyEpoch)

	n, err := db.DeactivateExpired(ctx, s.ExpiresAt)
	if err != nil {
		t.Fatalf("DeactivateExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("sweep at exact expiry changed %d rows, want 1", n)
	}
}

func TestListExpiredStories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	swept := createTestStory(t, db, "a", storyEpoch)
	createTestStory(t, db, "a", storyEpoch.Add(20*time.Hour)) // still live at now
	unswept := createTestStory(t, db, "a", storyEpoch.Add(time.Hour))
	createTestStory(t, db, "b", storyEpoch)

	if _, err := db.DeactivateExpired(ctx, storyEpoch.Add(24*time.Hour)); err != nil {
		t.Fatalf("DeactivateExpired() error = %v", err)
	}

	now := storyEpoch.Add(30 * time.Hour)
	got, err := db.ListExpiredStories(ctx, "a", now, repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListExpiredStories() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d stories, want 2", len(got))
	}
	if got[0].ID != unswept.ID || got[1].ID != swept.ID {
		t.Errorf("order = [%s %s], want [%s %s]", got[0].ID, got[1].ID, unswept.ID, swept.ID)
	}
}

func TestDeleteStory_RemovesViews(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := createTestStory(t, db, "a", storyEpoch)
	for i := 0; i < 3; i++ {
		if err := db.CreateStoryView(ctx, &model.StoryView{StoryID: s.ID, ViewerID: "v"}); err != nil {
			t.Fatalf("CreateStoryView() error = %v", err)
		}
	}

	if err := db.DeleteStory(ctx, s.ID); err != nil {
		t.Fatalf("DeleteStory() error = %v", err)
	}
	if _, err := db.GetStory(ctx, s.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetStory after delete error = %v, want ErrNotFound", err)
	}

	views, err := db.ListStoryViews(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListStoryViews() error = %v", err)
	}
	if len(views) != 0 {
		t.Errorf("%d views survived the delete", len(views))
	}

	if err := db.DeleteStory(ctx, s.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteStory() error = %v, want ErrNotFound", err)
	}
}

func TestStoryViews_RepeatsAreKept(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := createTestStory(t, db, "a", storyEpoch)
	first := &model.StoryView{StoryID: s.ID, ViewerID: "v", ViewedAt: storyEpoch.Add(time.Minute)}
	second := &model.StoryView{StoryID: s.ID, ViewerID: "v", ViewedAt: storyEpoch.Add(2 * time.Minute)}
	for _, v := range []*model.StoryView{first, second} {
		if err := db.CreateStoryView(ctx, v); err != nil {
			t.Fatalf("CreateStoryView() error = %v", err)
		}
	}

	views, err := db.ListStoryViews(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListStoryViews() error = %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d views, want 2", len(views))
	}
	if views[0].ID != second.ID {
		t.Errorf("newest view first: got %s, want %s", views[0].ID, second.ID)
	}
}
