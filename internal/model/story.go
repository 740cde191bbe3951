package model

import "time"

// StoryTTL is how long a story stays visible after it is created.
const StoryTTL = 24 * time.Hour

// Story is a short-lived piece of media shared with followers.
//
// Two fields describe the same logical state: ExpiresAt (the truth) and
// IsActive (set to false by the daily sweep). Never read IsActive on its
// own; use IsVisible.
type Story struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Media     Media     `json:"media"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsActive  bool      `json:"isActive"`
}

// IsVisible reports whether the story may be shown to anyone at now.
// A story is visible iff it has not been swept AND now is strictly before
// its expiry.
func (s *Story) IsVisible(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}

// Expired reports whether the story's lifetime is over at now, whether or
// not the sweep has caught up with it yet.
func (s *Story) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// StoryView records one view of a story. Repeated views produce repeated rows.
type StoryView struct {
	ID       string    `json:"id"`
	StoryID  string    `json:"storyId"`
	ViewerID string    `json:"viewerId"`
	ViewedAt time.Time `json:"viewedAt"`
}
