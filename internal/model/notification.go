package model

import "time"

type NotificationType string

const (
	NotificationLike      NotificationType = "like"
	NotificationComment   NotificationType = "comment"
	NotificationFollow    NotificationType = "follow"
	NotificationStoryView NotificationType = "story_view"
)

// Notification is a write-once event addressed to RecipientID.
// PostID is set for like/comment, StoryID for story_view.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipientId"`
	Type        NotificationType `json:"type"`
	FromUserID  string           `json:"fromUserId"`
	PostID      string           `json:"postId,omitempty"`
	StoryID     string           `json:"storyId,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}
