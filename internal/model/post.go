package model

import "time"

// Post is a permanent piece of media with a caption. Media is fixed at
// creation time; there is no update operation.
type Post struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Media     Media     `json:"media"`
	Caption   string    `json:"caption"`
	Hashtags  []string  `json:"hashtags"`
	CreatedAt time.Time `json:"createdAt"`
}

type Like struct {
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
