package model

import "time"

// Follow is a directed edge: FollowerID follows FollowedID.
type Follow struct {
	FollowerID string    `json:"followerId"`
	FollowedID string    `json:"followedId"`
	CreatedAt  time.Time `json:"createdAt"`
}
