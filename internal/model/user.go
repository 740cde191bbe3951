// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Username and Email are unique across all users; the store enforces this
// with UNIQUE constraints so that two concurrent registrations cannot both
// succeed. GitHubID is zero for password accounts and set for accounts
// created through "Sign in with GitHub".
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GitHubID     int64     `json:"-"`
	Bio          string    `json:"bio"`
	Avatar       *Media    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile is a User plus the counters shown on a profile page.
type Profile struct {
	User
	Followers int `json:"followers"`
	Following int `json:"following"`
	Posts     int `json:"posts"`
}
