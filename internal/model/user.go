// Package model defines the data structures used throughout the application.
// Entities are plain data: persistence lives behind the repository
// interfaces, never in methods on these structs.
package model

import "time"

// DefaultAvatar is the placeholder every account starts with. It is served
// from the embedded assets, so it never exists in the blob store and is
// never deleted from it.
const DefaultAvatar = "noimage.svg"

// User represents a registered account.
//
// GitHubID is nil for accounts created through the registration form. It is
// a pointer so the UNIQUE column can hold many NULLs.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AvatarRef    string    `json:"avatarRef"`
	GitHubID     *int64    `json:"githubId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasCustomAvatar reports whether AvatarRef names an uploaded blob rather
// than the placeholder.
func (u *User) HasCustomAvatar() bool {
	return u.AvatarRef != "" && u.AvatarRef != DefaultAvatar
}
