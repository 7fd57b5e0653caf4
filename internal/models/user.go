package models

import "time"

// User is the credential store record. PasswordHash and RefreshTokenHash never
// leave the server.
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	FullName         string    `json:"fullName"`
	Avatar           string    `json:"avatar"`
	CoverImage       string    `json:"coverImage"`
	PasswordHash     string    `json:"-"`
	RefreshTokenHash *string   `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// HasRefreshToken reports whether the user currently holds an active session.
func (u *User) HasRefreshToken() bool {
	return u.RefreshTokenHash != nil && *u.RefreshTokenHash != ""
}
