// Package model defines the data structures used throughout the application.
// Models are plain structs: no methods that touch the database, no HTTP types.
package model

import "time"

// User represents a registered account.
//
// WHY PasswordHash AND NOT Password?
// We only ever store the bcrypt output. The `json:"-"` tag makes sure the hash
// can never leak through an accidental json.Marshal of a User.
//
// WHY GitHubID *int64?
// Most accounts sign up with a password and never link GitHub. A nil pointer maps
// to SQL NULL, which lets the UNIQUE constraint on github_id ignore unlinked rows.
type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	Avatar          string    `json:"avatar"`
	Followers       int       `json:"followers"`
	CodespacesCount int       `json:"codespacesCount"`
	GitHubID        *int64    `json:"githubId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Profile is the public projection of a User returned by searches.
type Profile struct {
	Avatar          string    `json:"avatar"`
	Name            string    `json:"name"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	Followers       int       `json:"followers"`
	CodespacesCount int       `json:"codespacesCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Profile projects the user onto its public fields.
func (u *User) Profile() Profile {
	return Profile{
		Avatar:          u.Avatar,
		Name:            u.Name,
		Username:        u.Username,
		Email:           u.Email,
		Followers:       u.Followers,
		CodespacesCount: u.CodespacesCount,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}
