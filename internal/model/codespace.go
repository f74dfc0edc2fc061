package model

import "time"

// Codespace is a named, language-tagged code snippet owned by a user.
//
// Code always holds the ENCODED form (see internal/codec). Services encode on
// the way in; callers that want readable text decode explicitly.
//
// The engagement counters (Stars, Views, ...) are stored and returned but no
// workflow in this service changes them.
type Codespace struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Code         string    `json:"code"`
	Language     string    `json:"language"`
	OwnerID      string    `json:"owner"`
	IsPublic     bool      `json:"isPublic"`
	Stars        int       `json:"stars"`
	Views        int       `json:"views"`
	Downloads    int       `json:"downloads"`
	Contributors int       `json:"contributors"`
	Commits      int       `json:"commits"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
