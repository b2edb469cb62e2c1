// Package model defines the core data structures shared by the session and content layers.
package model

import (
	"strings"
	"time"
)

type DocumentID string

type UserID string

// Document is a post as held by the document store. ID is assigned by the
// store on creation and AuthorID never changes afterwards.
type Document struct {
	ID DocumentID `json:"id"`

	Title string `json:"title"`
	// Rich-text encoded body, opaque to the core.
	Body string `json:"body"`

	AuthorID          UserID `json:"authorId"`
	AuthorDisplayName string `json:"authorDisplayName"`

	// Optional: reference to the uploaded image.
	AssetRef string `json:"assetRef,omitempty"`

	// Used by stores for change detection.
	BodyHash string `json:"-"`

	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Payload is the author-controlled part of a document sent on create and update.
type Payload struct {
	Title             string
	Body              string
	AuthorID          UserID
	AuthorDisplayName string
	AssetRef          string
}

// Validate reports whether the title and body are non-empty once trimmed.
func (p Payload) Validate() error {
	return ValidateContent(p.Title, p.Body)
}

// ValidateContent checks the user-supplied fields of a document.
func ValidateContent(title, body string) error {
	switch {
	case strings.TrimSpace(title) == "":
		return ErrEmptyTitle
	case strings.TrimSpace(body) == "":
		return ErrEmptyBody
	}
	return nil
}
