package model

// DefaultDisplayName is used as the author name when an identity has none.
const DefaultDisplayName = "Anonymous"

// Identity is an authenticated principal.
type Identity struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// AuthorName returns the name stamped on documents authored by i.
func (i Identity) AuthorName() string {
	if i.DisplayName == "" {
		return DefaultDisplayName
	}
	return i.DisplayName
}
