// Package domain defines the catalog's entity types. These are the documents
// stored in the platform collections and carried through live snapshots.
package domain

import "time"

// User represents an authenticated account. The document doubles as the
// user's profile: DisplayName is what comment authorship renders as.
type User struct {
	Meta
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"` // Stored hashed, never shown to clients
	DisplayName  string    `json:"display_name"`
	LastLoginAt  time.Time `json:"last_login_at,omitzero"`
}

// AnonymousName is the display name rendered when a comment's author has no
// profile document (for example after account deletion).
const AnonymousName = "Anónimo"
