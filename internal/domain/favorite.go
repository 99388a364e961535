package domain

// Favorite links a user to a book they marked as favorite. At most one
// document should exist per (user, book) pair; the toggle path checks
// before inserting, but the pair is not a storage-level constraint.
type Favorite struct {
	Meta
	UserID string `json:"user_id"`
	BookID string `json:"book_id"`
}
