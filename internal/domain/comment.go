package domain

// Comment is a user comment on a book. UserName is denormalized from the
// author's profile at write time so comments keep rendering even if the
// account is later renamed or deleted. CreatedAt is assigned by the
// platform when the document is written, not by the caller.
type Comment struct {
	Meta
	BookID   string `json:"book_id"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Text     string `json:"text"`
}
