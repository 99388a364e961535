package domain

// Book represents a catalog entry. AuthorID references an Author document
// but is not enforced: deleting an author leaves its books dangling, and
// every view that joins the two must tolerate a missing author.
type Book struct {
	Meta
	Title       string `json:"title"`
	ImageURL    string `json:"image_url"`
	Description string `json:"description"`
	AuthorID    string `json:"author_id"`
}
