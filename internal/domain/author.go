package domain

// Author represents a book author managed through the author form.
type Author struct {
	Meta
	FullName string `json:"full_name"`
	ImageURL string `json:"image_url"`
}
