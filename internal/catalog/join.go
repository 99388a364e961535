package catalog

import "github.com/libroteca/libroteca/internal/domain"

// BookWithAuthor is a book record joined with its author's details.
// Author is nil when the book's author reference does not resolve, for
// example after the author record was deleted. Views render such books
// without author information rather than hiding them.
type BookWithAuthor struct {
	ID     string
	Book   domain.Book
	Author *domain.Author
}

// JoinBooks resolves each book's author reference against the given author
// records. The result preserves book snapshot order. The join is pure: it
// recomputes from whatever the two snapshots currently hold, so either side
// updating is enough to refresh the view.
func JoinBooks(books []Record[domain.Book], authors []Record[domain.Author]) []BookWithAuthor {
	byID := make(map[string]*domain.Author, len(authors))
	for i := range authors {
		byID[authors[i].ID] = &authors[i].Value
	}

	out := make([]BookWithAuthor, 0, len(books))
	for _, b := range books {
		out = append(out, BookWithAuthor{
			ID:     b.ID,
			Book:   b.Value,
			Author: byID[b.Value.AuthorID],
		})
	}
	return out
}
