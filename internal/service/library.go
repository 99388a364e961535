package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/libroteca/libroteca/internal/domain"
	domainerrors "github.com/libroteca/libroteca/internal/errors"
	"github.com/libroteca/libroteca/internal/id"
	"github.com/libroteca/libroteca/internal/store"
	"github.com/libroteca/libroteca/internal/validation"
)

// LibraryService manages the author and book records of the catalog.
type LibraryService struct {
	store     *store.Store
	validator *validation.Validator
	logger    *slog.Logger
}

// NewLibraryService creates a new library service.
func NewLibraryService(store *store.Store, logger *slog.Logger) *LibraryService {
	return &LibraryService{
		store:     store,
		validator: validation.New(),
		logger:    logger,
	}
}

// AuthorRequest contains author record data, for both create and update.
type AuthorRequest struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	ImageURL string `json:"image_url" validate:"omitempty,url"`
}

// BookRequest contains book record data, for both create and update.
type BookRequest struct {
	Title       string `json:"title" validate:"required,max=300"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	Description string `json:"description" validate:"max=5000"`
	AuthorID    string `json:"author_id" validate:"required"`
}

// CreateAuthor adds a new author record.
func (s *LibraryService) CreateAuthor(ctx context.Context, req AuthorRequest) (*domain.Author, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	authorID, err := id.Generate("author")
	if err != nil {
		return nil, fmt.Errorf("generate author ID: %w", err)
	}

	author := &domain.Author{
		Meta: domain.Meta{
			ID: authorID,
		},
		FullName: req.FullName,
		ImageURL: req.ImageURL,
	}
	author.InitTimestamps()

	if err := s.store.Authors.Create(ctx, authorID, author); err != nil {
		return nil, fmt.Errorf("create author: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("author created", "author_id", authorID, "name", author.FullName)
	}
	return author, nil
}

// UpdateAuthor replaces an author record's fields.
func (s *LibraryService) UpdateAuthor(ctx context.Context, authorID string, req AuthorRequest) (*domain.Author, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	author, err := s.store.Authors.Get(ctx, authorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("author not found")
		}
		return nil, fmt.Errorf("get author: %w", err)
	}

	author.FullName = req.FullName
	author.ImageURL = req.ImageURL
	author.Touch()

	if err := s.store.Authors.Update(ctx, authorID, author); err != nil {
		return nil, fmt.Errorf("update author: %w", err)
	}
	return author, nil
}

// DeleteAuthor removes an author record. Books referencing the author are
// left in place with a dangling reference; joined views show them without
// author details.
func (s *LibraryService) DeleteAuthor(ctx context.Context, authorID string) error {
	if err := s.store.Authors.Delete(ctx, authorID); err != nil {
		return fmt.Errorf("delete author: %w", err)
	}
	return nil
}

// GetAuthor retrieves an author by ID.
func (s *LibraryService) GetAuthor(ctx context.Context, authorID string) (*domain.Author, error) {
	author, err := s.store.Authors.Get(ctx, authorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("author not found")
		}
		return nil, fmt.Errorf("get author: %w", err)
	}
	return author, nil
}

// ListAuthors returns all author records in identifier order.
func (s *LibraryService) ListAuthors(ctx context.Context) ([]*domain.Author, error) {
	var authors []*domain.Author
	for author, err := range s.store.Authors.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list authors: %w", err)
		}
		authors = append(authors, author)
	}
	return authors, nil
}

// CreateBook adds a new book record. The referenced author must exist at
// creation time; the reference is not enforced afterwards.
func (s *LibraryService) CreateBook(ctx context.Context, req BookRequest) (*domain.Book, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.store.Authors.Get(ctx, req.AuthorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Validation("author_id does not reference a known author")
		}
		return nil, fmt.Errorf("get author: %w", err)
	}

	bookID, err := id.Generate("book")
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	book := &domain.Book{
		Meta: domain.Meta{
			ID: bookID,
		},
		Title:       req.Title,
		ImageURL:    req.ImageURL,
		Description: req.Description,
		AuthorID:    req.AuthorID,
	}
	book.InitTimestamps()

	if err := s.store.Books.Create(ctx, bookID, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("book created", "book_id", bookID, "title", book.Title)
	}
	return book, nil
}

// UpdateBook replaces a book record's fields.
func (s *LibraryService) UpdateBook(ctx context.Context, bookID string, req BookRequest) (*domain.Book, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	book, err := s.store.Books.Get(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("book not found")
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	book.Title = req.Title
	book.ImageURL = req.ImageURL
	book.Description = req.Description
	book.AuthorID = req.AuthorID
	book.Touch()

	if err := s.store.Books.Update(ctx, bookID, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	return book, nil
}

// DeleteBook removes a book record along with its comments and favorites,
// so nothing keeps referencing a book that no longer exists.
func (s *LibraryService) DeleteBook(ctx context.Context, bookID string) error {
	for comment, err := range s.store.Comments.List(ctx) {
		if err != nil {
			return fmt.Errorf("list comments: %w", err)
		}
		if comment.BookID != bookID {
			continue
		}
		if err := s.store.Comments.Delete(ctx, comment.ID); err != nil {
			return fmt.Errorf("delete comment %s: %w", comment.ID, err)
		}
	}

	for fav, err := range s.store.Favorites.List(ctx) {
		if err != nil {
			return fmt.Errorf("list favorites: %w", err)
		}
		if fav.BookID != bookID {
			continue
		}
		if err := s.store.Favorites.Delete(ctx, fav.ID); err != nil {
			return fmt.Errorf("delete favorite %s: %w", fav.ID, err)
		}
	}

	if err := s.store.Books.Delete(ctx, bookID); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("book deleted", "book_id", bookID)
	}
	return nil
}

// GetBook retrieves a book by ID.
func (s *LibraryService) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.store.Books.Get(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("book not found")
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// ListBooks returns all book records in identifier order.
func (s *LibraryService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	var books []*domain.Book
	for book, err := range s.store.Books.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list books: %w", err)
		}
		books = append(books, book)
	}
	return books, nil
}
