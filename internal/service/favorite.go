package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/libroteca/libroteca/internal/domain"
	domainerrors "github.com/libroteca/libroteca/internal/errors"
	"github.com/libroteca/libroteca/internal/id"
	"github.com/libroteca/libroteca/internal/store"
)

// FavoriteService manages per-user favorite marks on books.
type FavoriteService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewFavoriteService creates a new favorite service.
func NewFavoriteService(store *store.Store, logger *slog.Logger) *FavoriteService {
	return &FavoriteService{
		store:  store,
		logger: logger,
	}
}

// Toggle flips the favorite state of a book for a user. It queries the
// current state first: if a favorite document exists it is removed, otherwise
// one is created. Returns the state after the toggle (true means favorite).
// Concurrent toggles of the same pair can race; the last write wins and a
// later toggle reconciles.
func (s *FavoriteService) Toggle(ctx context.Context, userID, bookID string) (bool, error) {
	if userID == "" {
		return false, domainerrors.Unauthorized("sign in to mark favorites")
	}
	if bookID == "" {
		return false, domainerrors.Validation("book_id is required")
	}

	existing, err := s.find(ctx, userID, bookID)
	if err != nil {
		return false, err
	}

	if existing != nil {
		if err := s.store.Favorites.Delete(ctx, existing.ID); err != nil {
			return false, fmt.Errorf("delete favorite: %w", err)
		}
		return false, nil
	}

	favID, err := id.Generate("fav")
	if err != nil {
		return false, fmt.Errorf("generate favorite ID: %w", err)
	}

	fav := &domain.Favorite{
		Meta: domain.Meta{
			ID: favID,
		},
		UserID: userID,
		BookID: bookID,
	}
	fav.InitTimestamps()

	if err := s.store.Favorites.Create(ctx, favID, fav); err != nil {
		return false, fmt.Errorf("create favorite: %w", err)
	}
	return true, nil
}

// IsFavorite reports whether the user has marked the book as favorite.
func (s *FavoriteService) IsFavorite(ctx context.Context, userID, bookID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	existing, err := s.find(ctx, userID, bookID)
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}

// ListForUser returns the user's favorite documents in identifier order.
func (s *FavoriteService) ListForUser(ctx context.Context, userID string) ([]*domain.Favorite, error) {
	var favs []*domain.Favorite
	for fav, err := range s.store.Favorites.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list favorites: %w", err)
		}
		if fav.UserID == userID {
			favs = append(favs, fav)
		}
	}
	return favs, nil
}

// find returns the favorite document for a (user, book) pair, or nil.
// If races ever produced duplicates, the first in identifier order is used.
func (s *FavoriteService) find(ctx context.Context, userID, bookID string) (*domain.Favorite, error) {
	for fav, err := range s.store.Favorites.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list favorites: %w", err)
		}
		if fav.UserID == userID && fav.BookID == bookID {
			return fav, nil
		}
	}
	return nil, nil
}
