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

// CommentService manages user comments on books. Only the author of a
// comment may edit or delete it.
type CommentService struct {
	store     *store.Store
	validator *validation.Validator
	logger    *slog.Logger
}

// NewCommentService creates a new comment service.
func NewCommentService(store *store.Store, logger *slog.Logger) *CommentService {
	return &CommentService{
		store:     store,
		validator: validation.New(),
		logger:    logger,
	}
}

// CommentRequest contains the text of a new or edited comment.
type CommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// Add creates a comment on a book under the given user. The author's display
// name is captured at write time; if the profile document is missing or has
// no name, the anonymous fallback is stored instead.
func (s *CommentService) Add(ctx context.Context, userID, bookID string, req CommentRequest) (*domain.Comment, error) {
	if userID == "" {
		return nil, domainerrors.Unauthorized("sign in to comment")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.store.Books.Get(ctx, bookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("book not found")
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	userName := domain.AnonymousName
	user, err := s.store.Users.Get(ctx, userID)
	switch {
	case err == nil && user.DisplayName != "":
		userName = user.DisplayName
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("get user: %w", err)
	}

	commentID, err := id.Generate("comment")
	if err != nil {
		return nil, fmt.Errorf("generate comment ID: %w", err)
	}

	comment := &domain.Comment{
		Meta: domain.Meta{
			ID: commentID,
		},
		BookID:   bookID,
		UserID:   userID,
		UserName: userName,
		Text:     req.Text,
	}
	comment.InitTimestamps()

	if err := s.store.Comments.Create(ctx, commentID, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("comment added", "comment_id", commentID, "book_id", bookID)
	}
	return comment, nil
}

// Edit replaces a comment's text. Only the comment's author may edit it.
func (s *CommentService) Edit(ctx context.Context, userID, commentID string, req CommentRequest) (*domain.Comment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	comment, err := s.store.Comments.Get(ctx, commentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("comment not found")
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}

	if comment.UserID != userID {
		return nil, domainerrors.Forbidden("only the author may edit a comment")
	}

	comment.Text = req.Text
	comment.Touch()
	if err := s.store.Comments.Update(ctx, commentID, comment); err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	return comment, nil
}

// Delete removes a comment. Only the comment's author may delete it.
func (s *CommentService) Delete(ctx context.Context, userID, commentID string) error {
	comment, err := s.store.Comments.Get(ctx, commentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("comment not found")
		}
		return fmt.Errorf("get comment: %w", err)
	}

	if comment.UserID != userID {
		return domainerrors.Forbidden("only the author may delete a comment")
	}

	if err := s.store.Comments.Delete(ctx, commentID); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// ListForBook returns a book's comments in identifier order.
func (s *CommentService) ListForBook(ctx context.Context, bookID string) ([]*domain.Comment, error) {
	var comments []*domain.Comment
	for comment, err := range s.store.Comments.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list comments: %w", err)
		}
		if comment.BookID == bookID {
			comments = append(comments, comment)
		}
	}
	return comments, nil
}
