// Package main provides a tool to seed the database with demo catalog data.
//
// It creates a handful of authors, books, users, favorites, and comments so
// the application has something to show on first run.
//
// Usage:
//
//	DB_PATH=~/Libroteca/data/db go run ./cmd/seed
//	DB_PATH=~/Libroteca/data/db go run ./cmd/seed --wipe-demo  # Remove seeded records first
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"slices"

	"github.com/libroteca/libroteca/internal/auth"
	"github.com/libroteca/libroteca/internal/domain"
	"github.com/libroteca/libroteca/internal/id"
	"github.com/libroteca/libroteca/internal/normalize"
	"github.com/libroteca/libroteca/internal/store"
)

var wipeDemo = flag.Bool("wipe-demo", false, "Remove previously seeded demo records first")

const demoPassword = "libroteca"

var demoAuthors = []struct {
	FullName string
	ImageURL string
	Books    []struct {
		Title       string
		Description string
	}
}{
	{
		FullName: "Gabriel García Márquez",
		ImageURL: "https://example.org/images/ggm.jpg",
		Books: []struct {
			Title       string
			Description string
		}{
			{"Cien años de soledad", "The Buendía family across seven generations in Macondo."},
			{"El amor en los tiempos del cólera", "A love deferred for half a century."},
		},
	},
	{
		FullName: "Isabel Allende",
		ImageURL: "https://example.org/images/allende.jpg",
		Books: []struct {
			Title       string
			Description string
		}{
			{"La casa de los espíritus", "The Trueba family through four generations."},
		},
	},
	{
		FullName: "Jorge Luis Borges",
		ImageURL: "https://example.org/images/borges.jpg",
		Books: []struct {
			Title       string
			Description string
		}{
			{"Ficciones", "Labyrinths, libraries, and impossible books."},
			{"El Aleph", "A point that contains all other points."},
		},
	},
}

var demoUsers = []struct {
	Email       string
	DisplayName string
}{
	{"ana@example.org", "Ana"},
	{"luis@example.org", "Luis"},
}

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/Libroteca/data/db")
	}

	fmt.Printf("Opening database at: %s\n", dbPath)

	s, err := store.New(dbPath, nil, store.NewNoopEmitter())
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	if *wipeDemo {
		wipe(ctx, s)
	}

	seedUsers(ctx, s)
	users := listUsers(ctx, s)

	authorIDs := seedAuthorsAndBooks(ctx, s)
	books := listBooks(ctx, s)

	seedFavoritesAndComments(ctx, s, users, books)

	fmt.Printf("\nSeeded %d authors, %d books, %d users\n", len(authorIDs), len(books), len(users))
	fmt.Printf("Demo accounts use password %q\n", demoPassword)
}

func seedUsers(ctx context.Context, s *store.Store) {
	hash, err := auth.HashPassword(demoPassword)
	if err != nil {
		log.Fatalf("Failed to hash demo password: %v", err)
	}

	for _, du := range demoUsers {
		if _, err := s.Users.GetByIndex(ctx, "email", du.Email); err == nil {
			fmt.Printf("User %s already exists, skipping\n", du.Email)
			continue
		}

		userID := id.MustGenerate("user")
		user := &domain.User{
			Meta:         domain.Meta{ID: userID},
			Email:        normalize.Email(du.Email),
			PasswordHash: hash,
			DisplayName:  du.DisplayName,
		}
		user.InitTimestamps()

		if err := s.Users.Create(ctx, userID, user); err != nil {
			log.Fatalf("Failed to create user %s: %v", du.Email, err)
		}
		fmt.Printf("Created user %s (%s)\n", du.DisplayName, du.Email)
	}
}

func seedAuthorsAndBooks(ctx context.Context, s *store.Store) []string {
	// Match existing records on normalized names so a rerun doesn't
	// duplicate them over casing or accent differences.
	existing := make(map[string]string) // normalized full name -> author ID
	for author, err := range s.Authors.List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list authors: %v", err)
		}
		existing[normalize.Key(author.FullName)] = author.ID
	}

	titles := make(map[string]bool)
	for book, err := range s.Books.List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list books: %v", err)
		}
		titles[normalize.Key(book.Title)] = true
	}

	var authorIDs []string
	for _, da := range demoAuthors {
		authorID, ok := existing[normalize.Key(da.FullName)]
		if !ok {
			authorID = id.MustGenerate("author")
			author := &domain.Author{
				Meta:     domain.Meta{ID: authorID},
				FullName: da.FullName,
				ImageURL: da.ImageURL,
			}
			author.InitTimestamps()
			if err := s.Authors.Create(ctx, authorID, author); err != nil {
				log.Fatalf("Failed to create author %s: %v", da.FullName, err)
			}
			fmt.Printf("Created author %s\n", da.FullName)
		}
		authorIDs = append(authorIDs, authorID)

		for _, db := range da.Books {
			if titles[normalize.Key(db.Title)] {
				continue
			}
			bookID := id.MustGenerate("book")
			book := &domain.Book{
				Meta:        domain.Meta{ID: bookID},
				Title:       db.Title,
				ImageURL:    "https://example.org/covers/" + bookID + ".jpg",
				Description: db.Description,
				AuthorID:    authorID,
			}
			book.InitTimestamps()
			if err := s.Books.Create(ctx, bookID, book); err != nil {
				log.Fatalf("Failed to create book %s: %v", db.Title, err)
			}
			fmt.Printf("  Created book %s\n", db.Title)
		}
	}
	return authorIDs
}

func seedFavoritesAndComments(ctx context.Context, s *store.Store, users []*domain.User, books []*domain.Book) {
	if len(users) == 0 || len(books) == 0 {
		return
	}

	commented := make(map[string]bool) // userID:bookID pairs already commented
	for comment, err := range s.Comments.List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list comments: %v", err)
		}
		commented[comment.UserID+":"+comment.BookID] = true
	}

	favorited := make(map[string]bool)
	for fav, err := range s.Favorites.List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list favorites: %v", err)
		}
		favorited[fav.UserID+":"+fav.BookID] = true
	}

	for i, user := range users {
		// Each user favorites and comments on every other book, offset by
		// their position, so the demo data is not uniform.
		for j, book := range books {
			if (i+j)%2 != 0 {
				continue
			}
			pair := user.ID + ":" + book.ID

			if !favorited[pair] {
				favID := id.MustGenerate("fav")
				fav := &domain.Favorite{
					Meta:   domain.Meta{ID: favID},
					UserID: user.ID,
					BookID: book.ID,
				}
				fav.InitTimestamps()
				if err := s.Favorites.Create(ctx, favID, fav); err != nil {
					log.Fatalf("Failed to create favorite: %v", err)
				}
			}

			if !commented[pair] {
				commentID := id.MustGenerate("comment")
				comment := &domain.Comment{
					Meta:     domain.Meta{ID: commentID},
					BookID:   book.ID,
					UserID:   user.ID,
					UserName: user.DisplayName,
					Text:     fmt.Sprintf("%s me pareció una gran lectura.", book.Title),
				}
				comment.InitTimestamps()
				if err := s.Comments.Create(ctx, commentID, comment); err != nil {
					log.Fatalf("Failed to create comment: %v", err)
				}
			}
		}
		fmt.Printf("Seeded favorites and comments for %s\n", user.DisplayName)
	}
}

func wipe(ctx context.Context, s *store.Store) {
	fmt.Println("Removing demo records...")

	demoEmails := make(map[string]bool)
	for _, du := range demoUsers {
		demoEmails[du.Email] = true
	}
	demoNames := make(map[string]bool)
	for _, da := range demoAuthors {
		demoNames[da.FullName] = true
	}

	var demoUserIDs []string
	for user, err := range s.Users.List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}
		if demoEmails[user.Email] {
			demoUserIDs = append(demoUserIDs, user.ID)
		}
	}

	var demoAuthorIDs []string
	for author, err := range s.Authors.List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list authors: %v", err)
		}
		if demoNames[author.FullName] {
			demoAuthorIDs = append(demoAuthorIDs, author.ID)
		}
	}

	var demoBookIDs []string
	for book, err := range s.Books.List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list books: %v", err)
		}
		for _, authorID := range demoAuthorIDs {
			if book.AuthorID == authorID {
				demoBookIDs = append(demoBookIDs, book.ID)
				break
			}
		}
	}

	for comment, err := range s.Comments.List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list comments: %v", err)
		}
		if slices.Contains(demoUserIDs, comment.UserID) || slices.Contains(demoBookIDs, comment.BookID) {
			mustDelete(ctx, s.Comments.Delete, comment.ID)
		}
	}
	for fav, err := range s.Favorites.List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list favorites: %v", err)
		}
		if slices.Contains(demoUserIDs, fav.UserID) || slices.Contains(demoBookIDs, fav.BookID) {
			mustDelete(ctx, s.Favorites.Delete, fav.ID)
		}
	}
	for _, bookID := range demoBookIDs {
		mustDelete(ctx, s.Books.Delete, bookID)
	}
	for _, authorID := range demoAuthorIDs {
		mustDelete(ctx, s.Authors.Delete, authorID)
	}
	for _, userID := range demoUserIDs {
		mustDelete(ctx, s.Users.Delete, userID)
	}
}

func mustDelete(ctx context.Context, del func(context.Context, string) error, docID string) {
	if err := del(ctx, docID); err != nil {
		log.Fatalf("Failed to delete %s: %v", docID, err)
	}
}

func listUsers(ctx context.Context, s *store.Store) []*domain.User {
	var users []*domain.User
	for user, err := range s.Users.List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}
		users = append(users, user)
	}
	return users
}

func listBooks(ctx context.Context, s *store.Store) []*domain.Book {
	var books []*domain.Book
	for book, err := range s.Books.List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list books: %v", err)
		}
		books = append(books, book)
	}
	return books
}
