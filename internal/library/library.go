// Package library manages the primary identity's own books and profile.
package library

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"bookshare/internal/apiclient"
	"bookshare/internal/mutation"
	"bookshare/pkg/domain"
)

// ErrLoginRequired is returned, before any request, when the primary identity is signed out.
var ErrLoginRequired = apiclient.ErrLoginRequired

// API is the part of the API client used for the owner's books.
type API interface {
	UserBooks(ctx context.Context, token string) ([]domain.Book, error)
	DeleteBook(ctx context.Context, token, id string) error
	CreateBook(ctx context.Context, token string, form apiclient.BookForm) error
	UpdateBook(ctx context.Context, token, id string, form apiclient.BookForm) error
	UpdateProfile(ctx context.Context, token, userID, username string) error
}

// Credentials yields the bearer token and profile of a signed-in slot.
type Credentials interface {
	Credential(slot domain.Slot) (string, domain.UserProfile, bool)
}

// Config holds the collaborators of a Library.
type Config struct {
	API         API
	Credentials Credentials
	Confirmer   mutation.Confirmer
	Logger      *slog.Logger
}

// Library caches the owner's books between calls.
type Library struct {
	api     API
	creds   Credentials
	confirm mutation.Confirmer
	logger  *slog.Logger

	mu    sync.Mutex
	books []domain.Book
}

// New builds a Library.
func New(cfg Config) (*Library, error) {
	if cfg.API == nil {
		return nil, errors.New("library: api is required")
	}
	if cfg.Credentials == nil {
		return nil, errors.New("library: credentials are required")
	}
	if cfg.Confirmer == nil {
		return nil, errors.New("library: confirmer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Library{api: cfg.API, creds: cfg.Credentials, confirm: cfg.Confirmer, logger: cfg.Logger}, nil
}

func (l *Library) owner() (string, domain.UserProfile, error) {
	token, profile, ok := l.creds.Credential(domain.SlotPrimary)
	if !ok {
		return "", domain.UserProfile{}, ErrLoginRequired
	}
	return token, profile, nil
}

// Books returns the list loaded by the last MyBooks call.
func (l *Library) Books() []domain.Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Book, len(l.books))
	copy(out, l.books)
	return out
}

// MyBooks loads the owner's books. A failure keeps the cached list.
func (l *Library) MyBooks(ctx context.Context) ([]domain.Book, error) {
	token, profile, err := l.owner()
	if err != nil {
		return nil, err
	}
	books, err := l.api.UserBooks(ctx, token)
	if err != nil {
		l.logger.Warn("load own books failed", "user_id", profile.ID, "err", err)
		return nil, err
	}
	l.mu.Lock()
	l.books = books
	l.mu.Unlock()
	return l.Books(), nil
}

// Delete asks for confirmation and deletes the book. deleted is false when
// the user declined; no request is made then.
func (l *Library) Delete(ctx context.Context, id string) (deleted bool, err error) {
	token, profile, err := l.owner()
	if err != nil {
		return false, err
	}
	ok, err := l.confirm.Confirm(ctx, mutation.Prompt{
		Title:        "Delete Book",
		Message:      "Are you sure you want to delete this record? This action cannot be undone.",
		ConfirmLabel: "Delete",
	})
	if err != nil || !ok {
		return false, err
	}
	if err := l.api.DeleteBook(ctx, token, id); err != nil {
		l.logger.Warn("delete book failed", "user_id", profile.ID, "book_id", id, "err", err)
		return false, err
	}

	l.mu.Lock()
	kept := l.books[:0:0]
	for _, b := range l.books {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	l.books = kept
	l.mu.Unlock()
	l.logger.Info("book deleted", "user_id", profile.ID, "book_id", id)
	return true, nil
}

// Draft is the owner's input for a new or edited book. Image and File are
// local paths, or URLs of files the server already has.
type Draft struct {
	Title       string
	Caption     string
	Description string
	Rating      int
	Image       string
	File        string
}

type createInput struct {
	Title   string `validate:"required"`
	Caption string `validate:"required"`
	Image   string `validate:"required"`
	Rating  int    `validate:"required,gte=1,lte=5"`
}

type updateInput struct {
	Title       string `validate:"required"`
	Description string `validate:"required"`
	Image       string `validate:"required"`
	Rating      int    `validate:"required,gte=1,lte=5"`
	File        string `validate:"required"`
}

func (d Draft) trimmed() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Caption = strings.TrimSpace(d.Caption)
	d.Description = strings.TrimSpace(d.Description)
	d.Image = strings.TrimSpace(d.Image)
	d.File = strings.TrimSpace(d.File)
	return d
}

// Create posts a new book. The image is always uploaded.
func (l *Library) Create(ctx context.Context, d Draft) error {
	d = d.trimmed()
	if err := apiclient.Validate(createInput{Title: d.Title, Caption: d.Caption, Image: d.Image, Rating: d.Rating}); err != nil {
		return err
	}
	if IsRemote(d.Image) {
		return &apiclient.ValidationError{Field: "Image", Message: "Please choose an image from your device"}
	}
	token, profile, err := l.owner()
	if err != nil {
		return err
	}
	image, err := loadImage(d.Image)
	if err != nil {
		return err
	}
	form := apiclient.BookForm{Title: d.Title, Caption: d.Caption, Rating: d.Rating, Image: image}
	if err := l.api.CreateBook(ctx, token, form); err != nil {
		l.logger.Warn("create book failed", "user_id", profile.ID, "err", err)
		return err
	}
	l.logger.Info("book created", "user_id", profile.ID, "title", d.Title)
	return nil
}

// Update replaces a book's fields. Image and file URLs are left in place on
// the server; local paths are uploaded.
func (l *Library) Update(ctx context.Context, id string, d Draft) error {
	d = d.trimmed()
	in := updateInput{Title: d.Title, Description: d.Description, Image: d.Image, Rating: d.Rating, File: d.File}
	if err := apiclient.Validate(in); err != nil {
		return err
	}
	token, profile, err := l.owner()
	if err != nil {
		return err
	}

	form := apiclient.BookForm{Title: d.Title, Description: d.Description, Rating: d.Rating}
	if !IsRemote(d.Image) {
		if form.Image, err = loadImage(d.Image); err != nil {
			return err
		}
	}
	if !IsRemote(d.File) {
		var pages int
		if form.FileBook, pages, err = loadBookFile(d.File); err != nil {
			return err
		}
		l.logger.Debug("book file checked", "book_id", id, "pages", pages)
	}
	if err := l.api.UpdateBook(ctx, token, id, form); err != nil {
		l.logger.Warn("update book failed", "user_id", profile.ID, "book_id", id, "err", err)
		return err
	}
	l.logger.Info("book updated", "user_id", profile.ID, "book_id", id)
	return nil
}

type profileInput struct {
	Username string `validate:"required"`
}

// UpdateProfile renames the owner. The stored session keeps the old name
// until the next login.
func (l *Library) UpdateProfile(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if err := apiclient.Validate(profileInput{Username: username}); err != nil {
		return err
	}
	token, profile, err := l.owner()
	if err != nil {
		return err
	}
	if err := l.api.UpdateProfile(ctx, token, profile.ID, username); err != nil {
		l.logger.Warn("update profile failed", "user_id", profile.ID, "err", err)
		return err
	}
	l.logger.Info("profile updated", "user_id", profile.ID)
	return nil
}
