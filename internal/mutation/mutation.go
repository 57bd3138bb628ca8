// Package mutation applies the client identity's favorite and rating changes
// with local state that follows the server.
package mutation

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"bookshare/internal/apiclient"
	"bookshare/pkg/domain"
)

var (
	// ErrLoginRequired is returned, before any request, when no client identity is signed in.
	ErrLoginRequired = apiclient.ErrLoginRequired
	// ErrBusy is returned by Toggle while a previous toggle is being saved.
	ErrBusy = errors.New("mutation: save already in progress")
)

// Credentials yields the bearer token and profile of a signed-in slot.
type Credentials interface {
	Credential(slot domain.Slot) (string, domain.UserProfile, bool)
}

// API is the part of the API client used by favorites and ratings.
type API interface {
	FavoriteExists(ctx context.Context, token, bookID, clientID string) (bool, error)
	AddFavorite(ctx context.Context, token, bookID, clientID string) error
	RemoveFavorite(ctx context.Context, token, bookID, clientID string) error
	ListFavorites(ctx context.Context, token, clientID string) ([]domain.Book, error)
	BookDetail(ctx context.Context, id string) (domain.Book, error)
	SubmitRating(ctx context.Context, token, bookID string, value int) error
}

// Prompt is a yes/no question put to the user.
type Prompt struct {
	Title        string
	Message      string
	ConfirmLabel string
}

// Confirmer asks the user to confirm an action.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (bool, error) {
	return f(ctx, p)
}

// Config holds the collaborators of a Service.
type Config struct {
	API         API
	Credentials Credentials
	Confirmer   Confirmer
	Logger      *slog.Logger
}

// Service hands out per-book Favorite and Rating state.
type Service struct {
	api     API
	creds   Credentials
	confirm Confirmer
	logger  *slog.Logger
	checks  singleflight.Group
}

// New builds a Service.
func New(cfg Config) (*Service, error) {
	if cfg.API == nil {
		return nil, errors.New("mutation: api is required")
	}
	if cfg.Credentials == nil {
		return nil, errors.New("mutation: credentials are required")
	}
	if cfg.Confirmer == nil {
		return nil, errors.New("mutation: confirmer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		api:     cfg.API,
		creds:   cfg.Credentials,
		confirm: cfg.Confirmer,
		logger:  cfg.Logger,
	}, nil
}

func (s *Service) client() (string, domain.UserProfile, error) {
	token, profile, ok := s.creds.Credential(domain.SlotClient)
	if !ok {
		return "", domain.UserProfile{}, ErrLoginRequired
	}
	return token, profile, nil
}

// Favorites lists the signed-in client's favorite books.
func (s *Service) Favorites(ctx context.Context) ([]domain.Book, error) {
	token, profile, err := s.client()
	if err != nil {
		return nil, err
	}
	books, err := s.api.ListFavorites(ctx, token, profile.ID)
	if err != nil {
		s.logger.Warn("list favorites failed", "client_id", profile.ID, "err", err)
		return nil, err
	}
	return books, nil
}
