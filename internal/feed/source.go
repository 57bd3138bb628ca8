package feed

import (
	"context"
	"strings"

	"bookshare/internal/apiclient"
	"bookshare/pkg/domain"
)

// Source fetches one page of books. An empty query means the plain listing.
type Source interface {
	FetchPage(ctx context.Context, query string, page, limit int) (domain.BookPage, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, query string, page, limit int) (domain.BookPage, error)

func (f SourceFunc) FetchPage(ctx context.Context, query string, page, limit int) (domain.BookPage, error) {
	return f(ctx, query, page, limit)
}

// PublicAPI is the part of the API client used by the unauthenticated feed.
type PublicAPI interface {
	ListPublicBooks(ctx context.Context, page, limit int) (domain.BookPage, error)
	SearchBooks(ctx context.Context, keyword string, page, limit int) (domain.BookPage, error)
}

// OwnerAPI is the part of the API client used by the owner feed.
type OwnerAPI interface {
	ListBooks(ctx context.Context, token string, page, limit int) (domain.BookPage, error)
	SearchBooks(ctx context.Context, keyword string, page, limit int) (domain.BookPage, error)
}

// Credentials yields the bearer token of a signed-in slot.
type Credentials interface {
	Credential(slot domain.Slot) (string, domain.UserProfile, bool)
}

// PublicSource routes to /client/books or, with a query, /client/search.
type PublicSource struct {
	API PublicAPI
}

func (s PublicSource) FetchPage(ctx context.Context, query string, page, limit int) (domain.BookPage, error) {
	if q := strings.TrimSpace(query); q != "" {
		return s.API.SearchBooks(ctx, q, page, limit)
	}
	return s.API.ListPublicBooks(ctx, page, limit)
}

// OwnerSource lists the owner feed with the primary identity's bearer.
// Searches go to the public search endpoint.
type OwnerSource struct {
	API      OwnerAPI
	Sessions Credentials
}

func (s OwnerSource) FetchPage(ctx context.Context, query string, page, limit int) (domain.BookPage, error) {
	if q := strings.TrimSpace(query); q != "" {
		return s.API.SearchBooks(ctx, q, page, limit)
	}
	token, _, ok := s.Sessions.Credential(domain.SlotPrimary)
	if !ok {
		return domain.BookPage{}, apiclient.ErrLoginRequired
	}
	return s.API.ListBooks(ctx, token, page, limit)
}
