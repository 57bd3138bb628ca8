// Package feed keeps a paged, de-duplicated list of books in sync with the API.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"bookshare/pkg/domain"
)

const (
	DefaultLimit      = 2
	DefaultMinRefresh = 800 * time.Millisecond
)

var (
	// ErrSuperseded is returned by a load whose result was discarded because a newer reset started.
	ErrSuperseded = errors.New("feed: superseded by a newer load")
	// ErrInFlight is returned by LoadPage for a later page while another one is being fetched.
	ErrInFlight = errors.New("feed: a page fetch is already in flight")
)

// FailurePolicy decides what happens to the list when a fetch fails.
type FailurePolicy int

const (
	// FailClosed empties the list, as the public feed does.
	FailClosed FailurePolicy = iota
	// FailOpen keeps the list as it was, as the owner feed does.
	FailOpen
)

func (p FailurePolicy) String() string {
	if p == FailOpen {
		return "open"
	}
	return "closed"
}

// Config configures a Paginator.
type Config struct {
	Source  Source
	Limit   int
	Failure FailurePolicy
	// MinRefresh is the minimum time Refreshing stays true for a pull-to-refresh.
	MinRefresh time.Duration
	Logger     *slog.Logger
}

// State is a copy of the paginator's observable state.
type State struct {
	Items []domain.Book
	// Page is the last page loaded successfully, 0 before the first load.
	Page    int
	HasMore bool
	Query   string
	// Loading is true while a first-page load is in flight.
	Loading bool
	// Refreshing is true while a refresh runs, including its minimum display time.
	Refreshing  bool
	LoadingMore bool
}

// Paginator accumulates pages of a Source. Items stay unique by ID in
// first-seen order. A first-page load or refresh supersedes every load
// started before it: older fetches are canceled and their results dropped.
type Paginator struct {
	source     Source
	limit      int
	failure    FailurePolicy
	minRefresh time.Duration
	logger     *slog.Logger

	mu          sync.Mutex
	books       *orderedBooks
	page        int
	hasMore     bool
	query       string
	generation  uint64
	resets      int
	refreshes   int
	loadingMore bool
	cancelReset context.CancelFunc
	cancelMore  context.CancelFunc
}

// New creates an empty paginator.
func New(cfg Config) (*Paginator, error) {
	if cfg.Source == nil {
		return nil, errors.New("feed: source is required")
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.MinRefresh < 0 {
		cfg.MinRefresh = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Paginator{
		source:     cfg.Source,
		limit:      cfg.Limit,
		failure:    cfg.Failure,
		minRefresh: cfg.MinRefresh,
		logger:     cfg.Logger,
		books:      newOrderedBooks(cfg.Limit),
	}, nil
}

// Snapshot returns a copy of the current state.
func (p *Paginator) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Items:       p.books.snapshot(),
		Page:        p.page,
		HasMore:     p.hasMore,
		Query:       p.query,
		Loading:     p.resets > 0,
		Refreshing:  p.refreshes > 0,
		LoadingMore: p.loadingMore,
	}
}

// LoadPage fetches page for the current query. Page 1, or any page when
// refresh is set, replaces the list; later pages merge into it.
func (p *Paginator) LoadPage(ctx context.Context, page int, refresh bool) error {
	p.mu.Lock()
	query := p.query
	if refresh || page <= 1 {
		p.mu.Unlock()
		return p.reset(ctx, query, refresh)
	}
	if p.loadingMore {
		p.mu.Unlock()
		return ErrInFlight
	}
	f := p.admitMoreLocked(ctx, query, page)
	p.mu.Unlock()
	return p.more(ctx, f)
}

// LoadMore fetches the next page when there is one and nothing else is
// loading. issued reports whether a fetch was made; concurrent triggers
// collapse into one fetch.
func (p *Paginator) LoadMore(ctx context.Context) (issued bool, err error) {
	p.mu.Lock()
	if !p.hasMore || p.loadingMore || p.resets > 0 || p.refreshes > 0 {
		p.mu.Unlock()
		return false, nil
	}
	f := p.admitMoreLocked(ctx, p.query, p.page+1)
	p.mu.Unlock()
	return true, p.more(ctx, f)
}

// Search switches to query and loads its first page. An empty query returns to the plain listing.
func (p *Paginator) Search(ctx context.Context, query string) error {
	p.mu.Lock()
	p.query = query
	p.page = 1
	p.mu.Unlock()
	return p.reset(ctx, query, false)
}

// Refresh reloads the first page of the current query.
func (p *Paginator) Refresh(ctx context.Context) error {
	p.mu.Lock()
	query := p.query
	p.mu.Unlock()
	return p.reset(ctx, query, true)
}

func (p *Paginator) reset(ctx context.Context, query string, refresh bool) error {
	started := time.Now()
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	p.generation++
	gen := p.generation
	if p.cancelReset != nil {
		p.cancelReset()
	}
	if p.cancelMore != nil {
		p.cancelMore()
	}
	p.cancelReset = cancel
	p.resets++
	if refresh {
		p.refreshes++
	}
	p.mu.Unlock()

	result, err := p.source.FetchPage(fetchCtx, query, 1, p.limit)

	p.mu.Lock()
	p.resets--
	if gen == p.generation {
		p.cancelReset = nil
	}
	err = p.applyLocked(ctx, gen, 1, query, true, result, err)
	p.mu.Unlock()

	if refresh {
		p.holdRefresh(ctx, started)
		p.mu.Lock()
		p.refreshes--
		p.mu.Unlock()
	}
	return err
}

// moreFetch is a later-page fetch admitted under p.mu. It is bound to the
// generation current at admission, so a reset that starts before the fetch
// runs still cancels it and drops its result.
type moreFetch struct {
	ctx    context.Context
	cancel context.CancelFunc
	gen    uint64
	query  string
	page   int
}

func (p *Paginator) admitMoreLocked(ctx context.Context, query string, page int) moreFetch {
	fetchCtx, cancel := context.WithCancel(ctx)
	p.loadingMore = true
	p.cancelMore = cancel
	return moreFetch{ctx: fetchCtx, cancel: cancel, gen: p.generation, query: query, page: page}
}

func (p *Paginator) more(ctx context.Context, f moreFetch) error {
	defer f.cancel()

	result, err := p.source.FetchPage(f.ctx, f.query, f.page, p.limit)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadingMore = false
	p.cancelMore = nil
	return p.applyLocked(ctx, f.gen, f.page, f.query, false, result, err)
}

func (p *Paginator) applyLocked(ctx context.Context, gen uint64, page int, query string, replace bool, result domain.BookPage, err error) error {
	if gen != p.generation {
		p.logger.Debug("feed page dropped", "page", page, "query", query, "err", err)
		return ErrSuperseded
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.logger.Warn("feed page failed", "page", page, "query", query, "policy", p.failure.String(), "err", err)
		if p.failure == FailClosed {
			p.books.clear()
		}
		return err
	}

	added := len(result.Books)
	if replace {
		p.books.replace(result.Books)
	} else {
		added = p.books.merge(result.Books)
	}
	p.page = page
	p.hasMore = page < result.TotalPages
	p.logger.Debug("feed page loaded", "page", page, "query", query, "added", added, "total_pages", result.TotalPages, "items", p.books.len())
	return nil
}

// holdRefresh waits out the rest of the minimum refresh display time.
func (p *Paginator) holdRefresh(ctx context.Context, started time.Time) {
	remaining := p.minRefresh - time.Since(started)
	if remaining <= 0 {
		return
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
