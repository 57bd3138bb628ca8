package mutation

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// FavoriteState is the state of a book's favorite toggle.
type FavoriteState int

const (
	Unsaved FavoriteState = iota
	Saving
	Saved
)

func (s FavoriteState) String() string {
	switch s {
	case Saving:
		return "saving"
	case Saved:
		return "saved"
	default:
		return "unsaved"
	}
}

// Favorite tracks whether one book is in the client's favorites.
type Favorite struct {
	svc    *Service
	bookID string

	mu     sync.Mutex
	saved  bool
	saving bool
	// version changes on every committed toggle so a membership check that
	// started earlier does not overwrite it.
	version uint64
}

// Favorite returns the toggle state of bookID, initially unsaved.
func (s *Service) Favorite(bookID string) *Favorite {
	return &Favorite{svc: s, bookID: bookID}
}

// State returns the current state. Saving hides the committed value until the call ends.
func (f *Favorite) State() FavoriteState {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.saving:
		return Saving
	case f.saved:
		return Saved
	default:
		return Unsaved
	}
}

// Saved reports the last committed value.
func (f *Favorite) Saved() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved
}

// Sync loads membership from the server. Signed out, the book is simply unsaved.
// Concurrent checks for the same book and client share one request.
func (f *Favorite) Sync(ctx context.Context) error {
	token, profile, err := f.svc.client()
	if err != nil {
		f.mu.Lock()
		if !f.saving {
			f.saved = false
		}
		f.mu.Unlock()
		return nil
	}

	f.mu.Lock()
	version := f.version
	f.mu.Unlock()

	// The shared request is detached from any one caller; the API client's
	// timeout bounds it and each caller stops waiting when its own ctx ends.
	key := f.bookID + "/" + profile.ID
	ch := f.svc.checks.DoChan(key, func() (any, error) {
		return f.svc.api.FavoriteExists(context.WithoutCancel(ctx), token, f.bookID, profile.ID)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-ch:
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		f.svc.logger.Warn("favorite check failed", "book_id", f.bookID, "client_id", profile.ID, "err", err)
		return err
	}
	exists := v.(bool)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saving || f.version != version {
		return nil
	}
	f.saved = exists
	f.svc.logger.Debug("favorite synced", "book_id", f.bookID, "saved", exists, "shared", shared)
	return nil
}

// Toggle flips membership on the server and commits the new value once the
// server accepts it. On failure the previous value stays.
func (f *Favorite) Toggle(ctx context.Context) (bool, error) {
	token, profile, err := f.svc.client()
	if err != nil {
		return f.Saved(), err
	}

	f.mu.Lock()
	if f.saving {
		f.mu.Unlock()
		return f.saved, ErrBusy
	}
	was := f.saved
	f.saving = true
	f.mu.Unlock()

	if was {
		err = f.svc.api.RemoveFavorite(ctx, token, f.bookID, profile.ID)
	} else {
		err = f.svc.api.AddFavorite(ctx, token, f.bookID, profile.ID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.saving = false
	if err != nil {
		f.svc.logger.Warn("favorite toggle failed", "book_id", f.bookID, "client_id", profile.ID, "saved", was, "err", err)
		return f.saved, err
	}
	f.saved = !was
	f.version++
	f.svc.logger.Info("favorite toggled", "book_id", f.bookID, "client_id", profile.ID, "saved", f.saved)
	return f.saved, nil
}
