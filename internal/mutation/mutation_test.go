package mutation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"bookshare/internal/apiclient"
	"bookshare/pkg/domain"
)

type fakeCredentials struct {
	mu       sync.Mutex
	signedIn bool
}

func (f *fakeCredentials) Credential(slot domain.Slot) (string, domain.UserProfile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if slot != domain.SlotClient || !f.signedIn {
		return "", domain.UserProfile{}, false
	}
	return "client-token", domain.UserProfile{ID: "c1", Username: "reader"}, true
}

// fakeBookAPI is an in-memory favorites and ratings backend.
type fakeBookAPI struct {
	mu         sync.Mutex
	requests   atomic.Int32
	favorites  map[string]bool
	failNext   bool
	checkGate  chan struct{}
	ratings    []int
	avg        float64
	count      int
	authHeader string
}

func newFakeBookAPI() *fakeBookAPI {
	return &fakeBookAPI{favorites: map[string]bool{}, avg: 3.5, count: 4}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeBookAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /client/favorites/{book}/{client}", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		f.mu.Lock()
		gate := f.checkGate
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}
		f.mu.Lock()
		saved := f.favorites[r.PathValue("book")]
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"isFavorite": saved})
	})
	mux.HandleFunc("POST /client/favorites", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		var body struct {
			ClientID string `json:"clientId"`
			BookID   string `json:"bookId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.authHeader = r.Header.Get("Authorization")
		if f.failNext {
			f.failNext = false
			writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Could not save"})
			return
		}
		f.favorites[body.BookID] = true
		writeJSON(w, http.StatusCreated, map[string]any{"message": "ok"})
	})
	mux.HandleFunc("DELETE /client/favorites/{book}/{client}", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failNext {
			f.failNext = false
			writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Could not remove"})
			return
		}
		delete(f.favorites, r.PathValue("book"))
		writeJSON(w, http.StatusOK, map[string]any{"message": "ok"})
	})
	mux.HandleFunc("GET /client/favorites/{client}", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		f.mu.Lock()
		defer f.mu.Unlock()
		entries := []map[string]any{}
		for id := range f.favorites {
			entries = append(entries, map[string]any{"_id": "f-" + id, "bookId": map[string]any{"_id": id, "title": "Book " + id}})
		}
		writeJSON(w, http.StatusOK, map[string]any{"favoriteBooks": entries})
	})
	mux.HandleFunc("GET /client/books/detail/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"bookDetail": map[string]any{
			"_id": r.PathValue("id"), "title": "Dune", "avgRating": f.avg, "ratingCount": f.count,
		}})
	})
	mux.HandleFunc("POST /client/ratings", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		var body struct {
			RatingValue int    `json:"ratingValue"`
			BookID      string `json:"bookId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failNext {
			f.failNext = false
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Rating rejected"})
			return
		}
		f.ratings = append(f.ratings, body.RatingValue)
		writeJSON(w, http.StatusCreated, map[string]any{"message": "ok"})
	})
	return mux
}

func (f *fakeBookAPI) setFailNext() {
	f.mu.Lock()
	f.failNext = true
	f.mu.Unlock()
}

type fixture struct {
	svc     *Service
	api     *fakeBookAPI
	creds   *fakeCredentials
	prompts []Prompt
	answer  bool
}

func newFixture(t *testing.T, signedIn bool) *fixture {
	t.Helper()
	fx := &fixture{api: newFakeBookAPI(), creds: &fakeCredentials{signedIn: signedIn}, answer: true}
	srv := httptest.NewServer(fx.api.handler())
	t.Cleanup(srv.Close)
	svc, err := New(Config{
		API:         apiclient.New(srv.URL),
		Credentials: fx.creds,
		Confirmer: ConfirmFunc(func(ctx context.Context, p Prompt) (bool, error) {
			fx.prompts = append(fx.prompts, p)
			return fx.answer, nil
		}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fx.svc = svc
	return fx
}

func TestToggleRequiresClientLogin(t *testing.T) {
	fx := newFixture(t, false)
	fav := fx.svc.Favorite("b1")

	saved, err := fav.Toggle(context.Background())
	if !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("expected ErrLoginRequired, got %v", err)
	}
	if saved || fav.State() != Unsaved {
		t.Fatalf("state changed without login: saved=%v state=%s", saved, fav.State())
	}
	if n := fx.api.requests.Load(); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
	if got := apiclient.UserMessage(err); got != "Please log in to continue" {
		t.Fatalf("unexpected user message %q", got)
	}
}

func TestToggleIsATrueToggle(t *testing.T) {
	fx := newFixture(t, true)
	fav := fx.svc.Favorite("b1")
	ctx := context.Background()

	if err := fav.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if fav.State() != Unsaved {
		t.Fatalf("expected unsaved, got %s", fav.State())
	}

	saved, err := fav.Toggle(ctx)
	if err != nil || !saved || fav.State() != Saved {
		t.Fatalf("first toggle: saved=%v state=%s err=%v", saved, fav.State(), err)
	}
	if fx.api.authHeader != "Bearer client-token" {
		t.Fatalf("unexpected auth header %q", fx.api.authHeader)
	}
	saved, err = fav.Toggle(ctx)
	if err != nil || saved || fav.State() != Unsaved {
		t.Fatalf("second toggle: saved=%v state=%s err=%v", saved, fav.State(), err)
	}
}

func TestFailedToggleKeepsPreviousValue(t *testing.T) {
	fx := newFixture(t, true)
	fav := fx.svc.Favorite("b1")
	ctx := context.Background()

	fx.api.setFailNext()
	saved, err := fav.Toggle(ctx)
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Could not save" {
		t.Fatalf("expected api error, got %v", err)
	}
	if saved || fav.State() != Unsaved {
		t.Fatalf("expected unsaved after failed add, got saved=%v state=%s", saved, fav.State())
	}

	if _, err := fav.Toggle(ctx); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	fx.api.setFailNext()
	saved, err = fav.Toggle(ctx)
	if err == nil || !saved || fav.State() != Saved {
		t.Fatalf("expected saved after failed remove, got saved=%v state=%s err=%v", saved, fav.State(), err)
	}
}

func TestSyncReadsServerMembership(t *testing.T) {
	fx := newFixture(t, true)
	gate := make(chan struct{})
	fx.api.mu.Lock()
	fx.api.favorites["b2"] = true
	fx.api.checkGate = gate
	fx.api.mu.Unlock()

	favs := []*Favorite{fx.svc.Favorite("b2"), fx.svc.Favorite("b2"), fx.svc.Favorite("b2")}
	var wg sync.WaitGroup
	errs := make(chan error, len(favs))
	for _, fav := range favs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- fav.Sync(context.Background())
		}()
	}
	for fx.api.requests.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	close(gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("sync: %v", err)
		}
	}
	for i, fav := range favs {
		if fav.State() != Saved {
			t.Fatalf("favorite %d: expected saved, got %s", i, fav.State())
		}
	}
	if n := fx.api.requests.Load(); n < 1 || n > 3 {
		t.Fatalf("unexpected request count %d", n)
	}
}

func TestSyncCancelDoesNotFailSharedCheck(t *testing.T) {
	fx := newFixture(t, true)
	gate := make(chan struct{})
	fx.api.mu.Lock()
	fx.api.favorites["b3"] = true
	fx.api.checkGate = gate
	fx.api.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	first := fx.svc.Favorite("b3")
	firstErr := make(chan error, 1)
	go func() { firstErr <- first.Sync(ctx) }()
	for fx.api.requests.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	second := fx.svc.Favorite("b3")
	secondErr := make(chan error, 1)
	go func() { secondErr <- second.Sync(context.Background()) }()
	time.Sleep(10 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the canceled caller to stop with context.Canceled, got %v", err)
	}
	close(gate)
	if err := <-secondErr; err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.State() != Saved {
		t.Fatalf("expected saved, got %s", second.State())
	}
}

func TestSyncSignedOutIsUnsaved(t *testing.T) {
	fx := newFixture(t, false)
	fav := fx.svc.Favorite("b1")
	if err := fav.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if fav.State() != Unsaved || fx.api.requests.Load() != 0 {
		t.Fatalf("expected unsaved without requests")
	}
}

func TestRateConfirmed(t *testing.T) {
	fx := newFixture(t, true)
	rating := fx.svc.Rating("b1", 0, 0)
	ctx := context.Background()

	if _, err := rating.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := rating.Display(); got != 3.5 {
		t.Fatalf("display = %v, want 3.5", got)
	}

	outcome, err := rating.Rate(ctx, 5)
	if err != nil || outcome != OutcomeSubmitted {
		t.Fatalf("rate: outcome=%s err=%v", outcome, err)
	}
	if len(fx.prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(fx.prompts))
	}
	if got := rating.Display(); got != 5 {
		t.Fatalf("display after rating = %v, want 5", got)
	}
	if diff := cmp.Diff([]float64{1, 1, 1, 1, 1}, rating.Stars(MaxStars)); diff != "" {
		t.Fatalf("stars mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{5}, fx.api.ratings); diff != "" {
		t.Fatalf("submitted ratings mismatch (-want +got):\n%s", diff)
	}

	if _, err := rating.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if diff := cmp.Diff(RatingState{Average: 3.5, Count: 4}, rating.Snapshot()); diff != "" {
		t.Fatalf("state after reload mismatch (-want +got):\n%s", diff)
	}
}

func TestRateCanceledSendsNothing(t *testing.T) {
	fx := newFixture(t, true)
	fx.answer = false
	rating := fx.svc.Rating("b1", 2.5, 2)

	outcome, err := rating.Rate(context.Background(), 4)
	if err != nil || outcome != OutcomeCanceled {
		t.Fatalf("rate: outcome=%s err=%v", outcome, err)
	}
	if rating.Display() != 2.5 || rating.Snapshot().UserRating != 0 {
		t.Fatalf("local rating should be cleared: %+v", rating.Snapshot())
	}
	if diff := cmp.Diff([]float64{1, 1, 0.5, 0, 0}, rating.Stars(MaxStars)); diff != "" {
		t.Fatalf("stars mismatch (-want +got):\n%s", diff)
	}
	if n := fx.api.requests.Load(); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestRateFailureKeepsLocalRating(t *testing.T) {
	fx := newFixture(t, true)
	fx.api.setFailNext()
	rating := fx.svc.Rating("b1", 2.5, 2)

	outcome, err := rating.Rate(context.Background(), 4)
	if outcome != OutcomeFailed || apiclient.UserMessage(err) != "Rating rejected" {
		t.Fatalf("rate: outcome=%s err=%v", outcome, err)
	}
	if rating.Display() != 4 {
		t.Fatalf("display = %v, want the local 4", rating.Display())
	}
}

func TestRateRejectsBeforePrompt(t *testing.T) {
	fx := newFixture(t, false)
	rating := fx.svc.Rating("b1", 1, 1)
	outcome, err := rating.Rate(context.Background(), 3)
	if outcome != OutcomeRejected || !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("signed out: outcome=%s err=%v", outcome, err)
	}

	fx.creds.signedIn = true
	outcome, err = rating.Rate(context.Background(), 6)
	var verr *apiclient.ValidationError
	if outcome != OutcomeRejected || !errors.As(err, &verr) || verr.Message != "Rating must be between 1 and 5" {
		t.Fatalf("out of range: outcome=%s err=%v", outcome, err)
	}
	if len(fx.prompts) != 0 || fx.api.requests.Load() != 0 {
		t.Fatalf("expected no prompt and no request")
	}
}

func TestStarFill(t *testing.T) {
	got := StarFill(3.5, 5)
	if diff := cmp.Diff([]float64{1, 1, 1, 0.5, 0}, got); diff != "" {
		t.Fatalf("fill mismatch (-want +got):\n%s", diff)
	}
	if StarFill(4, 0) != nil {
		t.Fatalf("expected nil for zero stars")
	}
}

func TestFavoritesList(t *testing.T) {
	fx := newFixture(t, true)
	fx.api.mu.Lock()
	fx.api.favorites["b7"] = true
	fx.api.mu.Unlock()
	books, err := fx.svc.Favorites(context.Background())
	if err != nil {
		t.Fatalf("favorites: %v", err)
	}
	if len(books) != 1 || books[0].ID != "b7" || books[0].Title != "Book b7" {
		t.Fatalf("unexpected favorites %+v", books)
	}

	fx.creds.signedIn = false
	if _, err := fx.svc.Favorites(context.Background()); !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("expected ErrLoginRequired, got %v", err)
	}
}
