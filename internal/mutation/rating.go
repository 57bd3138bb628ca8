package mutation

import (
	"context"
	"fmt"
	"sync"

	"bookshare/internal/apiclient"
	"bookshare/pkg/domain"
)

// MaxStars is the highest rating a client can give.
const MaxStars = 5

// Outcome says how far a Rate call got.
type Outcome int

const (
	// OutcomeRejected means nothing was shown or sent: login required or an invalid value.
	OutcomeRejected Outcome = iota
	// OutcomeCanceled means the user declined the prompt and the local rating was cleared.
	OutcomeCanceled
	// OutcomeSubmitted means the server accepted the rating.
	OutcomeSubmitted
	// OutcomeFailed means the submission failed. The local rating is kept.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCanceled:
		return "canceled"
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeFailed:
		return "failed"
	default:
		return "rejected"
	}
}

// RatingState is a copy of a book's rating display state.
type RatingState struct {
	Average float64
	Count   int
	// UserRating is the client's local choice, 0 when there is none.
	UserRating int
}

// Rating holds the rating display of one book.
type Rating struct {
	svc    *Service
	bookID string

	mu    sync.Mutex
	state RatingState
}

// Rating returns the rating state of bookID, seeded with the server average if known.
func (s *Service) Rating(bookID string, average float64, count int) *Rating {
	return &Rating{svc: s, bookID: bookID, state: RatingState{Average: average, Count: count}}
}

// Snapshot returns a copy of the state.
func (r *Rating) Snapshot() RatingState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Load fetches the book detail and takes the server's average and count.
// The local rating is dropped.
func (r *Rating) Load(ctx context.Context) (domain.Book, error) {
	book, err := r.svc.api.BookDetail(ctx, r.bookID)
	if err != nil {
		r.svc.logger.Warn("load book detail failed", "book_id", r.bookID, "err", err)
		return domain.Book{}, err
	}
	r.mu.Lock()
	r.state = RatingState{Average: book.AvgRating, Count: book.RatingCount}
	r.mu.Unlock()
	return book, nil
}

type rateInput struct {
	Value int `validate:"gte=1,lte=5"`
}

// Rate shows value locally, asks the user to confirm and submits it.
// A declined prompt clears the local rating without a request. A failed
// submission keeps the local rating until the next Load.
func (r *Rating) Rate(ctx context.Context, value int) (Outcome, error) {
	token, profile, err := r.svc.client()
	if err != nil {
		return OutcomeRejected, err
	}
	if err := apiclient.Validate(rateInput{Value: value}); err != nil {
		return OutcomeRejected, err
	}

	r.setUserRating(value)
	ok, err := r.svc.confirm.Confirm(ctx, Prompt{
		Title:        "Rate this book",
		Message:      fmt.Sprintf("Give this book %d of %d stars?", value, MaxStars),
		ConfirmLabel: "Submit",
	})
	if err != nil || !ok {
		r.setUserRating(0)
		return OutcomeCanceled, err
	}

	if err := r.svc.api.SubmitRating(ctx, token, r.bookID, value); err != nil {
		r.svc.logger.Warn("submit rating failed", "book_id", r.bookID, "client_id", profile.ID, "value", value, "err", err)
		return OutcomeFailed, err
	}
	r.svc.logger.Info("rating submitted", "book_id", r.bookID, "client_id", profile.ID, "value", value)
	return OutcomeSubmitted, nil
}

func (r *Rating) setUserRating(v int) {
	r.mu.Lock()
	r.state.UserRating = v
	r.mu.Unlock()
}

// Display is the value to render: the local rating if set, else the server average.
func (r *Rating) Display() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.UserRating > 0 {
		return float64(r.state.UserRating)
	}
	return r.state.Average
}

// Stars returns the fill of each of n stars for the displayed value, each in [0, 1].
func (r *Rating) Stars(n int) []float64 {
	return StarFill(r.Display(), n)
}

// StarFill splits value over n stars.
func StarFill(value float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	fills := make([]float64, n)
	for i := range fills {
		fills[i] = min(max(value-float64(i), 0), 1)
	}
	return fills
}
