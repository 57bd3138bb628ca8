package domain

import "time"

// Slot names one of the two identities that can be signed in at the same time.
type Slot string

const (
	SlotPrimary Slot = "primary"
	SlotClient  Slot = "client"
)

// Slots lists every identity slot in a stable order.
var Slots = []Slot{SlotPrimary, SlotClient}

func (s Slot) Valid() bool {
	return s == SlotPrimary || s == SlotClient
}

type UserProfile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	ProfileImage string    `json:"profileImage"`
	CreatedAt    time.Time `json:"createdAt"`
}

type BookOwner struct {
	ID           string `json:"_id"`
	Username     string `json:"username"`
	ProfileImage string `json:"profileImage"`
}

type Book struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Caption     string    `json:"caption,omitempty"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image"`
	FileBook    string    `json:"fileBook,omitempty"`
	Rating      int       `json:"rating"`
	AvgRating   float64   `json:"avgRating"`
	RatingCount int       `json:"ratingCount"`
	User        BookOwner `json:"user"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BookPage is one page of a paginated book listing.
type BookPage struct {
	Books      []Book `json:"books"`
	TotalPages int    `json:"totalPages"`
}
