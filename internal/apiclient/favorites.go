package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"bookshare/pkg/domain"
)

func favoritePath(bookID, clientID string) string {
	return "/client/favorites/" + url.PathEscape(bookID) + "/" + url.PathEscape(clientID)
}

// FavoriteExists reports whether bookID is in the client's favorites.
// The server answers {"isFavorite": bool}; older deployments use {"exists": bool}.
func (c *Client) FavoriteExists(ctx context.Context, token, bookID, clientID string) (bool, error) {
	path := favoritePath(bookID, clientID)
	var resp struct {
		IsFavorite *bool `json:"isFavorite"`
		Exists     *bool `json:"exists"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, "Failed to check favorite", &resp); err != nil {
		return false, err
	}
	switch {
	case resp.IsFavorite != nil:
		return *resp.IsFavorite, nil
	case resp.Exists != nil:
		return *resp.Exists, nil
	default:
		return false, malformed("/client/favorites", "missing isFavorite")
	}
}

// AddFavorite adds bookID to the client's favorites.
func (c *Client) AddFavorite(ctx context.Context, token, bookID, clientID string) error {
	payload := map[string]string{"clientId": clientID, "bookId": bookID}
	return c.doJSON(ctx, http.MethodPost, "/client/favorites", token, payload, "Failed to save favorite", nil)
}

// RemoveFavorite removes bookID from the client's favorites.
func (c *Client) RemoveFavorite(ctx context.Context, token, bookID, clientID string) error {
	return c.doJSON(ctx, http.MethodDelete, favoritePath(bookID, clientID), token, nil, "Failed to remove favorite", nil)
}

type favoriteEntry struct {
	ID   string       `json:"_id"`
	Book *domain.Book `json:"bookId"`
}

// ListFavorites returns the client's favorite books. Each entry of
// favoriteBooks carries the book populated under bookId.
func (c *Client) ListFavorites(ctx context.Context, token, clientID string) ([]domain.Book, error) {
	path := "/client/favorites/" + url.PathEscape(clientID)
	var resp struct {
		FavoriteBooks *[]favoriteEntry `json:"favoriteBooks"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, "Failed to fetch favorite books", &resp); err != nil {
		return nil, err
	}
	if resp.FavoriteBooks == nil {
		return nil, malformed("/client/favorites", "missing favoriteBooks")
	}
	books := make([]domain.Book, 0, len(*resp.FavoriteBooks))
	for i, entry := range *resp.FavoriteBooks {
		if entry.Book == nil {
			return nil, malformed("/client/favorites", "entry %d has no bookId", i)
		}
		books = append(books, *entry.Book)
	}
	if err := checkIDs("/client/favorites", books); err != nil {
		return nil, err
	}
	return books, nil
}

// SubmitRating records the client's star rating for bookID.
func (c *Client) SubmitRating(ctx context.Context, token, bookID string, value int) error {
	payload := struct {
		RatingValue int    `json:"ratingValue"`
		BookID      string `json:"bookId"`
	}{RatingValue: value, BookID: bookID}
	return c.doJSON(ctx, http.MethodPost, "/client/ratings", token, payload, "Failed to submit rating", nil)
}
