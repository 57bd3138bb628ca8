package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"bookshare/pkg/domain"
)

const fetchBooksFailed = "Failed to fetch books!"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type pageResponse struct {
	Books      *[]domain.Book `json:"books"`
	TotalPages *int           `json:"totalPages"`
}

func (r pageResponse) page(endpoint string) (domain.BookPage, error) {
	if r.Books == nil {
		return domain.BookPage{}, malformed(endpoint, "missing books")
	}
	if r.TotalPages == nil || *r.TotalPages < 0 {
		return domain.BookPage{}, malformed(endpoint, "missing or negative totalPages")
	}
	if err := checkIDs(endpoint, *r.Books); err != nil {
		return domain.BookPage{}, err
	}
	return domain.BookPage{Books: *r.Books, TotalPages: *r.TotalPages}, nil
}

func checkIDs(endpoint string, books []domain.Book) error {
	for i, b := range books {
		if strings.TrimSpace(b.ID) == "" {
			return malformed(endpoint, "book %d has no _id", i)
		}
	}
	return nil
}

// ListBooks returns a page of the owner feed.
func (c *Client) ListBooks(ctx context.Context, token string, page, limit int) (domain.BookPage, error) {
	return c.getPage(ctx, "/books", token, pageQuery(page, limit))
}

// ListPublicBooks returns a page of the public feed.
func (c *Client) ListPublicBooks(ctx context.Context, page, limit int) (domain.BookPage, error) {
	return c.getPage(ctx, "/client/books", "", pageQuery(page, limit))
}

// SearchBooks returns a page of books matching keyword.
func (c *Client) SearchBooks(ctx context.Context, keyword string, page, limit int) (domain.BookPage, error) {
	q := pageQuery(page, limit)
	q.Set("inputKeyword", keyword)
	return c.getPage(ctx, "/client/search", "", q)
}

func (c *Client) getPage(ctx context.Context, path, token string, q url.Values) (domain.BookPage, error) {
	var resp pageResponse
	if err := c.doJSON(ctx, http.MethodGet, path+"?"+q.Encode(), token, nil, fetchBooksFailed, &resp); err != nil {
		return domain.BookPage{}, err
	}
	return resp.page(path)
}

// UserBooks returns every book posted by the signed-in owner.
func (c *Client) UserBooks(ctx context.Context, token string) ([]domain.Book, error) {
	const path = "/books/user"
	var resp pageResponse
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, "Failed to fetch user books", &resp); err != nil {
		return nil, err
	}
	if resp.Books == nil {
		return nil, malformed(path, "missing books")
	}
	if err := checkIDs(path, *resp.Books); err != nil {
		return nil, err
	}
	return *resp.Books, nil
}

// BookDetail fetches one book with its rating aggregate.
func (c *Client) BookDetail(ctx context.Context, id string) (domain.Book, error) {
	path := "/client/books/detail/" + url.PathEscape(id)
	var resp struct {
		BookDetail *domain.Book `json:"bookDetail"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, "", nil, "Failed to fetch detailed book!", &resp); err != nil {
		return domain.Book{}, err
	}
	if resp.BookDetail == nil || strings.TrimSpace(resp.BookDetail.ID) == "" {
		return domain.Book{}, malformed(path, "missing bookDetail")
	}
	return *resp.BookDetail, nil
}

// DeleteBook removes one of the owner's books.
func (c *Client) DeleteBook(ctx context.Context, token, id string) error {
	path := "/books/" + url.PathEscape(id)
	return c.doJSON(ctx, http.MethodDelete, path, token, nil, "Failed to delete book", nil)
}

// Upload is a file part of a multipart form.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// BookForm is the multipart body for creating or editing a book.
// Nil uploads are omitted, which keeps the file already stored on the server.
type BookForm struct {
	Title       string
	Caption     string
	Description string
	Rating      int
	Image       *Upload
	FileBook    *Upload
}

// CreateBook posts a new book.
func (c *Client) CreateBook(ctx context.Context, token string, form BookForm) error {
	return c.sendBook(ctx, http.MethodPost, "/books", token, form)
}

// UpdateBook replaces a book's fields.
func (c *Client) UpdateBook(ctx context.Context, token, id string, form BookForm) error {
	return c.sendBook(ctx, http.MethodPut, "/books/"+url.PathEscape(id), token, form)
}

func (c *Client) sendBook(ctx context.Context, method, path, token string, form BookForm) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fields := []struct{ name, value string }{
		{"title", form.Title},
		{"caption", form.Caption},
		{"description", form.Description},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := writer.WriteField(f.name, f.value); err != nil {
			return err
		}
	}
	if err := writer.WriteField("rating", strconv.Itoa(form.Rating)); err != nil {
		return err
	}
	if err := writeUpload(writer, "image", form.Image); err != nil {
		return err
	}
	if err := writeUpload(writer, "fileBook", form.FileBook); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	addAuthHeader(req, token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req, GenericMessage, nil)
}

func writeUpload(w *multipart.Writer, field string, up *Upload) error {
	if up == nil {
		return nil
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, quoteEscaper.Replace(up.Name)))
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, up.Body)
	return err
}
