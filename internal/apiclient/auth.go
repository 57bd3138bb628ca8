package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"bookshare/pkg/domain"
)

// Credentials is what a login or registration hands back.
type Credentials struct {
	Token string
	User  domain.UserProfile
}

type authResponse struct {
	User  *domain.UserProfile `json:"user"`
	Token string              `json:"token"`
}

func authPath(slot domain.Slot, action string) (string, error) {
	switch slot {
	case domain.SlotPrimary:
		return "/auth/" + action, nil
	case domain.SlotClient:
		return "/client/users/" + action, nil
	default:
		return "", fmt.Errorf("unknown identity slot %q", slot)
	}
}

// Register creates an account for the slot's identity and signs it in.
func (c *Client) Register(ctx context.Context, slot domain.Slot, username, email, password string) (Credentials, error) {
	path, err := authPath(slot, "register")
	if err != nil {
		return Credentials{}, err
	}
	payload := map[string]string{"username": username, "email": email, "password": password}
	return c.authenticate(ctx, path, payload)
}

// Login exchanges email and password for a bearer token.
func (c *Client) Login(ctx context.Context, slot domain.Slot, email, password string) (Credentials, error) {
	path, err := authPath(slot, "login")
	if err != nil {
		return Credentials{}, err
	}
	payload := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, path, payload)
}

func (c *Client) authenticate(ctx context.Context, path string, payload any) (Credentials, error) {
	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, path, "", payload, GenericMessage, &resp); err != nil {
		return Credentials{}, err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return Credentials{}, malformed(path, "missing token")
	}
	if resp.User == nil || strings.TrimSpace(resp.User.ID) == "" {
		return Credentials{}, malformed(path, "missing user")
	}
	return Credentials{Token: resp.Token, User: *resp.User}, nil
}

// UpdateProfile renames the signed-in owner account.
func (c *Client) UpdateProfile(ctx context.Context, token, userID, username string) error {
	path := "/accounts/" + url.PathEscape(userID)
	payload := map[string]string{"username": username}
	return c.doJSON(ctx, http.MethodPut, path, token, payload, GenericMessage, nil)
}
