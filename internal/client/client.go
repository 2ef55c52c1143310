// Package client talks to the catalog HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"bookcatalog/internal/apperr"
	"bookcatalog/internal/query"
	"bookcatalog/internal/types"
)

// APIError is a non-2xx answer. It unwraps to the matching apperr sentinel, so callers can use
// errors.Is just like with the in-process services.
type APIError struct {
	Status   int
	Message  string
	Fields   map[string]string
	Redirect string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}

	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, k := range slices.Sorted(maps.Keys(e.Fields)) {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}

	if e.Redirect != "" {
		msg += ", go to " + e.Redirect
	}

	return msg
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnprocessableEntity:
		return apperr.ErrValidation
	case http.StatusConflict:
		return apperr.ErrConflict
	case http.StatusUnauthorized:
		if e.Redirect != "" {
			return apperr.ErrUnauthorized
		}
		return apperr.ErrInvalidCredentials
	case http.StatusForbidden:
		return apperr.ErrUnauthorized
	case http.StatusNotFound:
		return apperr.ErrNotFound
	default:
		return nil
	}
}

type Client struct {
	base *url.URL
	hc   *http.Client
}

// New accepts the server root (e.g. http://localhost:8080); the API lives under /api.
func New(server string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(server, "/") + "/api/")
	if err != nil {
		return nil, fmt.Errorf("parsing server address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server address must be an http or https URL, got %q", server)
	}

	if hc == nil {
		hc = http.DefaultClient
	}

	return &Client{base: u, hc: hc}, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	u := c.base.JoinPath(path)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if in != nil {
		bs, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	bs, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%s %s (reading response): %w", method, path, err)
	}

	if res.StatusCode >= 300 {
		apiErr := &APIError{Status: res.StatusCode}

		var eb struct {
			Error    string            `json:"error"`
			Fields   map[string]string `json:"fields"`
			Redirect string            `json:"redirect"`
		}
		if json.Unmarshal(bs, &eb) == nil {
			apiErr.Message = eb.Error
			apiErr.Fields = eb.Fields
			apiErr.Redirect = eb.Redirect
		}

		return apiErr
	}

	if out == nil || len(bs) == 0 {
		return nil
	}

	if err := json.Unmarshal(bs, out); err != nil {
		return fmt.Errorf("%s %s (decoding response): %w", method, path, err)
	}
	return nil
}

func (c *Client) ListBooks(ctx context.Context, spec query.Spec) ([]*types.Book, error) {
	q := url.Values{}
	if spec.Search != "" {
		q.Set("search", spec.Search)
	}
	if spec.Genre != "" {
		q.Set("genre", spec.Genre)
	}
	if spec.SortBy != query.SortNone {
		q.Set("sort", string(spec.SortBy))
	}
	if spec.Direction != "" {
		q.Set("order", string(spec.Direction))
	}

	var out struct {
		Books []*types.Book `json:"books"`
	}
	return out.Books, c.do(ctx, http.MethodGet, "books", q, nil, &out)
}

func (c *Client) Featured(ctx context.Context, limit int) ([]*types.Book, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out struct {
		Books []*types.Book `json:"books"`
	}
	return out.Books, c.do(ctx, http.MethodGet, "books/featured", q, nil, &out)
}

func (c *Client) Genres(ctx context.Context) ([]string, error) {
	var out struct {
		Genres []string `json:"genres"`
	}
	return out.Genres, c.do(ctx, http.MethodGet, "genres", nil, nil, &out)
}

func bookPath(id int64, suffix ...string) string {
	return strings.Join(append([]string{"books", strconv.FormatInt(id, 10)}, suffix...), "/")
}

func (c *Client) GetBook(ctx context.Context, id int64) (*types.Book, error) {
	var b types.Book
	if err := c.do(ctx, http.MethodGet, bookPath(id), nil, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) CreateBook(ctx context.Context, fields types.BookFields) (*types.Book, error) {
	var b types.Book
	if err := c.do(ctx, http.MethodPost, "books", nil, fields, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) UpdateBook(ctx context.Context, id int64, fields types.BookFields) (*types.Book, error) {
	var b types.Book
	if err := c.do(ctx, http.MethodPut, bookPath(id), nil, fields, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) DeleteBook(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, bookPath(id), nil, nil, nil)
}

func (c *Client) Purchase(ctx context.Context, id int64) (*types.User, error) {
	var u types.User
	if err := c.do(ctx, http.MethodPost, bookPath(id, "purchase"), nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) HasAccess(ctx context.Context, id int64) (bool, error) {
	var out struct {
		HasAccess bool `json:"hasAccess"`
	}
	err := c.do(ctx, http.MethodGet, bookPath(id, "access"), nil, nil, &out)
	return out.HasAccess, err
}

func (c *Client) Login(ctx context.Context, email, password string) (*types.User, error) {
	var u types.User
	err := c.do(ctx, http.MethodPost, "auth/login", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Register(ctx context.Context, reg types.Registration) (*types.User, error) {
	var u types.User
	if err := c.do(ctx, http.MethodPost, "auth/register", nil, reg, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "auth/logout", nil, nil, nil)
}

// Session mirrors the server's view of the session slot.
type Session struct {
	Authenticated bool        `json:"authenticated"`
	IsAuthor      bool        `json:"isAuthor"`
	TokenValid    bool        `json:"tokenValid"`
	User          *types.User `json:"user"`
}

func (c *Client) Session(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodGet, "auth/session", nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// RefreshSession reloads the bound identity on the server before reporting the session.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodGet, "auth/session", url.Values{"refresh": {"true"}}, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) UpdateProfile(ctx context.Context, upd types.ProfileUpdate) (*types.User, error) {
	var u types.User
	if err := c.do(ctx, http.MethodPatch, "auth/profile", nil, upd, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	return c.do(ctx, http.MethodPost, "auth/password", nil, map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	}, nil)
}

func (c *Client) GetUser(ctx context.Context, id int64) (*types.User, error) {
	var u types.User
	if err := c.do(ctx, http.MethodGet, "users/"+strconv.FormatInt(id, 10), nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

type themeBody struct {
	Theme types.Theme `json:"theme"`
}

func (c *Client) Theme(ctx context.Context) (types.Theme, error) {
	var out themeBody
	err := c.do(ctx, http.MethodGet, "theme", nil, nil, &out)
	return out.Theme, err
}

func (c *Client) SetTheme(ctx context.Context, t types.Theme) (types.Theme, error) {
	var out themeBody
	err := c.do(ctx, http.MethodPut, "theme", nil, themeBody{Theme: t}, &out)
	return out.Theme, err
}

func (c *Client) ToggleTheme(ctx context.Context) (types.Theme, error) {
	var out themeBody
	err := c.do(ctx, http.MethodPost, "theme/toggle", nil, nil, &out)
	return out.Theme, err
}
