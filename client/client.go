// Package client talks to the forum HTTP API. A Client with a session token
// satisfies autosave.Saver.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"forum/models"
)

// ErrNoSession is returned by calls that need a token before one is set.
var ErrNoSession = errors.New("client: not logged in")

// APIError is a non-2xx response. Message is the server's envelope message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err means the session is missing or expired.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithToken(token string) Option { return func(c *Client) { c.token = token } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// do sends body as JSON and decodes the envelope's data into out when out is
// not nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := c.Token()
		if token == "" {
			return ErrNoSession
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenData struct {
	Token string `json:"token"`
}

// Register creates an account and keeps the returned session token.
func (c *Client) Register(ctx context.Context, email, password string) error {
	var data tokenData
	if err := c.do(ctx, http.MethodPost, "/user/add", nil, credentials{email, password}, &data, false); err != nil {
		return err
	}
	c.SetToken(data.Token)
	return nil
}

// Login starts a session and keeps the token.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var data tokenData
	if err := c.do(ctx, http.MethodPost, "/user/session", nil, credentials{email, password}, &data, false); err != nil {
		return err
	}
	c.SetToken(data.Token)
	return nil
}

// Verify checks that the current token is still accepted.
func (c *Client) Verify(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/user/session/verify", nil, nil, nil, true)
}

type draftBody struct {
	DraftID string   `json:"draftId,omitempty"`
	Title   string   `json:"title"`
	Tags    []string `json:"tags"`
	Text    string   `json:"text"`
	HTML    string   `json:"html"`
	Private bool     `json:"private"`
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// SaveDraft creates or overwrites a draft and returns its id.
func (c *Client) SaveDraft(ctx context.Context, draftID string, f models.DraftFields) (string, error) {
	var data struct {
		DraftID string `json:"draftId"`
	}
	err := c.do(ctx, http.MethodPost, "/draft/save", nil, draftBody{
		DraftID: draftID,
		Title:   f.Title,
		Tags:    tagsOrEmpty(f.Tags),
		Text:    f.Text,
		HTML:    f.HTML,
		Private: f.Private,
	}, &data, true)
	if err != nil {
		return "", err
	}
	return data.DraftID, nil
}

func (c *Client) ListDrafts(ctx context.Context) ([]models.Draft, error) {
	drafts := []models.Draft{}
	if err := c.do(ctx, http.MethodGet, "/draft/list", nil, nil, &drafts, true); err != nil {
		return nil, err
	}
	return drafts, nil
}

func (c *Client) RemoveDraft(ctx context.Context, draftID string) error {
	return c.do(ctx, http.MethodDelete, "/draft/remove", url.Values{"id": {draftID}}, nil, nil, true)
}

// Publish submits the fields as a post. When draftID is set the server drops
// that draft afterwards.
func (c *Client) Publish(ctx context.Context, draftID string, f models.DraftFields) (string, error) {
	var data struct {
		PostID string `json:"postId"`
	}
	err := c.do(ctx, http.MethodPost, "/post/submit", nil, draftBody{
		DraftID: draftID,
		Title:   f.Title,
		Tags:    tagsOrEmpty(f.Tags),
		Text:    f.Text,
		HTML:    f.HTML,
		Private: f.Private,
	}, &data, true)
	if err != nil {
		return "", err
	}
	return data.PostID, nil
}
