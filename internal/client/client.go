// Package client talks to the generation API over HTTP and provides the
// retry controller used by the studio CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "genstudio/internal/errors"
	"genstudio/internal/model"
)

const (
	defaultTimeout   = 30 * time.Second
	maxErrorBodySize = 64 << 10
)

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// GenerationRequest is one generation submission. Image is kept in memory so
// every attempt sends an identical body.
type GenerationRequest struct {
	Prompt    string
	Style     string
	ImageName string
	Image     []byte
}

// Client is an HTTP client for the generation API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent on authenticated calls.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Signup creates an account and keeps the returned token.
func (c *Client) Signup(ctx context.Context, email, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/signup", email, password)
}

// Login authenticates and keeps the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", email, password)
}

// Logout revokes the current token and forgets it.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/logout", nil, "")
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// CreateGeneration submits a single generation attempt. It never retries.
func (c *Client) CreateGeneration(ctx context.Context, in GenerationRequest) (*model.GenerationResult, error) {
	body, contentType, err := encodeGeneration(in)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/generations", body, contentType)
	if err != nil {
		return nil, err
	}

	var out model.GenerationResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListGenerations returns the caller's most recent generations.
func (c *Client) ListGenerations(ctx context.Context) ([]model.GenerationResult, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/generations", nil, "")
	if err != nil {
		return nil, err
	}

	out := []model.GenerationResult{}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (*AuthResponse, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do sends req and decodes a 2xx body into out. Error bodies are turned back
// into *errors.Error so callers can branch on Kind.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp apperrors.ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		_ = json.Unmarshal(data, &errResp)
		return apperrors.FromResponse(resp.StatusCode, errResp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func encodeGeneration(in GenerationRequest) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	if err := w.WriteField("prompt", in.Prompt); err != nil {
		return nil, "", fmt.Errorf("encode prompt: %w", err)
	}
	if err := w.WriteField("style", in.Style); err != nil {
		return nil, "", fmt.Errorf("encode style: %w", err)
	}
	if len(in.Image) > 0 {
		name := in.ImageName
		if name == "" {
			name = "image.png"
		}
		part, err := w.CreateFormFile("file", name)
		if err != nil {
			return nil, "", fmt.Errorf("encode file: %w", err)
		}
		if _, err := part.Write(in.Image); err != nil {
			return nil, "", fmt.Errorf("encode file: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode form: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}
