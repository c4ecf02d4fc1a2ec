// Package api provides the document server actions over the HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// Ensure Client implements the interfaces.
var (
	_ driven.DocumentActions = (*Client)(nil)
	_ driven.DocumentLister  = (*Client)(nil)
)

// DefaultTimeout bounds a request when the caller's context has no deadline.
const DefaultTimeout = 30 * time.Second

// Config holds configuration for the API client.
type Config struct {
	// BaseURL is the API base URL, e.g. http://localhost:8080.
	BaseURL string

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration
}

// Client calls the document endpoints with the current identity.
type Client struct {
	client   *http.Client
	baseURL  string
	identity driven.IdentityProvider
}

// errorResponse is the API's error body.
type errorResponse struct {
	Error string `json:"error"`
}

// NewClient creates a client. identity may be nil for anonymous access.
func NewClient(cfg Config, identity driven.IdentityProvider) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		client:   &http.Client{Timeout: cfg.Timeout},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		identity: identity,
	}
}

// ListDocuments returns the user's documents.
func (c *Client) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	if err := c.do(ctx, http.MethodGet, "/documents", nil, &docs); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// CreateDocument stores a new document and returns the canonical version.
func (c *Client) CreateDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
	var out domain.Document
	if err := c.do(ctx, http.MethodPost, "/documents", doc, &out); err != nil {
		return domain.Document{}, fmt.Errorf("create document: %w", err)
	}
	return out, nil
}

// UpdateDocument replaces a document and returns the canonical version.
func (c *Client) UpdateDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
	var out domain.Document
	if err := c.do(ctx, http.MethodPatch, "/documents/"+url.PathEscape(doc.ID), doc, &out); err != nil {
		return domain.Document{}, fmt.Errorf("update document %s: %w", doc.ID, err)
	}
	return out, nil
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.identity != nil {
		id, err := c.identity.Identity(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrIdentityUnavailable, err)
		}
		req.Header.Set("Authorization", "Bearer "+id.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrServerAction, err)
	}
	return nil
}

// statusError maps an error response onto the domain sentinels.
func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(data))
	var er errorResponse
	if json.Unmarshal(data, &er) == nil && er.Error != "" {
		msg = er.Error
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case http.StatusConflict:
		sentinel = domain.ErrAlreadyExists
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = domain.ErrInvalidInput
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = domain.ErrIdentityUnavailable
	default:
		sentinel = domain.ErrServerAction
	}
	if msg == "" {
		return fmt.Errorf("%w: status %d", sentinel, resp.StatusCode)
	}
	return fmt.Errorf("%w: status %d: %s", sentinel, resp.StatusCode, msg)
}
