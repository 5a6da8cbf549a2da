package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Book mirrors the API's Book type.
type Book struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Error is a GraphQL error returned by the API.
type Error struct {
	Code      string
	Message   string
	Field     string
	Retryable bool
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client is a typed client for the book API.
type Client struct {
	endpoint string
	http     *http.Client
	session  *Session
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its transport is wrapped so
// tokens are still attached.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for endpoint (the /graphql URL) that authenticates with session.
func New(endpoint string, session *Session, log *zap.Logger, opts ...Option) *Client {
	c := &Client{endpoint: endpoint, http: &http.Client{Timeout: 15 * time.Second}, session: session}
	for _, opt := range opts {
		opt(c)
	}
	wrapped := *c.http
	wrapped.Transport = &Transport{Base: c.http.Transport, Session: session, Log: log}
	c.http = &wrapped
	return c
}

const (
	bookFields          = `id name description`
	codeUnauthenticated = "UNAUTHENTICATED"
)

func (c *Client) Books(ctx context.Context) ([]Book, error) {
	var out struct {
		Books []Book `json:"books"`
	}
	if err := c.do(ctx, `query Books { books { `+bookFields+` } }`, nil, &out); err != nil {
		return nil, err
	}
	return out.Books, nil
}

func (c *Client) CreateBook(ctx context.Context, name, description string) (Book, error) {
	var out struct {
		CreateBook Book `json:"createBook"`
	}
	err := c.do(ctx,
		`mutation CreateBook($input: CreateBookInput!) { createBook(input: $input) { `+bookFields+` } }`,
		map[string]any{"input": map[string]any{"name": name, "description": description}},
		&out)
	return out.CreateBook, err
}

func (c *Client) UpdateBook(ctx context.Context, id int64, name, description string) (Book, error) {
	var out struct {
		UpdateBook Book `json:"updateBook"`
	}
	err := c.do(ctx,
		`mutation UpdateBook($id: Int!, $input: UpdateBookInput!) { updateBook(id: $id, input: $input) { `+bookFields+` } }`,
		map[string]any{"id": id, "input": map[string]any{"name": name, "description": description}},
		&out)
	return out.UpdateBook, err
}

func (c *Client) DeleteBook(ctx context.Context, id int64) (Book, error) {
	var out struct {
		DeleteBook Book `json:"deleteBook"`
	}
	err := c.do(ctx,
		`mutation DeleteBook($id: Int!) { deleteBook(id: $id) { `+bookFields+` } }`,
		map[string]any{"id": id},
		&out)
	return out.DeleteBook, err
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message    string `json:"message"`
		Extensions struct {
			Code      string `json:"code"`
			Field     string `json:"field"`
			Retryable bool   `json:"retryable"`
		} `json:"extensions"`
	} `json:"errors"`
}

// do sends one operation. An UNAUTHENTICATED answer to an authenticated
// session drops the cached token and retries once with a fresh one.
func (c *Client) do(ctx context.Context, query string, vars map[string]any, out any) error {
	err := c.send(ctx, query, vars, out)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Code == codeUnauthenticated && c.session.Authenticated() {
		c.session.Invalidate()
		err = c.send(ctx, query, vars, out)
	}
	return err
}

func (c *Client) send(ctx context.Context, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var body gqlResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if len(body.Errors) > 0 {
		e := body.Errors[0]
		return &Error{
			Code:      e.Extensions.Code,
			Message:   e.Message,
			Field:     e.Extensions.Field,
			Retryable: e.Extensions.Retryable,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
