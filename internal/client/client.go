// Package client is a GraphQL client for the meeting scheduler API with a
// normalized entity cache.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TokenSource supplies the bearer token for each request. An empty token
// means the request goes out without an Authorization header.
type TokenSource interface {
	Token() string
}

type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// authTransport attaches the bearer token to every outgoing request.
type authTransport struct {
	base   http.RoundTripper
	tokens TokenSource
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok := ""
	if t.tokens != nil {
		tok = t.tokens.Token()
	}
	if tok == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+tok)
	return t.base.RoundTrip(r)
}

// FetchPolicy decides whether single-entity reads may be answered from the
// cache. Lists and mutations always go to the server.
type FetchPolicy int

const (
	CacheFirst FetchPolicy = iota
	NetworkOnly
)

type Client struct {
	endpoint string
	hc       *http.Client
	cache    *Cache
	policy   FetchPolicy
}

type Option func(*Client)

func WithFetchPolicy(p FetchPolicy) Option { return func(c *Client) { c.policy = p } }

// WithHTTPClient uses hc's transport and timeout. The token is still injected.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.hc = &cp
	}
}

func WithCache(cache *Cache) Option { return func(c *Client) { c.cache = cache } }

func New(endpoint string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		hc:       &http.Client{Timeout: 30 * time.Second},
		cache:    NewCache(),
	}
	for _, o := range opts {
		o(c)
	}
	base := c.hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.hc.Transport = &authTransport{base: base, tokens: tokens}
	return c
}

func (c *Client) Cache() *Cache { return c.cache }

// cached fills out from the cache when the policy allows it and the entity
// carries every field the query would have asked for.
func (c *Client) cached(typename, id string, fields []string, out any) bool {
	if c.policy != CacheFirst || c.cache == nil {
		return false
	}
	ok, err := c.cache.Lookup(typename, id, fields, out)
	return ok && err == nil
}

// GraphQLError is one entry of a response's errors list.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Code() string {
	code, _ := e.Extensions["code"].(string)
	return code
}

// ResponseError is returned when the server answered with GraphQL errors.
type ResponseError struct {
	StatusCode int
	Errors     []GraphQLError
}

func (e *ResponseError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("graphql: http %d", e.StatusCode)
	}
	msgs := make([]string, len(e.Errors))
	for i, ge := range e.Errors {
		msgs[i] = ge.Message
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// Code is the code of the first error.
func (e *ResponseError) Code() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Code()
}

// CodeOf returns the GraphQL error code carried by err, if any.
func CodeOf(err error) string {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.Code()
	}
	return ""
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// Do sends one operation and decodes its data into out. Entities in the
// response are written into the cache before out is filled.
func (c *Client) Do(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(request{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		if res.StatusCode != http.StatusOK {
			return &ResponseError{StatusCode: res.StatusCode}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if len(r.Errors) > 0 || res.StatusCode != http.StatusOK {
		return &ResponseError{StatusCode: res.StatusCode, Errors: r.Errors}
	}

	if c.cache != nil && len(r.Data) > 0 {
		if err := c.cache.Write(r.Data); err != nil {
			return err
		}
	}
	if out == nil || len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
