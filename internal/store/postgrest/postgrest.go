// Package postgrest implements store.Client against a PostgREST endpoint (for example the
// /rest/v1 API of a hosted Postgres project) using resty.
package postgrest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"greenline/backend/internal/store"
)

// APIError is the error body returned by PostgREST.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("postgrest: %d %s", e.Status, e.Message)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	return msg
}

// Client is a store.Client speaking the PostgREST protocol.
type Client struct {
	http   *resty.Client
	apiKey string
	mu     sync.RWMutex
	bearer string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithHTTPClient replaces the underlying resty client; used by tests.
func WithHTTPClient(rc *resty.Client) Option {
	return func(c *Client) { c.http = rc }
}

// New returns a Client for the REST root baseURL (for example https://x.supabase.co/rest/v1)
// authenticating with apiKey.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{http: resty.New(), apiKey: apiKey}
	for _, opt := range opts {
		opt(c)
	}
	c.http.SetBaseURL(strings.TrimRight(baseURL, "/"))
	return c
}

// SetAuthToken makes subsequent calls run as the user owning token. An empty token reverts to the API key.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bearer = token
}

func (c *Client) request(ctx context.Context) *resty.Request {
	c.mu.RLock()
	bearer := c.bearer
	c.mu.RUnlock()
	if bearer == "" {
		bearer = c.apiKey
	}
	return c.http.R().
		SetContext(ctx).
		SetHeader("apikey", c.apiKey).
		SetHeader("Authorization", "Bearer "+bearer).
		SetError(&APIError{})
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("postgrest: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr, _ := resp.Error().(*APIError)
	if apiErr == nil || apiErr.Message == "" {
		apiErr = &APIError{Message: strings.TrimSpace(resp.String())}
	}
	apiErr.Status = resp.StatusCode()
	return apiErr
}

// Select implements store.Client.
func (c *Client) Select(ctx context.Context, relation string, q store.Query) ([]store.Row, error) {
	params, err := queryParams(q)
	if err != nil {
		return nil, err
	}
	var rows []store.Row
	resp, err := c.request(ctx).
		SetQueryParamsFromValues(params).
		SetResult(&rows).
		Get("/" + relation)
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert implements store.Client.
func (c *Client) Insert(ctx context.Context, relation string, row store.Row) (store.Row, error) {
	var rows []store.Row
	resp, err := c.request(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(row).
		SetResult(&rows).
		Post("/" + relation)
	if err := check(resp, err); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNoRows
	}
	return rows[0], nil
}

// Update implements store.Client.
func (c *Client) Update(ctx context.Context, relation string, patch store.Row, filters ...store.Filter) (store.Row, error) {
	params, err := filterParams(filters)
	if err != nil {
		return nil, err
	}
	var rows []store.Row
	resp, err := c.request(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParamsFromValues(params).
		SetBody(patch).
		SetResult(&rows).
		Patch("/" + relation)
	if err := check(resp, err); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNoRows
	}
	return rows[0], nil
}

// Delete implements store.Client.
func (c *Client) Delete(ctx context.Context, relation string, filters ...store.Filter) error {
	if len(filters) == 0 {
		return errors.New("postgrest: delete requires at least one filter")
	}
	params, err := filterParams(filters)
	if err != nil {
		return err
	}
	resp, err := c.request(ctx).
		SetQueryParamsFromValues(params).
		Delete("/" + relation)
	return check(resp, err)
}

// RPC implements store.Client by posting args to /rpc/name.
func (c *Client) RPC(ctx context.Context, name string, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	var out any
	resp, err := c.request(ctx).
		SetBody(args).
		SetResult(&out).
		Post("/rpc/" + name)
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func queryParams(q store.Query) (url.Values, error) {
	v, err := filterParams(q.Filters)
	if err != nil {
		return nil, err
	}
	if len(q.Columns) > 0 {
		v.Set("select", strings.Join(q.Columns, ","))
	}
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		v.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v, nil
}

func filterParams(filters []store.Filter) (url.Values, error) {
	v := url.Values{}
	for _, f := range filters {
		switch f.Op {
		case store.OpEq:
			if f.Value == nil {
				v.Add(f.Column, "is.null")
				continue
			}
			v.Add(f.Column, "eq."+literal(f.Value))
		case store.OpNeq:
			if f.Value == nil {
				v.Add(f.Column, "not.is.null")
				continue
			}
			v.Add(f.Column, "neq."+literal(f.Value))
		case store.OpIn:
			vs, _ := f.Value.([]any)
			items := make([]string, len(vs))
			for i, x := range vs {
				items[i] = listItem(literal(x))
			}
			v.Add(f.Column, "in.("+strings.Join(items, ",")+")")
		default:
			return nil, fmt.Errorf("postgrest: unsupported filter operator %q", f.Op)
		}
	}
	return v, nil
}

func literal(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// listItem quotes values that would break the in.(...) list syntax.
func listItem(s string) string {
	if !strings.ContainsAny(s, `,()" `) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
