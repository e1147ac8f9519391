// Package rest talks to the PHP-style JSON API:
// GET/POST {base}/{resource} and PUT/DELETE {base}/{resource}/{id}.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
	"github.com/reggaepotato22/krugerr-brendt/internal/remote"
)

// Client holds the base URL and HTTP client shared by collections.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Collection is a remote.Store over one API resource.
type Collection[T domain.Record[T]] struct {
	client   *Client
	resource string
}

func NewCollection[T domain.Record[T]](c *Client, resource string) *Collection[T] {
	return &Collection[T]{client: c, resource: strings.Trim(resource, "/")}
}

func (c *Collection[T]) url(id string) string {
	u := c.client.baseURL + "/" + c.resource
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	var raw []json.RawMessage
	if err := c.client.do(ctx, http.MethodGet, c.url(""), nil, &raw); err != nil {
		return nil, remote.Unavailable("list "+c.resource, err)
	}

	out := make([]T, 0, len(raw))
	for _, item := range raw {
		rec, err := decodeRecord[T](item)
		if err != nil {
			return nil, remote.Unavailable("decode "+c.resource, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Collection[T]) Insert(ctx context.Context, rec T) (T, error) {
	var zero T
	body, err := json.Marshal(rec.WithMeta(domain.Meta{}))
	if err != nil {
		return zero, remote.Unavailable("encode "+c.resource, err)
	}

	var raw json.RawMessage
	if err := c.client.do(ctx, http.MethodPost, c.url(""), body, &raw); err != nil {
		return zero, remote.Unavailable("insert "+c.resource, err)
	}

	id, err := extractID(raw)
	if err != nil {
		return zero, remote.Unavailable("insert "+c.resource, err)
	}
	return rec.WithMeta(domain.Meta{}.Stamped(id, domain.ProvenanceRemote)), nil
}

func (c *Collection[T]) Update(ctx context.Context, rec T) error {
	id := rec.RecordMeta().ID
	body, err := json.Marshal(rec.WithMeta(domain.Meta{ID: id}))
	if err != nil {
		return remote.Unavailable("encode "+c.resource, err)
	}
	if err := c.client.do(ctx, http.MethodPut, c.url(id), body, nil); err != nil {
		return remote.Unavailable("update "+c.resource, err)
	}
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := c.client.do(ctx, http.MethodDelete, c.url(id), nil, nil); err != nil {
		return remote.Unavailable("delete "+c.resource, err)
	}
	return nil
}

// do sends body as JSON and decodes the response into dst when dst is set.
// Any non-2xx status or non-JSON body is an error.
func (c *Client) do(ctx context.Context, method, u string, body []byte, dst any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, dst)
}

func (c *Client) send(req *http.Request, dst any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned status %d: %s", req.Method, req.URL.Path, resp.StatusCode, errBody)
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeRecord accepts numeric or string ids.
func decodeRecord[T domain.Record[T]](raw json.RawMessage) (T, error) {
	var rec T
	id, err := extractID(raw)
	if err != nil {
		return rec, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return rec, fmt.Errorf("failed to decode record: %w", err)
	}
	delete(fields, "id")
	delete(fields, "provenance")
	delete(fields, "isLocal")

	cleaned, err := json.Marshal(fields)
	if err != nil {
		return rec, fmt.Errorf("failed to re-encode record: %w", err)
	}
	if err := json.Unmarshal(cleaned, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec.WithMeta(domain.Meta{}.Stamped(id, domain.ProvenanceRemote)), nil
}

func extractID(raw json.RawMessage) (string, error) {
	var withID struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &withID); err != nil {
		return "", fmt.Errorf("failed to decode record: %w", err)
	}

	s := strings.Trim(string(withID.ID), `"`)
	if s == "" || s == "null" {
		return "", fmt.Errorf("record has no id")
	}
	return s, nil
}
