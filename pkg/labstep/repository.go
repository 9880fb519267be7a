package labstep

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstep/labstep-go/pkg/optional"
	"github.com/labstep/labstep-go/pkg/transport"
)

const (
	genericPath = "/api/generic"

	// maxPageSize is the largest page the API serves.
	maxPageSize = 1000

	// DefaultCount is the number of entities returned when
	// ListOptions.Count is zero.
	DefaultCount = 100
)

// ListOptions filter and bound a list request.
type ListOptions struct {
	// Count is the maximum number of entities returned. Zero means
	// DefaultCount; a negative value returns every match.
	Count int

	// SearchQuery is a free-text filter on name.
	SearchQuery string

	// TagID restricts results to entities carrying the tag.
	TagID int64

	// IncludeDeleted also returns soft-deleted entities.
	IncludeDeleted bool

	// Filters are sent as additional query parameters. A "group_id" filter
	// replaces the active workspace for workspace-scoped kinds.
	Filters map[string]interface{}
}

func (o ListOptions) limit() int {
	switch {
	case o.Count < 0:
		return math.MaxInt
	case o.Count == 0:
		return DefaultCount
	}
	return o.Count
}

type page struct {
	Items      []map[string]interface{} `json:"items"`
	Total      int                      `json:"total"`
	NextCursor json.RawMessage          `json:"next_cursor"`
}

func (p page) cursor() string {
	raw := strings.TrimSpace(string(p.NextCursor))
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.NextCursor, &s); err == nil {
		return s
	}
	return raw
}

type recordPtr[T any] interface {
	*T
	record
}

func entityPath(kind Kind, key ...string) string {
	p := genericPath + "/" + kind.EntityName()
	for _, k := range key {
		p += "/" + url.PathEscape(k)
	}
	return p
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatParam(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// getEntity fetches one entity.
func getEntity[T any, PT recordPtr[T]](ctx context.Context, c *Client, kind Kind, key string) (*T, error) {
	raw, err := c.fetch(ctx, kind, key)
	if err != nil {
		return nil, err
	}
	return bindNew[T, PT](c, kind, raw)
}

// getEntities pages through a list endpoint.
func getEntities[T any, PT recordPtr[T]](ctx context.Context, c *Client, kind Kind, opts ListOptions) ([]*T, error) {
	raws, err := c.list(ctx, kind, opts)
	if err != nil {
		return nil, err
	}
	return bindAll[T, PT](c, kind, raws)
}

// newEntity creates an entity. Workspace-scoped kinds are owned by the
// active workspace unless fields carry a group_id.
func newEntity[T any, PT recordPtr[T]](ctx context.Context, c *Client, kind Kind, fields optional.Fields) (*T, error) {
	raw, err := c.create(ctx, kind, fields)
	if err != nil {
		return nil, err
	}
	return bindNew[T, PT](c, kind, raw)
}

// editEntity sends fields as a PUT and replaces e with the response.
// Fields absent from the map are left untouched server-side; nil values
// clear them.
func editEntity(ctx context.Context, e *Entity, fields optional.Fields) error {
	if e.client == nil {
		return errUnbound
	}
	raw, err := e.client.edit(ctx, e.kind, e.Key(), fields)
	if err != nil {
		return err
	}
	return e.client.bind(e.self, e.kind, raw)
}

func bindNew[T any, PT recordPtr[T]](c *Client, kind Kind, raw map[string]interface{}) (*T, error) {
	var t T
	if err := c.bind(PT(&t), kind, raw); err != nil {
		return nil, err
	}
	return &t, nil
}

func bindAll[T any, PT recordPtr[T]](c *Client, kind Kind, raws []map[string]interface{}) ([]*T, error) {
	out := make([]*T, 0, len(raws))
	for _, raw := range raws {
		t, err := bindNew[T, PT](c, kind, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, kind Kind, key string) (map[string]interface{}, error) {
	var raw map[string]interface{}
	err := c.transport.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   entityPath(kind, key),
	}, &raw)
	if err != nil {
		if transport.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrNotFound, kind, key, err)
		}
		return nil, fmt.Errorf("failed to get %s %s: %w", kind, key, err)
	}
	return raw, nil
}

// list accumulates pages until min(total, count) items are collected or
// the server returns an empty page.
func (c *Client) list(ctx context.Context, kind Kind, opts ListOptions) ([]map[string]interface{}, error) {
	limit := opts.limit()
	pageSize := limit
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	query := url.Values{}
	query.Set("search", "1")
	query.Set("count", strconv.Itoa(pageSize))
	for k, v := range opts.Filters {
		query.Set(k, formatParam(v))
	}
	if kind.WorkspaceScoped() && !query.Has("group_id") {
		ws, err := c.requireWorkspace()
		if err != nil {
			return nil, err
		}
		query.Set("group_id", idKey(ws))
	}
	if !opts.IncludeDeleted {
		query.Set("is_deleted", "false")
	}
	if opts.SearchQuery != "" {
		query.Set("search_query", opts.SearchQuery)
	}
	if opts.TagID != 0 {
		query.Set("tag_id", idKey(opts.TagID))
	}

	var items []map[string]interface{}
	cursor := "-1"
	for {
		query.Set("cursor", cursor)

		var p page
		err := c.transport.Do(ctx, transport.Request{
			Method: http.MethodGet,
			Path:   entityPath(kind),
			Query:  query,
		}, &p)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", kind, err)
		}
		items = append(items, p.Items...)

		want := p.Total
		if limit < want {
			want = limit
		}
		if len(p.Items) == 0 || len(items) >= want {
			break
		}
		if cursor = p.cursor(); cursor == "" {
			break
		}
	}

	if len(items) > limit {
		items = items[:limit]
	}
	c.logger.Trace("listed entities", "kind", kind, "count", len(items))
	return items, nil
}

func (c *Client) create(ctx context.Context, kind Kind, fields optional.Fields) (map[string]interface{}, error) {
	body := optional.Fields{}
	if kind.WorkspaceScoped() && !fields.Has("group_id") {
		ws, err := c.requireWorkspace()
		if err != nil {
			return nil, err
		}
		body["group_id"] = ws
	}
	body.Merge(fields)

	var raw map[string]interface{}
	err := c.transport.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   entityPath(kind),
		Body:   body,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", kind, err)
	}
	return raw, nil
}

func (c *Client) edit(ctx context.Context, kind Kind, key string, fields optional.Fields) (map[string]interface{}, error) {
	if fields == nil {
		fields = optional.Fields{}
	}
	var raw map[string]interface{}
	err := c.transport.Do(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   entityPath(kind, key),
		Body:   fields,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to edit %s %s: %w", kind, key, err)
	}
	return raw, nil
}

// call sends an arbitrary request and decodes the response into out.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	return c.transport.Do(ctx, transport.Request{Method: method, Path: path, Body: body}, out)
}
