package labstep

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstep/labstep-go/pkg/optional"
)

// Tag is a workspace label within one tag namespace.
type Tag struct {
	Entity
	Type string `json:"type"`
}

// Edit renames the tag.
func (t *Tag) Edit(ctx context.Context, name string) error {
	return editEntity(ctx, &t.Entity, optional.Fields{"name": name})
}

// GetTags lists tags of one namespace in the active workspace. An empty
// tagType lists every namespace.
func (c *Client) GetTags(ctx context.Context, tagType string, opts ListOptions) ([]*Tag, error) {
	if tagType != "" {
		opts.Filters = withFilter(opts.Filters, "type", tagType)
	}
	return getEntities[Tag](ctx, c, KindTag, opts)
}

// NewTag creates a tag in the active workspace.
func (c *Client) NewTag(ctx context.Context, name, tagType string) (*Tag, error) {
	return newEntity[Tag](ctx, c, KindTag, optional.Fields{"name": name, "type": tagType})
}

// findTag returns the tag whose name matches case-insensitively, or nil.
func (c *Client) findTag(ctx context.Context, name, tagType string) (*Tag, error) {
	tags, err := c.GetTags(ctx, tagType, ListOptions{SearchQuery: name, Count: -1})
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return nil, nil
}

// Tags links tags to one entity.
type Tags struct {
	parent *Entity
}

func newTags(parent *Entity) *Tags {
	return &Tags{parent: parent}
}

func (ts *Tags) tagType() (string, error) {
	if ts.parent.client == nil {
		return "", errUnbound
	}
	tagType := ts.parent.kind.TagType()
	if tagType == "" {
		return "", fmt.Errorf("%w: %s entities cannot be tagged", ErrValidation, ts.parent.kind)
	}
	return tagType, nil
}

// Add links the tag called name, creating it only when no tag of the same
// name (ignoring case) exists in the namespace. Adding a tag the entity
// already carries is a no-op.
func (ts *Tags) Add(ctx context.Context, name string) (*Tag, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: tag name is required", ErrValidation)
	}
	tagType, err := ts.tagType()
	if err != nil {
		return nil, err
	}
	c := ts.parent.client

	tag, err := c.findTag(ctx, name, tagType)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		if tag, err = c.NewTag(ctx, name, tagType); err != nil {
			return nil, err
		}
		c.logger.Debug("created tag", "name", name, "type", tagType, "id", tag.ID)
	}

	if ts.linked(tag.ID) {
		return tag, nil
	}

	var raw map[string]interface{}
	path := entityPath(ts.parent.kind, ts.parent.Key(), "tag", idKey(tag.ID))
	if err := c.call(ctx, http.MethodPut, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to add tag %q: %w", name, err)
	}
	if err := c.bind(ts.parent.self, ts.parent.kind, raw); err != nil {
		return nil, err
	}
	return tag, nil
}

// Remove unlinks tag from the entity. The tag itself is kept.
func (ts *Tags) Remove(ctx context.Context, tag *Tag) error {
	if _, err := ts.tagType(); err != nil {
		return err
	}
	path := entityPath(ts.parent.kind, ts.parent.Key(), "tag", idKey(tag.ID))
	if err := ts.parent.client.call(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to remove tag %q: %w", tag.Name, err)
	}
	return ts.parent.Update(ctx)
}

// List refetches the entity and returns its tags.
func (ts *Tags) List(ctx context.Context) ([]*Tag, error) {
	if _, err := ts.tagType(); err != nil {
		return nil, err
	}
	if err := ts.parent.Update(ctx); err != nil {
		return nil, err
	}
	return bindAll[Tag](ts.parent.client, KindTag, nested(ts.parent.raw, "tags"))
}

func (ts *Tags) linked(id int64) bool {
	for _, raw := range nested(ts.parent.raw, "tags") {
		if n, ok := raw["id"].(float64); ok && int64(n) == id {
			return true
		}
	}
	return false
}

// nested returns the list of objects stored under key. A single object is
// returned as a one-element list.
func nested(raw map[string]interface{}, key string) []map[string]interface{} {
	if m, ok := raw[key].(map[string]interface{}); ok {
		return []map[string]interface{}{m}
	}
	list, _ := raw[key].([]interface{})
	out := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func withFilter(filters map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(filters)+1)
	for k, v := range filters {
		out[k] = v
	}
	out[key] = value
	return out
}
