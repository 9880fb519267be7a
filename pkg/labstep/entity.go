package labstep

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mitchellh/mapstructure"

	"github.com/labstep/labstep-go/pkg/entityid"
	"github.com/labstep/labstep-go/pkg/optional"
)

// Object is implemented by every entity wrapper.
type Object interface {
	Kind() Kind
	Key() string
	Ref() entityid.Ref
	Raw() map[string]interface{}
	Update(ctx context.Context) error
	Delete(ctx context.Context) error
}

type record interface {
	Object
	base() *Entity
}

// childBinder is implemented by wrappers holding nested entities that need
// a client after decoding.
type childBinder interface {
	bindChildren(c *Client)
}

// Summary is the short form the API embeds when one entity references
// another.
type Summary struct {
	ID   int64         `json:"id"`
	GUID entityid.GUID `json:"guid"`
	Name string        `json:"name"`
}

// UserSummary is the embedded form of a user.
type UserSummary struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Entity holds the fields common to every entity type. Concrete wrappers
// embed it.
type Entity struct {
	ID        int64         `json:"id"`
	GUID      entityid.GUID `json:"guid"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	DeletedAt *time.Time    `json:"deleted_at"`
	Author    *UserSummary  `json:"author"`

	// Extra holds the top-level response fields the wrapper type does not
	// declare.
	Extra map[string]interface{} `json:"-"`

	client *Client
	kind   Kind
	raw    map[string]interface{}
	self   record
}

func (e *Entity) base() *Entity { return e }

// Kind returns the entity type.
func (e *Entity) Kind() Kind { return e.kind }

// Key returns the path key: the guid for GUID-keyed kinds, the id
// otherwise.
func (e *Entity) Key() string {
	if e.kind.GUIDKeyed() {
		return e.GUID.String()
	}
	return strconv.FormatInt(e.ID, 10)
}

// Ref returns the "{entityType}-{key}" reference used in position maps.
func (e *Entity) Ref() entityid.Ref {
	return entityid.NewRef(e.kind.EntityName(), e.Key())
}

// Raw returns the response the entity was decoded from.
func (e *Entity) Raw() map[string]interface{} { return e.raw }

// IsDeleted reports whether the entity has been soft-deleted.
func (e *Entity) IsDeleted() bool { return e.DeletedAt != nil }

var errUnbound = errors.New("entity is not bound to a client")

// Update refetches the entity and replaces every field with the fresh
// response.
func (e *Entity) Update(ctx context.Context) error {
	if e.client == nil {
		return errUnbound
	}
	raw, err := e.client.fetch(ctx, e.kind, e.Key())
	if err != nil {
		return err
	}
	return e.client.bind(e.self, e.kind, raw)
}

// Delete soft-deletes the entity by setting deleted_at.
func (e *Entity) Delete(ctx context.Context) error {
	return editEntity(ctx, e, optional.Fields{
		"deleted_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// Restore clears deleted_at.
func (e *Entity) Restore(ctx context.Context) error {
	return editEntity(ctx, e, optional.Fields{"deleted_at": nil})
}

var (
	timeType = reflect.TypeOf(time.Time{})
	guidType = reflect.TypeOf(entityid.GUID{})
)

// stringHook parses timestamps (any layout dateparse understands) and guids.
func stringHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	switch to {
	case timeType:
		if s == "" {
			return time.Time{}, nil
		}
		return dateparse.ParseAny(s)
	case guidType:
		if s == "" {
			return entityid.GUID{}, nil
		}
		return entityid.ParseGUID(s)
	}
	return data, nil
}

// decode maps raw onto out and returns the top-level keys out does not
// declare.
func decode(raw map[string]interface{}, out interface{}) (map[string]interface{}, error) {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringHook,
		Metadata:         &md,
		Result:           out,
		Squash:           true,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}

	extra := make(map[string]interface{})
	for _, k := range md.Unused {
		if v, ok := raw[k]; ok {
			extra[k] = v
		}
	}
	return extra, nil
}

// bind replaces rec wholesale with the decoded response.
func (c *Client) bind(rec record, kind Kind, raw map[string]interface{}) error {
	v := reflect.ValueOf(rec).Elem()
	v.Set(reflect.Zero(v.Type()))

	extra, err := decode(raw, rec)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", kind, err)
	}

	b := rec.base()
	b.Extra = extra
	b.client = c
	b.kind = kind
	b.raw = raw
	b.self = rec

	if cb, ok := rec.(childBinder); ok {
		cb.bindChildren(c)
	}
	return nil
}
