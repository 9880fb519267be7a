package labstep

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/labstep/labstep-go/pkg/optional"
)

// Metadata field types.
const (
	MetadataDefault      = "default"
	MetadataDate         = "date"
	MetadataDatetime     = "datetime"
	MetadataNumeric      = "numeric"
	MetadataFile         = "file"
	MetadataOptionsField = "options"
	MetadataSequence     = "sequence"
	MetadataMolecule     = "molecule"
)

// metadataFields lists the value fields each type accepts.
var metadataFields = map[string][]string{
	MetadataDefault:      {"value"},
	MetadataDate:         {"date"},
	MetadataDatetime:     {"date"},
	MetadataNumeric:      {"number", "unit"},
	MetadataFile:         {"file_id"},
	MetadataOptionsField: {"options"},
	MetadataSequence:     {"value"},
	MetadataMolecule:     {"value"},
}

// MetadataOptions is the value of an options field.
type MetadataOptions struct {
	Values        map[string]bool `json:"values"`
	AllowMultiple bool            `json:"is_allow_multiple"`
}

// Metadata is one typed field on an entity's metadata thread.
type Metadata struct {
	Entity
	Type    string           `json:"type"`
	Label   string           `json:"label"`
	Value   string           `json:"value"`
	Date    string           `json:"date"`
	Number  *float64         `json:"number"`
	Unit    string           `json:"unit"`
	File    *Summary         `json:"file"`
	Options *MetadataOptions `json:"options"`
}

// MetadataInput describes a new metadata field. Only the value fields
// allowed for Type may be set:
//
//	default, sequence, molecule  Value
//	date, datetime               Date
//	numeric                      Number, Unit
//	file                         FileID, FilePath or File
//	options                      Options
type MetadataInput struct {
	Label string
	// Type defaults to "default".
	Type string

	Value   optional.Value[string]
	Date    optional.Value[string]
	Number  optional.Value[float64]
	Unit    optional.Value[string]
	FileID  optional.Value[int64]
	Options optional.Value[MetadataOptions]

	// FilePath or File (with Filename) is uploaded and referenced as
	// file_id.
	FilePath string
	File     io.Reader
	Filename string
}

func (in *MetadataInput) fields() optional.Fields {
	f := optional.Fields{}
	f.Put("value", in.Value).
		Put("date", in.Date).
		Put("number", in.Number).
		Put("unit", in.Unit).
		Put("file_id", in.FileID).
		Put("options", in.Options)
	return f
}

// Validate checks the input without contacting the server.
func (in *MetadataInput) Validate() error {
	typ := in.Type
	if typ == "" {
		typ = MetadataDefault
	}
	allowed, ok := metadataFields[typ]
	if !ok {
		return validationError(fmt.Errorf("unknown metadata type %q (want one of %s)", typ, strings.Join(metadataTypes(), ", ")))
	}

	supplied := map[string]interface{}(in.fields())
	if in.FilePath != "" || in.File != nil {
		supplied["file_id"] = 0
	}

	keys := make([]*validation.KeyRules, 0, len(allowed))
	for _, k := range allowed {
		kr := validation.Key(k).Optional()
		if k == "date" {
			kr = validation.Key(k, validation.By(parsableDate)).Optional()
		}
		keys = append(keys, kr)
	}

	err := validation.Errors{
		"label":  validation.Validate(in.Label, validation.Required),
		"fields": validation.Validate(supplied, validation.Map(keys...)),
	}.Filter()
	if err != nil {
		return validationError(fmt.Errorf("%s metadata: %w", typ, err))
	}
	return nil
}

func metadataTypes() []string {
	out := make([]string, 0, len(metadataFields))
	for k := range metadataFields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func parsableDate(v interface{}) error {
	s, _ := v.(string)
	if _, err := dateparse.ParseAny(s); err != nil {
		return fmt.Errorf("unrecognised date %q", s)
	}
	return nil
}

// normaliseDate renders any dateparse layout as the API's format for typ.
func normaliseDate(typ, s string) (string, error) {
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return "", err
	}
	if typ == MetadataDate {
		return t.Format(time.DateOnly), nil
	}
	return t.UTC().Format(time.RFC3339), nil
}

// MetadataEdit changes an existing metadata field. Unset fields are kept.
type MetadataEdit struct {
	Label  optional.Value[string]
	Value  optional.Value[string]
	Date   optional.Value[string]
	Number optional.Value[float64]
	Unit   optional.Value[string]
}

// Edit updates the field.
func (m *Metadata) Edit(ctx context.Context, edit MetadataEdit) error {
	if d, ok := edit.Date.Get(); ok {
		norm, err := normaliseDate(m.Type, d)
		if err != nil {
			return validationError(fmt.Errorf("date: %w", err))
		}
		edit.Date = optional.Set(norm)
	}
	f := optional.Fields{}
	f.Put("label", edit.Label).
		Put("value", edit.Value).
		Put("date", edit.Date).
		Put("number", edit.Number).
		Put("unit", edit.Unit)
	return editEntity(ctx, &m.Entity, f)
}

// MetadataFields adds and lists metadata on one entity.
type MetadataFields struct {
	parent *Entity
	thread *Summary
}

func newMetadataFields(parent *Entity, thread *Summary) *MetadataFields {
	return &MetadataFields{parent: parent, thread: thread}
}

func (mf *MetadataFields) threadID() (int64, error) {
	if mf.parent.client == nil {
		return 0, errUnbound
	}
	if mf.thread == nil || mf.thread.ID == 0 {
		return 0, fmt.Errorf("%w: %s %s", ErrNoMetadataThread, mf.parent.kind, mf.parent.Key())
	}
	return mf.thread.ID, nil
}

// Add validates in and creates the field. Validation failures are
// returned before any request, including file uploads.
func (mf *MetadataFields) Add(ctx context.Context, in MetadataInput) (*Metadata, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	threadID, err := mf.threadID()
	if err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = MetadataDefault
	}
	if d, ok := in.Date.Get(); ok {
		norm, err := normaliseDate(in.Type, d)
		if err != nil {
			return nil, validationError(err)
		}
		in.Date = optional.Set(norm)
	}

	c := mf.parent.client
	switch {
	case in.FilePath != "":
		fh, err := c.fs.Open(in.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", in.FilePath, err)
		}
		defer fh.Close()
		f, err := c.UploadFile(ctx, filepath.Base(in.FilePath), fh)
		if err != nil {
			return nil, err
		}
		in.FileID = optional.Set(f.ID)
	case in.File != nil:
		f, err := c.UploadFile(ctx, in.Filename, in.File)
		if err != nil {
			return nil, err
		}
		in.FileID = optional.Set(f.ID)
	}

	fields := in.fields()
	fields["metadata_thread_id"] = threadID
	fields["type"] = in.Type
	fields["label"] = in.Label
	return newEntity[Metadata](ctx, c, KindMetadata, fields)
}

// List returns every field on the thread.
func (mf *MetadataFields) List(ctx context.Context) ([]*Metadata, error) {
	threadID, err := mf.threadID()
	if err != nil {
		return nil, err
	}
	return getEntities[Metadata](ctx, mf.parent.client, KindMetadata, ListOptions{
		Count:   -1,
		Filters: map[string]interface{}{"metadata_thread_id": threadID},
	})
}

// Get returns the first field labelled label, or ErrNotFound.
func (mf *MetadataFields) Get(ctx context.Context, label string) (*Metadata, error) {
	all, err := mf.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		if m.Label == label {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: metadata %q", ErrNotFound, label)
}
