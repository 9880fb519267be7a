// Package export writes entity exports to a filesystem tree or an S3
// bucket.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/forPelevin/gomoji"
	"gopkg.in/yaml.v3"
)

// Sink receives exported files. Paths are slash separated and relative to
// the sink's root.
type Sink interface {
	MkdirAll(ctx context.Context, dir string) error
	WriteFile(ctx context.Context, name string, r io.Reader) error
}

// SafeName turns an entity or file name into a single path element:
// emoji and control characters are dropped and separators replaced.
func SafeName(name string) string {
	name = gomoji.RemoveEmojis(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

// Join joins path elements with "/" regardless of platform.
func Join(elem ...string) string {
	return path.Join(elem...)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(ctx context.Context, s Sink, name string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return s.WriteFile(ctx, name, bytes.NewReader(b))
}

// WriteYAML writes v as YAML.
func WriteYAML(ctx context.Context, s Sink, name string, v interface{}) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return s.WriteFile(ctx, name, &buf)
}

// WriteBytes writes b as name.
func WriteBytes(ctx context.Context, s Sink, name string, b []byte) error {
	return s.WriteFile(ctx, name, bytes.NewReader(b))
}
