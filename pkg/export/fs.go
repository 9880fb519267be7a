package export

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
)

// FSSink writes under Root on an afero filesystem.
type FSSink struct {
	Fs   afero.Fs
	Root string
}

// NewFSSink returns a sink rooted at root on the OS filesystem.
func NewFSSink(root string) *FSSink {
	return &FSSink{Fs: afero.NewOsFs(), Root: root}
}

func (s *FSSink) path(name string) string {
	return filepath.Join(s.Root, filepath.FromSlash(name))
}

// MkdirAll creates dir and its parents.
func (s *FSSink) MkdirAll(_ context.Context, dir string) error {
	if err := s.Fs.MkdirAll(s.path(dir), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

// WriteFile writes r to name, creating parent directories.
func (s *FSSink) WriteFile(_ context.Context, name string, r io.Reader) error {
	p := s.path(name)
	if err := s.Fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	if err := afero.WriteReader(s.Fs, p, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
