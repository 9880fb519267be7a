package labstep

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/labstep/labstep-go/pkg/transport"
)

// File is an uploaded attachment.
type File struct {
	Entity
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// GetFile fetches a file by id.
func (c *Client) GetFile(ctx context.Context, id int64) (*File, error) {
	return getEntity[File](ctx, c, KindFile, idKey(id))
}

// GetFiles lists files in the active workspace.
func (c *Client) GetFiles(ctx context.Context, opts ListOptions) ([]*File, error) {
	return getEntities[File](ctx, c, KindFile, opts)
}

// UploadFile uploads content into the active workspace.
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader) (*File, error) {
	ws, err := c.requireWorkspace()
	if err != nil {
		return nil, err
	}
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrValidation)
	}

	var resp map[string]interface{}
	err = c.transport.Upload(ctx, genericPath+"/file/upload", transport.Form{
		Filename: filename,
		Content:  content,
		Fields:   map[string]string{"group_id": idKey(ws)},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", filename, err)
	}

	raw := uploaded(resp)
	if raw == nil {
		return nil, fmt.Errorf("failed to upload %s: empty response", filename)
	}
	c.logger.Debug("uploaded file", "name", filename, "id", raw["id"])
	return bindNew[File](c, KindFile, raw)
}

// uploaded extracts the file object. The upload endpoint answers either
// with the file itself or with an object keyed by upload field.
func uploaded(resp map[string]interface{}) map[string]interface{} {
	if _, ok := resp["id"]; ok {
		return resp
	}
	keys := make([]string, 0, len(resp))
	for k := range resp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if m, ok := resp[k].(map[string]interface{}); ok {
			return m
		}
	}
	return nil
}

// UploadFilePath uploads a file read from the configured filesystem.
func (c *Client) UploadFilePath(ctx context.Context, path string) (*File, error) {
	fh, err := c.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()
	return c.UploadFile(ctx, filepath.Base(path), fh)
}

// SignedURL returns a short-lived anonymous download link.
func (f *File) SignedURL(ctx context.Context) (string, error) {
	if f.client == nil {
		return "", errUnbound
	}
	var resp struct {
		SignedURL string `json:"signed_url"`
	}
	path := genericPath + "/file/download/" + f.Key()
	if err := f.client.call(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", fmt.Errorf("failed to get download link for file %d: %w", f.ID, err)
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("no download link for file %d", f.ID)
	}
	return resp.SignedURL, nil
}

// Download returns the file payload.
func (f *File) Download(ctx context.Context) ([]byte, error) {
	link, err := f.SignedURL(ctx)
	if err != nil {
		return nil, err
	}
	data, err := f.client.transport.DoRaw(ctx, transport.Request{
		Method:    http.MethodGet,
		Path:      link,
		Anonymous: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download file %d: %w", f.ID, err)
	}
	return data, nil
}

// Save downloads the payload and writes it to path on fs, creating parent
// directories.
func (f *File) Save(ctx context.Context, fs afero.Fs, path string) error {
	data, err := f.Download(ctx)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return afero.WriteFile(fs, path, data, 0o644)
}
