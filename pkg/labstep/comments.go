package labstep

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/labstep/labstep-go/pkg/optional"
)

// Comment is a message on an entity's thread, optionally with files.
type Comment struct {
	Entity
	Body           string   `json:"body"`
	ParentThreadID int64    `json:"parent_thread_id"`
	Files          []*File  `json:"file"`
	Thread         *Summary `json:"thread"`
}

// bindChildren rebinds attached files so they can be downloaded. Decode
// errors cannot occur here since the same data already decoded once.
func (c *Comment) bindChildren(client *Client) {
	c.Files = c.Files[:0]
	for _, raw := range nested(c.raw, "file") {
		f := &File{}
		if err := client.bind(f, KindFile, raw); err == nil {
			c.Files = append(c.Files, f)
		}
	}
}

// Edit replaces the comment body.
func (c *Comment) Edit(ctx context.Context, body string) error {
	return editEntity(ctx, &c.Entity, optional.Fields{"body": body})
}

// Comments adds and lists comments on one entity's thread.
type Comments struct {
	parent *Entity
	thread *Summary
}

func newComments(parent *Entity, thread *Summary) *Comments {
	return &Comments{parent: parent, thread: thread}
}

func (cs *Comments) threadID() (int64, error) {
	if cs.parent.client == nil {
		return 0, errUnbound
	}
	if cs.thread == nil || cs.thread.ID == 0 {
		return 0, fmt.Errorf("%w: %s %s", ErrNoThread, cs.parent.kind, cs.parent.Key())
	}
	return cs.thread.ID, nil
}

// Add posts a comment referencing already uploaded files.
func (cs *Comments) Add(ctx context.Context, body string, fileIDs ...int64) (*Comment, error) {
	threadID, err := cs.threadID()
	if err != nil {
		return nil, err
	}
	fields := optional.Fields{
		"body":             body,
		"parent_thread_id": threadID,
	}
	if len(fileIDs) > 0 {
		fields["file_id"] = fileIDs
	}
	return newEntity[Comment](ctx, cs.parent.client, KindComment, fields)
}

// AddWithFile uploads content and posts a comment referencing it.
func (cs *Comments) AddWithFile(ctx context.Context, body, filename string, content io.Reader) (*Comment, error) {
	if _, err := cs.threadID(); err != nil {
		return nil, err
	}
	f, err := cs.parent.client.UploadFile(ctx, filename, content)
	if err != nil {
		return nil, err
	}
	return cs.Add(ctx, body, f.ID)
}

// AddWithFilePath uploads the file at path and posts a comment referencing
// it.
func (cs *Comments) AddWithFilePath(ctx context.Context, body, path string) (*Comment, error) {
	if _, err := cs.threadID(); err != nil {
		return nil, err
	}
	fh, err := cs.parent.client.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()
	return cs.AddWithFile(ctx, body, filepath.Base(path), fh)
}

// List returns up to count comments in server order.
func (cs *Comments) List(ctx context.Context, count int) ([]*Comment, error) {
	threadID, err := cs.threadID()
	if err != nil {
		return nil, err
	}
	return getEntities[Comment](ctx, cs.parent.client, KindComment, ListOptions{
		Count:   count,
		Filters: map[string]interface{}{"parent_thread_id": threadID},
	})
}
