package labstep

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/labstep/labstep-go/pkg/export"
)

// Exporter writes entities to a sink as a directory tree:
//
//	{root}/{folder}/entity.json
//	{root}/{folder}/comments/{id}/comment.json
//	{root}/{folder}/comments/{id}/files/{name}
//	{root}/{folder}/metadata/metadata.yaml
//	{root}/{folder}/metadata/files/{name}
//	{root}/{folder}/{name}           (File entities)
//	{root}/{folder}/entry.html       (entities with a rich-text body)
//	{root}/{folder}/entry.pdf        (when PDF is set)
type Exporter struct {
	Client *Client
	Sink   export.Sink
	PDF    bool
	Logger hclog.Logger
}

// NewExporter returns an exporter using the client's ExportPDF setting.
func (c *Client) NewExporter(sink export.Sink) *Exporter {
	return &Exporter{
		Client: c,
		Sink:   sink,
		PDF:    c.config.ExportPDF,
		Logger: c.logger.Named("export"),
	}
}

// Export writes o under root with the client's defaults. Folder names the
// entity directory; an empty folder uses the entity key.
func (c *Client) Export(ctx context.Context, o Object, sink export.Sink, root, folder string) (string, error) {
	return c.NewExporter(sink).Export(ctx, o, root, folder)
}

// Export writes o and returns the entity directory. Failures to write the
// directory or entity.json abort the export; failures on individual
// comments, files or renderings are collected and returned together after
// everything else has been written.
func (x *Exporter) Export(ctx context.Context, o Object, root, folder string) (string, error) {
	logger := x.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if folder == "" {
		folder = o.Key()
	}
	dir := export.Join(root, export.SafeName(folder))

	if err := x.Sink.MkdirAll(ctx, dir); err != nil {
		return "", err
	}
	if err := export.WriteJSON(ctx, x.Sink, export.Join(dir, "entity.json"), o.Raw()); err != nil {
		return "", err
	}

	var result *multierror.Error
	if f, ok := o.(*File); ok {
		result = multierror.Append(result, x.file(ctx, f, dir, export.SafeName(f.Name)))
	}
	if cm, ok := o.(Commentable); ok {
		result = multierror.Append(result, x.comments(ctx, cm, dir))
	}
	if md, ok := o.(HasMetadata); ok {
		result = multierror.Append(result, x.metadata(ctx, md, dir))
	}
	if dh, ok := o.(documentHolder); ok {
		result = multierror.Append(result, x.document(ctx, dh, dir))
	}

	failed := 0
	if result != nil {
		failed = len(result.Errors)
	}
	logger.Info("exported entity", "kind", o.Kind(), "key", o.Key(), "dir", dir, "failed", failed)
	return dir, result.ErrorOrNil()
}

func (x *Exporter) file(ctx context.Context, f *File, dir, name string) error {
	data, err := f.Download(ctx)
	if err != nil {
		return err
	}
	return export.WriteBytes(ctx, x.Sink, export.Join(dir, name), data)
}

// fileNames hands out unique file names within one directory. A name that
// is already taken gets the file id as a prefix.
type fileNames map[string]bool

func (n fileNames) next(f *File) string {
	name := export.SafeName(f.Name)
	if n[name] {
		name = idKey(f.ID) + "_" + name
	}
	n[name] = true
	return name
}

func (x *Exporter) comments(ctx context.Context, cm Commentable, dir string) error {
	comments, err := cm.Comments().List(ctx, -1)
	if errors.Is(err, ErrNoThread) {
		return nil
	}
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, c := range comments {
		cdir := export.Join(dir, "comments", idKey(c.ID))
		if err := export.WriteJSON(ctx, x.Sink, export.Join(cdir, "comment.json"), c.Raw()); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		names := fileNames{}
		for _, f := range c.Files {
			if err := x.file(ctx, f, export.Join(cdir, "files"), names.next(f)); err != nil {
				result = multierror.Append(result, fmt.Errorf("comment %d: %w", c.ID, err))
			}
		}
	}
	return result.ErrorOrNil()
}

func (x *Exporter) metadata(ctx context.Context, md HasMetadata, dir string) error {
	fields, err := md.Metadata().List(ctx)
	if errors.Is(err, ErrNoMetadataThread) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	mdir := export.Join(dir, "metadata")
	raws := make([]map[string]interface{}, 0, len(fields))
	for _, m := range fields {
		raws = append(raws, m.Raw())
	}

	var result *multierror.Error
	if err := export.WriteYAML(ctx, x.Sink, export.Join(mdir, "metadata.yaml"), raws); err != nil {
		result = multierror.Append(result, err)
	}
	names := fileNames{}
	for _, m := range fields {
		if m.File == nil || m.File.ID == 0 {
			continue
		}
		f, err := x.Client.GetFile(ctx, m.File.ID)
		if err == nil {
			err = x.file(ctx, f, export.Join(mdir, "files"), names.next(f))
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("metadata %q: %w", m.Label, err))
		}
	}
	return result.ErrorOrNil()
}

func (x *Exporter) document(ctx context.Context, dh documentHolder, dir string) error {
	doc := dh.document()
	if doc == nil {
		return nil
	}
	html, err := x.Client.converter.ToHTML(ctx, doc)
	if err != nil {
		return err
	}
	if err := export.WriteBytes(ctx, x.Sink, export.Join(dir, "entry.html"), []byte(html)); err != nil {
		return err
	}
	if !x.PDF {
		return nil
	}
	pdf, err := x.Client.converter.ToPDF(ctx, html)
	if err != nil {
		return err
	}
	return export.WriteBytes(ctx, x.Sink, export.Join(dir, "entry.pdf"), pdf)
}
