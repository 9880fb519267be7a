package export

import (
	"context"
	"flag"
	"fmt"

	"github.com/labstep/labstep-go/internal/cmd/base"
	"github.com/labstep/labstep-go/pkg/export"
	"github.com/labstep/labstep-go/pkg/labstep"
)

type Command struct {
	*base.Command

	flagOut  string
	flagRoot string
	flagS3   bool
	flagPDF  bool

	// sink replaces the configured sink in tests.
	sink export.Sink
}

func (c *Command) Synopsis() string {
	return "Export entities with their comments, files and metadata"
}

func (c *Command) Help() string {
	return `Usage: labstep export [options] <kind> <key>...

  Writes each entity to <root>/<key>/ on the local filesystem, or to the S3
  bucket configured in the export.s3 block of the config file:

    entity.json                      API response
    comments/<id>/comment.json       each comment
    comments/<id>/files/<name>       comment attachments
    metadata/metadata.yaml           metadata fields
    metadata/files/<name>            file metadata payloads
    entry.html, entry.pdf            rich-text body

  Failures on individual files are reported after the rest of the entity has
  been written.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("export", flag.ContinueOnError))
	c.SessionFlags(f)

	f.StringVar(&c.flagOut, "out", ".",
		"Local output directory")
	f.StringVar(&c.flagRoot, "root", "",
		"Directory (or key prefix) under the output for the exported entities")
	f.BoolVar(&c.flagS3, "s3", false,
		"Write to the S3 bucket from the config file instead of -out")
	f.BoolVar(&c.flagPDF, "pdf", false,
		"Also render rich-text bodies as PDF")
	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if f.NArg() < 2 {
		c.UI.Error("expected <kind> and at least one <key>")
		return 1
	}
	kind, err := labstep.ParseKind(f.Arg(0))
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	ctx := context.Background()
	client, cfg, err := c.Connect(ctx)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error connecting: %v", err))
		return 1
	}

	sink := c.sink
	switch {
	case sink != nil:
	case c.flagS3:
		s3cfg := cfg.S3()
		if s3cfg == nil {
			c.UI.Error("-s3 requires an export.s3 block in the config file")
			return 1
		}
		if sink, err = export.NewS3Sink(ctx, *s3cfg, c.Log); err != nil {
			c.UI.Error(fmt.Sprintf("error creating S3 sink: %v", err))
			return 1
		}
	default:
		sink = export.NewFSSink(c.flagOut)
	}

	exporter := client.NewExporter(sink)
	if c.flagPDF {
		exporter.PDF = true
	}

	failed := 0
	for _, key := range f.Args()[1:] {
		o, err := client.Lookup(ctx, kind, key)
		if err != nil {
			c.UI.Error(fmt.Sprintf("error fetching %s %s: %v", kind, key, err))
			failed++
			continue
		}
		dir, err := exporter.Export(ctx, o, c.flagRoot, "")
		if err != nil {
			c.UI.Error(fmt.Sprintf("exported %s %s to %s with errors: %v", kind, key, dir, err))
			failed++
			continue
		}
		c.UI.Info(fmt.Sprintf("exported %s %s to %s", kind, key, dir))
	}

	if failed > 0 {
		return 1
	}
	return 0
}
