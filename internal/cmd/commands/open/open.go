package open

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/browser"

	"github.com/labstep/labstep-go/internal/cmd/base"
	"github.com/labstep/labstep-go/pkg/labstep"
)

type Command struct {
	*base.Command

	flagPrint bool
}

func (c *Command) Synopsis() string {
	return "Open an entity in the web app"
}

func (c *Command) Help() string {
	return `Usage: labstep open [options] <kind> <key>

  Opens the entity's page in the default browser.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("open", flag.ContinueOnError))
	c.SessionFlags(f)
	f.BoolVar(&c.flagPrint, "print", false,
		"Print the link instead of opening a browser")
	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if f.NArg() != 2 {
		c.UI.Error("expected <kind> and <key>")
		return 1
	}
	kind, err := labstep.ParseKind(f.Arg(0))
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	ctx := context.Background()
	client, _, err := c.Connect(ctx)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error connecting: %v", err))
		return 1
	}

	// fetched so that unknown keys fail here rather than in the browser
	o, err := client.Lookup(ctx, kind, f.Arg(1))
	if err != nil {
		c.UI.Error(fmt.Sprintf("error fetching %s %s: %v", kind, f.Arg(1), err))
		return 1
	}

	link := client.URL(o)
	if c.flagPrint {
		c.UI.Output(link)
		return 0
	}
	if err := browser.OpenURL(link); err != nil {
		c.UI.Error(fmt.Sprintf("error opening browser: %v", err))
		c.UI.Output(link)
		return 1
	}
	return 0
}
