package get

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/labstep/labstep-go/internal/cmd/base"
	"github.com/labstep/labstep-go/pkg/labstep"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print one entity as JSON"
}

func (c *Command) Help() string {
	return `Usage: labstep get [options] <kind> <key>

  Fetches one entity and prints the API response as JSON. Kind accepts entity
  names and aliases in any case style, for example "experiment",
  "resource-category" or "ResourceLocation". Resource locations are keyed by
  guid, everything else by numeric id.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("get", flag.ContinueOnError))
	c.SessionFlags(f)
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

	o, err := client.Lookup(ctx, kind, f.Arg(1))
	if err != nil {
		c.UI.Error(fmt.Sprintf("error fetching %s %s: %v", kind, f.Arg(1), err))
		return 1
	}

	b, err := json.MarshalIndent(o.Raw(), "", "  ")
	if err != nil {
		c.UI.Error(fmt.Sprintf("error encoding response: %v", err))
		return 1
	}
	c.UI.Output(string(b))
	return 0
}
