package list

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/labstep/labstep-go/internal/cmd/base"
	"github.com/labstep/labstep-go/pkg/labstep"
)

type Command struct {
	*base.Command

	flagCount   int
	flagSearch  string
	flagTag     int64
	flagDeleted bool
	flagJSON    bool
	flagFilters map[string]interface{}
}

func (c *Command) Synopsis() string {
	return "List entities of one kind"
}

func (c *Command) Help() string {
	return `Usage: labstep list [options] <kind>

  Lists entities of one kind in server order. Workspace-scoped kinds are
  filtered to the active workspace.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("list", flag.ContinueOnError))
	c.SessionFlags(f)

	f.IntVar(&c.flagCount, "count", labstep.DefaultCount,
		"Maximum number of results; -1 for all")
	f.StringVar(&c.flagSearch, "search", "",
		"Free-text filter on name")
	f.Int64Var(&c.flagTag, "tag", 0,
		"Only entities carrying this tag id")
	f.BoolVar(&c.flagDeleted, "deleted", false,
		"Include soft-deleted entities")
	f.BoolVar(&c.flagJSON, "json", false,
		"Print the API responses as a JSON array")
	f.Func("filter",
		"Additional query filter as key=value; may be repeated",
		func(s string) error {
			k, v, ok := strings.Cut(s, "=")
			if !ok || k == "" {
				return fmt.Errorf("filter %q is not key=value", s)
			}
			if c.flagFilters == nil {
				c.flagFilters = map[string]interface{}{}
			}
			c.flagFilters[k] = v
			return nil
		})
	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if f.NArg() != 1 {
		c.UI.Error("expected <kind>")
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

	found, err := client.Search(ctx, kind, labstep.ListOptions{
		Count:          c.flagCount,
		SearchQuery:    c.flagSearch,
		TagID:          c.flagTag,
		IncludeDeleted: c.flagDeleted,
		Filters:        c.flagFilters,
	})
	if err != nil {
		c.UI.Error(fmt.Sprintf("error listing %s: %v", kind, err))
		return 1
	}

	if c.flagJSON {
		raws := make([]map[string]interface{}, 0, len(found))
		for _, o := range found {
			raws = append(raws, o.Raw())
		}
		b, err := json.MarshalIndent(raws, "", "  ")
		if err != nil {
			c.UI.Error(fmt.Sprintf("error encoding response: %v", err))
			return 1
		}
		c.UI.Output(string(b))
		return 0
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME")
	for _, o := range found {
		name, _ := o.Raw()["name"].(string)
		fmt.Fprintf(w, "%s\t%s\n", o.Key(), name)
	}
	_ = w.Flush()
	c.UI.Output(strings.TrimRight(b.String(), "\n"))
	return 0
}
