package version

import (
	"github.com/labstep/labstep-go/internal/cmd/base"
	"github.com/labstep/labstep-go/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version"
}

func (c *Command) Help() string {
	return "Usage: labstep version"
}

func (c *Command) Run(_ []string) int {
	c.UI.Output("labstep " + version.Version)
	return 0
}
