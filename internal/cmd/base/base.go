// Package base holds the pieces shared by every CLI command.
package base

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/labstep/labstep-go/internal/config"
	"github.com/labstep/labstep-go/pkg/labstep"
)

// Command is embedded by every command.
type Command struct {
	Log hclog.Logger
	UI  cli.Ui

	// Loader reads configuration; nil uses the OS filesystem and
	// environment.
	Loader *config.Loader

	flagConfig    string
	flagWorkspace int64
}

// FlagSet wraps flag.FlagSet with help rendering.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet wraps f.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	return &FlagSet{FlagSet: f}
}

// Help renders the flags for command help output.
func (f *FlagSet) Help() string {
	var b strings.Builder
	b.WriteString("\n\nOptions:\n")
	f.VisitAll(func(fl *flag.Flag) {
		fmt.Fprintf(&b, "\n  -%s", fl.Name)
		if fl.DefValue != "" && fl.DefValue != "false" && fl.DefValue != "0" {
			fmt.Fprintf(&b, "=%s", fl.DefValue)
		}
		fmt.Fprintf(&b, "\n      %s\n", fl.Usage)
	})
	return b.String()
}

// SessionFlags registers the flags every API command accepts.
func (c *Command) SessionFlags(f *FlagSet) {
	f.StringVar(&c.flagConfig, "config", "",
		"[LABSTEP_CONFIG] Path to the HCL config file")
	f.Int64Var(&c.flagWorkspace, "workspace", 0,
		"Workspace id to activate, overriding the config file and the user's home workspace")
}

// Config loads the configuration selected by the session flags.
func (c *Command) Config() (*config.Config, error) {
	l := c.Loader
	if l == nil {
		l = config.NewLoader()
	}
	return l.Load(c.flagConfig)
}

// Connect loads the configuration and opens a session.
func (c *Command) Connect(ctx context.Context) (*labstep.Client, *config.Config, error) {
	cfg, err := c.Config()
	if err != nil {
		return nil, nil, err
	}
	if c.Log != nil {
		c.Log.SetLevel(cfg.Level())
	}

	lc := cfg.Client(c.Log)
	var client *labstep.Client
	if cfg.APIKey != "" {
		client, err = labstep.Authenticate(ctx, lc, cfg.APIKey)
	} else {
		client, err = labstep.Login(ctx, lc, cfg.Username, cfg.Password)
	}
	if err != nil {
		return nil, nil, err
	}

	switch {
	case c.flagWorkspace != 0:
		client.SetWorkspace(c.flagWorkspace)
	case cfg.Workspace != 0:
		client.SetWorkspace(cfg.Workspace)
	}
	return client, cfg, nil
}
