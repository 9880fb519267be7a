package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/labstep/labstep-go/internal/cmd/base"
	"github.com/labstep/labstep-go/internal/cmd/commands/export"
	"github.com/labstep/labstep-go/internal/cmd/commands/get"
	"github.com/labstep/labstep-go/internal/cmd/commands/list"
	"github.com/labstep/labstep-go/internal/cmd/commands/open"
	"github.com/labstep/labstep-go/internal/cmd/commands/version"
)

func commands(log hclog.Logger, ui cli.Ui) map[string]cli.CommandFactory {
	b := &base.Command{Log: log, UI: ui}

	return map[string]cli.CommandFactory{
		"get": func() (cli.Command, error) {
			return &get.Command{Command: b}, nil
		},
		"list": func() (cli.Command, error) {
			return &list.Command{Command: b}, nil
		},
		"export": func() (cli.Command, error) {
			return &export.Command{Command: b}, nil
		},
		"open": func() (cli.Command, error) {
			return &open.Command{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
