package ctl

import (
	"context"
	"fmt"
	"io"

	"github.com/featurebasedb/edp/config"
)

// GenerateConfigCommand represents a command for printing a default config.
type GenerateConfigCommand struct {
	*CmdIO
}

// NewGenerateConfigCommand returns a new instance of GenerateConfigCommand.
func NewGenerateConfigCommand(stdin io.Reader, stdout, stderr io.Writer) *GenerateConfigCommand {
	return &GenerateConfigCommand{
		CmdIO: NewCmdIO(stdin, stdout, stderr),
	}
}

// Run prints out the default pipeline config.
func (cmd *GenerateConfigCommand) Run(_ context.Context) error {
	ret, err := config.Defaults().Marshal()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Stdout, "%s\n", ret)
	return nil
}
