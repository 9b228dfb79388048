package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/featurebasedb/edp/ctl"
)

func newGenerateConfigCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	generateConf := ctl.NewGenerateConfigCommand(stdin, stdout, stderr)
	confCmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Print the default pipeline configuration.",
		Long: `generate-config prints the default pipeline configuration to stdout as
TOML. Every program accepts the file through --config.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateConf.Run(cmd.Context())
		},
	}

	return confCmd
}
