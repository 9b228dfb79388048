package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/featurebasedb/edp/ctl"
)

func newInspectCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := ctl.NewInspectCommand(stdin, stdout, stderr)
	inspectCmd := &cobra.Command{
		Use:   "inspect [path]",
		Short: "Print the contents of the accumulated parquet object.",
		Long: `inspect reads a parquet object, from a local path or an s3:// URL, and
prints its schema, row count, the staging objects merged into it and its
rows. Without a path the accumulated object named by --target-bucket and
--target-key is read.
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				c.Path = args[0]
			}
			return c.Run(cmd.Context())
		},
	}
	flags := inspectCmd.Flags()
	flags.StringVar(&c.AWS.Region, "region", c.AWS.Region, "AWS region.")
	flags.StringVar(&c.AWS.Profile, "aws-profile", "", "Name of AWS profile to use.")
	flags.StringVar(&c.AWS.Endpoint, "aws-endpoint", "", "Override the AWS endpoint, e.g. for localstack.")
	flags.StringVar(&c.TargetBucket, "target-bucket", c.TargetBucket, "Bucket holding the accumulated object.")
	flags.StringVar(&c.TargetKey, "target-key", c.TargetKey, "Key of the accumulated object.")
	flags.IntVar(&c.Limit, "limit", c.Limit, "Number of rows to print. 0 prints all rows.")
	flags.StringVar(&c.Format, "format", c.Format, "Output format: table or csv.")
	flags.StringVar(&c.LogLevel, "log-level", "info", "Log level: debug, info, warn or error.")
	return inspectCmd
}
