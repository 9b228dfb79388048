package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/featurebasedb/edp/ctl"
)

func newReplayCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := ctl.NewReplayCommand(stdin, stdout, stderr)
	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-deliver every retained stream record to the materializer.",
		Long: `replay reads one shard of the stream from its oldest retained record
and invokes the materializer function asynchronously once per record, each
time with a single-record stream event. Invocation failures are counted and
logged, never retried.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(cmd.Context())
		},
	}
	flags := replayCmd.Flags()
	flags.StringVar(&c.AWS.Region, "region", c.AWS.Region, "AWS region.")
	flags.StringVar(&c.AWS.Profile, "aws-profile", "", "Name of AWS profile to use.")
	flags.StringVar(&c.AWS.Endpoint, "aws-endpoint", "", "Override the AWS endpoint, e.g. for localstack.")
	flags.StringVar(&c.StreamName, "stream.name", c.StreamName, "Stream to replay.")
	flags.StringVar(&c.ShardID, "stream.shard-id", c.ShardID, "Shard to replay.")
	flags.StringVar(&c.StreamARN, "stream-arn", "", "Stream ARN copied into each replayed event.")
	flags.StringVar(&c.FunctionName, "materialize-function", c.FunctionName, "Function to invoke with each record.")
	flags.IntVar(&c.Workers, "workers", c.Workers, "Number of concurrent invocations.")
	flags.Float64Var(&c.QueriesPerSecond, "queries-per-second", 0, "Maximum GetRecords calls per second. 0 takes the default.")
	flags.StringVar(&c.MetricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address while replaying.")
	flags.StringVar(&c.LogLevel, "log-level", "info", "Log level: debug, info, warn or error.")
	return replayCmd
}
