package ctl

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"

	"github.com/featurebasedb/edp/config"
	"github.com/featurebasedb/edp/metrics"
	"github.com/featurebasedb/edp/replay"
	"github.com/featurebasedb/edp/stream"
)

// ReplayCommand re-delivers every record retained in one stream shard to the
// materializer function.
type ReplayCommand struct {
	*CmdIO

	StreamName       string
	ShardID          string
	StreamARN        string
	FunctionName     string
	Workers          int
	QueriesPerSecond float64
	MetricsAddr      string
	LogLevel         string
	AWS              AWSOptions

	// Clients are created from AWS when nil.
	Kinesis kinesisiface.KinesisAPI
	Lambda  lambdaiface.LambdaAPI
}

// NewReplayCommand returns a new instance of ReplayCommand.
func NewReplayCommand(stdin io.Reader, stdout, stderr io.Writer) *ReplayCommand {
	d := config.Defaults()
	return &ReplayCommand{
		CmdIO:        NewCmdIO(stdin, stdout, stderr),
		StreamName:   d.Stream.Name,
		ShardID:      d.Stream.ShardID,
		FunctionName: d.MaterializeFunction,
		Workers:      4,
		AWS:          AWSOptions{Region: d.Region},
	}
}

func (cmd *ReplayCommand) Run(ctx context.Context) error {
	if err := cmd.setLogLevel(cmd.LogLevel); err != nil {
		return err
	}
	log := cmd.Logger()

	if cmd.Kinesis == nil || cmd.Lambda == nil {
		sess, err := cmd.AWS.session(log)
		if err != nil {
			return err
		}
		if cmd.Kinesis == nil {
			cmd.Kinesis = kinesis.New(sess)
		}
		if cmd.Lambda == nil {
			cmd.Lambda = lambda.New(sess)
		}
	}

	if cmd.MetricsAddr != "" {
		if _, _, err := metrics.Serve(ctx, cmd.MetricsAddr, log); err != nil {
			return err
		}
	}

	r := &replay.Replayer{
		Reader: stream.NewShardReader(stream.ShardReaderConfig{
			Log:              log.WithPrefix("stream: "),
			Client:           cmd.Kinesis,
			StreamName:       cmd.StreamName,
			ShardID:          cmd.ShardID,
			QueriesPerSecond: cmd.QueriesPerSecond,
		}),
		Invoker:   &replay.LambdaInvoker{Client: cmd.Lambda, Function: cmd.FunctionName},
		Workers:   cmd.Workers,
		Region:    cmd.AWS.Region,
		StreamARN: cmd.StreamARN,
		Log:       log.WithPrefix("replay: "),
	}
	rep, err := r.Run(ctx)
	switch {
	case rep.Read == 0:
		fmt.Fprintln(cmd.Stdout, replay.NoRecordsMessage)
	case rep.Failed == 0:
		fmt.Fprintf(cmd.Stdout, "Successfully invoked Lambda with %d records.\n", rep.Sent)
	default:
		fmt.Fprintf(cmd.Stdout, "Invoked Lambda with %d of %d records; %d failed.\n", rep.Sent, rep.Read, rep.Failed)
	}
	return err
}
