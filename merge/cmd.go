package merge

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/featurebasedb/edp/awsutil"
	"github.com/featurebasedb/edp/config"
	"github.com/featurebasedb/edp/logger"
	"github.com/featurebasedb/edp/objstore"
)

type Main struct {
	Config             string `help:"Path to a TOML pipeline config overriding the built-in resource names."`
	AWSRegion          string `help:"AWS Region. Alternatively, use environment variable AWS_REGION."`
	AWSEndpoint        string `help:"Override the AWS endpoint, e.g. for localstack."`
	SourceBucket       string `help:"Bucket holding staging objects."`
	StagingPrefix      string `help:"Key prefix of staging objects. Notifications for other keys are ignored."`
	TargetBucket       string `help:"Bucket holding the accumulated parquet object."`
	TargetKey          string `help:"Key of the accumulated parquet object."`
	MaxConflictRetries int    `help:"How often a merge is retried after another writer changed the accumulated object. Zero disables retries."`
	DeleteMerged       bool   `help:"Delete staging objects after they have been merged."`
	PartialBatch       bool   `help:"Report failed queue messages individually instead of failing the whole batch. Requires ReportBatchItemFailures on the event source mapping."`
	TempDir            string `help:"Directory staging objects are downloaded to."`
	LogLevel           string `help:"Log level: debug, info, warn or error."`
	DryRun             bool   `help:"Print the resolved configuration and exit."`

	log logger.Logger
}

func NewMain() *Main {
	d := config.Defaults()
	return &Main{
		AWSRegion:          d.Region,
		SourceBucket:       d.SourceBucket,
		StagingPrefix:      d.StagingPrefix,
		TargetBucket:       d.TargetBucket,
		TargetKey:          d.TargetKey,
		MaxConflictRetries: DefaultMaxConflictRetries,
		LogLevel:           "info",
	}
}

func (m *Main) Log() logger.Logger {
	return m.log
}

// Setup resolves the configuration and returns an Accumulator reading and
// writing store, or S3 when store is nil.
func (m *Main) Setup(store objstore.ObjectStore) (*Accumulator, error) {
	level, err := logger.ParseLevel(m.LogLevel)
	if err != nil {
		return nil, err
	}
	m.log = logger.NewLevelLogger(os.Stderr, level)
	if m.Config != "" {
		p, err := config.Load(m.Config)
		if err != nil {
			return nil, errors.Wrap(err, "applying config")
		}
		d := config.Defaults()
		m.AWSRegion = config.Pick(m.AWSRegion, d.Region, p.Region)
		m.SourceBucket = config.Pick(m.SourceBucket, d.SourceBucket, p.SourceBucket)
		m.StagingPrefix = config.Pick(m.StagingPrefix, d.StagingPrefix, p.StagingPrefix)
		m.TargetBucket = config.Pick(m.TargetBucket, d.TargetBucket, p.TargetBucket)
		m.TargetKey = config.Pick(m.TargetKey, d.TargetKey, p.TargetKey)
	}
	switch {
	case m.SourceBucket == "":
		return nil, errors.New("source bucket is required")
	case m.TargetBucket == "" || m.TargetKey == "":
		return nil, errors.New("target bucket and key are required")
	case m.MaxConflictRetries < 0:
		return nil, errors.New("max conflict retries must not be negative")
	}
	if store == nil {
		sess, err := awsutil.NewSession(awsutil.Options{Region: m.AWSRegion, Endpoint: m.AWSEndpoint}, m.log)
		if err != nil {
			return nil, err
		}
		store = objstore.NewS3Store(s3.New(sess))
	}
	return &Accumulator{
		Store:              store,
		SourceBucket:       m.SourceBucket,
		StagingPrefix:      m.StagingPrefix,
		TargetBucket:       m.TargetBucket,
		TargetKey:          m.TargetKey,
		MaxConflictRetries: m.MaxConflictRetries,
		DeleteMerged:       m.DeleteMerged,
		TempDir:            m.TempDir,
		Log:                m.log.WithPrefix("merge: "),
	}, nil
}

// Handler adapts an Accumulator to the queue event source.
type Handler struct {
	Acc          *Accumulator
	PartialBatch bool
}

// Handle processes a queue batch. With PartialBatch the failed messages are
// reported back for redelivery and the invocation succeeds; otherwise the
// first merge error fails the whole batch.
func (h *Handler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	rep, err := h.Acc.ProcessNotification(ctx, event)
	if err == nil || !h.PartialBatch {
		return events.SQSEventResponse{}, err
	}
	var resp events.SQSEventResponse
	for _, id := range rep.Failed {
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: id})
	}
	return resp, nil
}

// Run starts the Lambda runtime loop; it does not return on success.
func (m *Main) Run() error {
	acc, err := m.Setup(nil)
	if err != nil {
		return err
	}
	h := &Handler{Acc: acc, PartialBatch: m.PartialBatch}
	lambda.Start(h.Handle)
	return nil
}
