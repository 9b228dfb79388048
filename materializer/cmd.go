package materializer

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/featurebasedb/edp/awsutil"
	"github.com/featurebasedb/edp/config"
	"github.com/featurebasedb/edp/logger"
	"github.com/featurebasedb/edp/objstore"
)

type Main struct {
	Config        string `help:"Path to a TOML pipeline config overriding the built-in resource names."`
	AWSRegion     string `help:"AWS Region. Alternatively, use environment variable AWS_REGION."`
	AWSEndpoint   string `help:"Override the AWS endpoint, e.g. for localstack."`
	SourceBucket  string `help:"Bucket staging objects are written to."`
	StagingPrefix string `help:"Key prefix of staging objects."`
	LogLevel      string `help:"Log level: debug, info, warn or error."`
	DryRun        bool   `help:"Print the resolved configuration and exit."`

	log logger.Logger
}

func NewMain() *Main {
	d := config.Defaults()
	return &Main{
		AWSRegion:     d.Region,
		SourceBucket:  d.SourceBucket,
		StagingPrefix: d.StagingPrefix,
		LogLevel:      "info",
	}
}

func (m *Main) Log() logger.Logger {
	return m.log
}

// Setup resolves the configuration and returns a Materializer writing to
// store, or to S3 when store is nil.
func (m *Main) Setup(store objstore.ObjectStore) (*Materializer, error) {
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
	}
	if m.SourceBucket == "" {
		return nil, errors.New("source bucket is required")
	}
	if store == nil {
		sess, err := awsutil.NewSession(awsutil.Options{Region: m.AWSRegion, Endpoint: m.AWSEndpoint}, m.log)
		if err != nil {
			return nil, err
		}
		store = objstore.NewS3Store(s3.New(sess))
	}
	return &Materializer{
		Store:  store,
		Bucket: m.SourceBucket,
		Prefix: m.StagingPrefix,
		Log:    m.log.WithPrefix("materializer: "),
	}, nil
}

// Run starts the Lambda runtime loop; it does not return on success.
func (m *Main) Run() error {
	mat, err := m.Setup(nil)
	if err != nil {
		return err
	}
	lambda.Start(mat.Handle)
	return nil
}
