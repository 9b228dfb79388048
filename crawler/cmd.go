package crawler

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/service/glue"
	"github.com/aws/aws-sdk-go/service/glue/glueiface"
	"github.com/pkg/errors"

	"github.com/featurebasedb/edp/awsutil"
	"github.com/featurebasedb/edp/config"
	"github.com/featurebasedb/edp/logger"
)

type Main struct {
	Config      string `help:"Path to a TOML pipeline config overriding the built-in resource names."`
	AWSRegion   string `help:"AWS Region. Alternatively, use environment variable AWS_REGION."`
	AWSEndpoint string `help:"Override the AWS endpoint, e.g. for localstack."`
	CrawlerName string `help:"Name of the crawler to start."`
	LogLevel    string `help:"Log level: debug, info, warn or error."`
	DryRun      bool   `help:"Print the resolved configuration and exit."`

	log logger.Logger
}

func NewMain() *Main {
	d := config.Defaults()
	return &Main{
		AWSRegion:   d.Region,
		CrawlerName: d.CrawlerName,
		LogLevel:    "info",
	}
}

func (m *Main) Log() logger.Logger {
	return m.log
}

// Setup resolves the configuration and returns a Trigger using client, or
// a Glue client when client is nil.
func (m *Main) Setup(client glueiface.GlueAPI) (*Trigger, error) {
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
		m.CrawlerName = config.Pick(m.CrawlerName, d.CrawlerName, p.CrawlerName)
	}
	if m.CrawlerName == "" {
		return nil, errors.New("crawler name is required")
	}
	if client == nil {
		sess, err := awsutil.NewSession(awsutil.Options{Region: m.AWSRegion, Endpoint: m.AWSEndpoint}, m.log)
		if err != nil {
			return nil, err
		}
		client = glue.New(sess)
	}
	return &Trigger{Client: client, Name: m.CrawlerName, Log: m.log.WithPrefix("crawler: ")}, nil
}

// Run starts the Lambda runtime loop; it does not return on success.
func (m *Main) Run() error {
	trig, err := m.Setup(nil)
	if err != nil {
		return err
	}
	lambda.Start(trig.Handle)
	return nil
}
