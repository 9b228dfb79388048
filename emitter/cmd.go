package emitter

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/pkg/errors"

	"github.com/featurebasedb/edp/awsutil"
	"github.com/featurebasedb/edp/config"
	"github.com/featurebasedb/edp/logger"
	"github.com/featurebasedb/edp/metrics"
	"github.com/featurebasedb/edp/randomuser"
	"github.com/featurebasedb/edp/secrets"
	"github.com/featurebasedb/edp/stream"
)

const (
	BackendKinesis = "kinesis"
	BackendKafka   = "kafka"

	SecretsManagerBackend = "secretsmanager"
	VaultBackend          = "vault"
)

type Main struct {
	Config        string        `help:"Path to a TOML pipeline config overriding the built-in resource names."`
	AWSRegion     string        `help:"AWS Region. Alternatively, use environment variable AWS_REGION."`
	AWSProfile    string        `help:"Name of AWS profile to use. Alternatively, use environment variable AWS_PROFILE."`
	AWSEndpoint   string        `help:"Override the AWS endpoint, e.g. for localstack."`
	StreamName    string        `help:"Name of the stream records are published to."`
	StreamBackend string        `help:"Stream backend: kinesis or kafka."`
	KafkaBrokers  []string      `help:"Kafka bootstrap servers, when the stream backend is kafka."`
	SecretID      string        `help:"Identifier of the secret holding API_KEY."`
	SecretBackend string        `help:"Secret backend: secretsmanager or vault."`
	VaultAddress  string        `help:"Vault address. Alternatively, use environment variable VAULT_ADDR. The token is read from VAULT_TOKEN."`
	VaultMount    string        `help:"Vault KV mount holding the secret."`
	SourceURL     string        `help:"URL of the record source."`
	Count         int           `help:"Number of records to fetch before exiting."`
	MaxAttempts   int           `help:"Stop after this many fetch attempts even if Count was not reached. 0 for no limit."`
	Interval      time.Duration `help:"Time to wait after each fetch."`
	Timeout       time.Duration `help:"HTTP timeout for a fetch."`
	MetricsAddr   string        `help:"Address to serve prometheus metrics on. Empty to disable."`
	LogLevel      string        `help:"Log level: debug, info, warn or error."`
	DryRun        bool          `help:"Print the resolved configuration and exit."`

	log logger.Logger

	// replaced in tests
	newResolver  func(m *Main) (secrets.Resolver, error)
	newPublisher func(m *Main) (stream.Publisher, error)
}

func NewMain() *Main {
	d := config.Defaults()
	return &Main{
		AWSRegion:     d.Region,
		StreamName:    d.Stream.Name,
		StreamBackend: BackendKinesis,
		KafkaBrokers:  []string{"localhost:9092"},
		SecretID:      d.SecretID,
		SecretBackend: SecretsManagerBackend,
		VaultMount:    "secret",
		SourceURL:     d.RecordSourceURL,
		Count:         2,
		Interval:      5 * time.Second,
		Timeout:       30 * time.Second,
		LogLevel:      "info",

		newResolver:  defaultResolver,
		newPublisher: defaultPublisher,
	}
}

// Log returns the logger set up by Run, or nil before that.
func (m *Main) Log() logger.Logger {
	return m.log
}

// applyConfig lets a pipeline file replace settings still at their defaults.
func (m *Main) applyConfig() error {
	if m.Config == "" {
		return nil
	}
	p, err := config.Load(m.Config)
	if err != nil {
		return err
	}
	d := config.Defaults()
	m.AWSRegion = config.Pick(m.AWSRegion, d.Region, p.Region)
	m.StreamName = config.Pick(m.StreamName, d.Stream.Name, p.Stream.Name)
	m.SecretID = config.Pick(m.SecretID, d.SecretID, p.SecretID)
	m.SourceURL = config.Pick(m.SourceURL, d.RecordSourceURL, p.RecordSourceURL)
	return nil
}

func (m *Main) Run() error {
	ctx, cancel := signalContext()
	defer cancel()
	return m.RunContext(ctx)
}

// RunContext resolves the API key, then emits. A missing secret is fatal.
func (m *Main) RunContext(ctx context.Context) error {
	level, err := logger.ParseLevel(m.LogLevel)
	if err != nil {
		return err
	}
	m.log = logger.NewLevelLogger(os.Stderr, level)
	if err := m.applyConfig(); err != nil {
		return errors.Wrap(err, "applying config")
	}

	resolver, err := m.newResolver(m)
	if err != nil {
		return errors.Wrap(err, "creating secret resolver")
	}
	apiKey, err := secrets.APIKey(ctx, resolver, m.SecretID)
	if err != nil {
		return errors.Wrap(err, "API Key not found")
	}

	pub, err := m.newPublisher(m)
	if err != nil {
		return errors.Wrap(err, "creating publisher")
	}
	if c, ok := pub.(interface{ Close() error }); ok {
		defer c.Close()
	}

	if m.MetricsAddr != "" {
		if _, _, err := metrics.Serve(ctx, m.MetricsAddr, m.log); err != nil {
			return err
		}
	}

	e := &Emitter{
		Source: randomuser.NewClient(randomuser.Config{
			URL:     m.SourceURL,
			APIKey:  apiKey,
			Timeout: m.Timeout,
			Log:     m.log.WithPrefix("randomuser: "),
		}),
		Publisher:   pub,
		Stream:      m.StreamName,
		Count:       m.Count,
		MaxAttempts: m.MaxAttempts,
		Interval:    m.Interval,
		Log:         m.log,
	}
	_, err = e.Run(ctx)
	return err
}

func (m *Main) awsOptions() awsutil.Options {
	return awsutil.Options{Region: m.AWSRegion, Profile: m.AWSProfile, Endpoint: m.AWSEndpoint}
}

func defaultResolver(m *Main) (secrets.Resolver, error) {
	switch m.SecretBackend {
	case SecretsManagerBackend:
		sess, err := awsutil.NewSession(m.awsOptions(), m.log)
		if err != nil {
			return nil, err
		}
		return secrets.NewSecretsManager(secretsmanager.New(sess)), nil
	case VaultBackend:
		return secrets.NewVault(secrets.VaultConfig{Address: m.VaultAddress, Mount: m.VaultMount})
	}
	return nil, errors.Errorf("unknown secret backend %q", m.SecretBackend)
}

func defaultPublisher(m *Main) (stream.Publisher, error) {
	switch m.StreamBackend {
	case BackendKinesis:
		sess, err := awsutil.NewSession(m.awsOptions(), m.log)
		if err != nil {
			return nil, err
		}
		return stream.NewKinesisPublisher(kinesis.New(sess), m.log.WithPrefix("kinesis: ")), nil
	case BackendKafka:
		return stream.NewKafkaPublisher(m.KafkaBrokers, m.log.WithPrefix("kafka: "))
	}
	return nil, errors.Errorf("unknown stream backend %q", m.StreamBackend)
}
