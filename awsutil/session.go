// Package awsutil builds the AWS session shared by the service clients of a
// program.
package awsutil

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pkg/errors"

	"github.com/featurebasedb/edp/logger"
)

// Options tune the session. Empty values fall back to the SDK's default
// chain (environment, shared config, instance role).
type Options struct {
	Region   string
	Profile  string
	Endpoint string
	// MaxRetries bounds the SDK's own retries of throttled or ephemeral
	// errors. Zero keeps the SDK default.
	MaxRetries int
}

// NewSession creates an AWS session from opts.
func NewSession(opts Options, log logger.Logger) (*session.Session, error) {
	if log == nil {
		log = logger.NopLogger
	}
	log.Infof("Initializing AWS session")
	config := &aws.Config{}
	if opts.MaxRetries > 0 {
		config.Retryer = client.DefaultRetryer{NumMaxRetries: opts.MaxRetries}
	}
	if len(opts.Profile) > 0 {
		log.Infof("Overriding default AWS profile %s", opts.Profile)
		config.Credentials = credentials.NewSharedCredentials("", opts.Profile)
	}
	if len(opts.Region) > 0 {
		log.Debugf("Using AWS region: %s", opts.Region)
		config.Region = aws.String(opts.Region)
	}
	if len(opts.Endpoint) > 0 {
		log.Infof("Overriding AWS endpoint: %s", opts.Endpoint)
		config.Endpoint = aws.String(opts.Endpoint)
		config.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(config)
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}
	return sess, nil
}

// ErrorCode returns the AWS error code carried by err, or "" when err did
// not come from the SDK.
func ErrorCode(err error) string {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code()
	}
	return ""
}

// StatusCode returns the HTTP status of a failed AWS request, or 0.
func StatusCode(err error) int {
	var rerr awserr.RequestFailure
	if errors.As(err, &rerr) {
		return rerr.StatusCode()
	}
	return 0
}
