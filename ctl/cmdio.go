// Package ctl implements the operator commands of the edp binary. Each
// command is a struct holding its options and standard streams, with a Run
// method; package cmd binds them to cobra commands.
package ctl

import (
	"io"

	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/featurebasedb/edp/awsutil"
	"github.com/featurebasedb/edp/logger"
)

// CmdIO holds standard unix inputs and outputs.
type CmdIO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	logger logger.Logger
}

// NewCmdIO returns a new instance of CmdIO with inputs and outputs set to the
// arguments.
func NewCmdIO(stdin io.Reader, stdout, stderr io.Writer) *CmdIO {
	return &CmdIO{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		logger: logger.NewStandardLogger(stderr),
	}
}

func (c *CmdIO) Logger() logger.Logger {
	return c.logger
}

// setLogLevel replaces the logger with one writing to Stderr at level.
func (c *CmdIO) setLogLevel(level string) error {
	if level == "" {
		return nil
	}
	v, err := logger.ParseLevel(level)
	if err != nil {
		return err
	}
	c.logger = logger.NewLevelLogger(c.Stderr, v)
	return nil
}

// AWSOptions are the session settings shared by commands talking to AWS.
type AWSOptions struct {
	Region   string
	Profile  string
	Endpoint string
}

func (o AWSOptions) session(log logger.Logger) (*session.Session, error) {
	return awsutil.NewSession(awsutil.Options{Region: o.Region, Profile: o.Profile, Endpoint: o.Endpoint}, log)
}
