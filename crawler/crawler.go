// Package crawler starts the schema crawler over the accumulated object.
package crawler

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/glue"
	"github.com/aws/aws-sdk-go/service/glue/glueiface"

	"github.com/featurebasedb/edp/awsutil"
	"github.com/featurebasedb/edp/errors"
	"github.com/featurebasedb/edp/logger"
)

// SuccessBody is returned when the crawler was started.
const SuccessBody = "Glue Crawler triggered successfully!"

// Response is the invocation result.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type Trigger struct {
	Client glueiface.GlueAPI
	Name   string
	Log    logger.Logger
}

func (t *Trigger) log() logger.Logger {
	if t.Log == nil {
		return logger.NopLogger
	}
	return t.Log
}

// Start asks the crawler service to start the crawler and returns without
// waiting for the crawl. A crawler that is already running yields
// ErrCrawlerRunning, an unknown one ErrCrawlerNotFound.
func (t *Trigger) Start(ctx context.Context) error {
	_, err := t.Client.StartCrawlerWithContext(ctx, &glue.StartCrawlerInput{Name: aws.String(t.Name)})
	if err == nil {
		return nil
	}
	switch awsutil.ErrorCode(err) {
	case glue.ErrCodeCrawlerRunningException:
		err = errors.WithCode(err, errors.ErrCrawlerRunning)
	case glue.ErrCodeEntityNotFoundException:
		err = errors.WithCode(err, errors.ErrCrawlerNotFound)
	}
	return errors.Wrapf(err, "starting crawler %s", t.Name)
}

// Handle is the function entry point. The triggering event is only logged.
func (t *Trigger) Handle(ctx context.Context, event json.RawMessage) (Response, error) {
	log := t.log()
	log.Infof("Received event: %s", event)
	if err := t.Start(ctx); err != nil {
		log.Errorf("Error starting Glue Crawler: %v", err)
		return Response{}, err
	}
	log.Infof("Glue Crawler %s started successfully", t.Name)
	return Response{StatusCode: 200, Body: SuccessBody}, nil
}
