// Package randomuser fetches generated user records from an HTTP API that
// authenticates with an X-Api-Key header.
package randomuser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/featurebasedb/edp/errors"
	"github.com/featurebasedb/edp/logger"
	"github.com/featurebasedb/edp/record"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 1 << 20

// Config configures a Client. RetryMax is the number of in-process retries
// of connection errors and 5xx responses; the default is none.
type Config struct {
	URL      string
	APIKey   string
	Timeout  time.Duration
	RetryMax int
	Log      logger.Logger
}

// Client fetches one record per call.
type Client struct {
	url    string
	apiKey string
	http   *retryablehttp.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Log == nil {
		cfg.Log = logger.NopLogger
	}
	hc := retryablehttp.NewClient()
	hc.RetryMax = cfg.RetryMax
	hc.Logger = leveled{cfg.Log}
	// hand non-2xx responses back so their status and body can be reported
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.Timeout > 0 {
		hc.HTTPClient.Timeout = cfg.Timeout
	}
	return &Client{url: cfg.URL, apiKey: cfg.APIKey, http: hc}
}

// Fetch returns one record. Any status other than 200 is an ErrUpstream
// error carrying the status and body.
func (c *Client) Fetch(ctx context.Context) (record.Record, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return record.Record{}, errors.Wrap(err, "building request")
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return record.Record{}, errors.Wrapf(err, "requesting %s", c.url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return record.Record{}, errors.Wrap(err, "reading response")
	}
	if resp.StatusCode != http.StatusOK {
		return record.Record{}, errors.Newf(errors.ErrUpstream, "status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	rec, err := record.Decode(body)
	if err != nil {
		return record.Record{}, errors.Wrap(err, "decoding response")
	}
	return rec, nil
}

// leveled adapts logger.Logger to retryablehttp.LeveledLogger.
type leveled struct {
	log logger.Logger
}

func (l leveled) Error(msg string, kv ...interface{}) { l.log.Errorf("%s", withFields(msg, kv)) }
func (l leveled) Info(msg string, kv ...interface{})  { l.log.Debugf("%s", withFields(msg, kv)) }
func (l leveled) Debug(msg string, kv ...interface{}) { l.log.Debugf("%s", withFields(msg, kv)) }
func (l leveled) Warn(msg string, kv ...interface{})  { l.log.Warnf("%s", withFields(msg, kv)) }

func withFields(msg string, kv []interface{}) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}
