// Package emitter polls the record source and publishes each record, encoded
// as CSV, onto the stream.
package emitter

import (
	"context"
	"time"

	"github.com/featurebasedb/edp/logger"
	"github.com/featurebasedb/edp/metrics"
	"github.com/featurebasedb/edp/record"
	"github.com/featurebasedb/edp/stream"
)

// Fetcher returns one record per call.
type Fetcher interface {
	Fetch(ctx context.Context) (record.Record, error)
}

// Summary counts what a Run did. Fetched counts records that were fetched
// and encoded; it is what Count bounds.
type Summary struct {
	Attempts        int
	Fetched         int
	Published       int
	FetchFailures   int
	EncodeFailures  int
	PublishFailures int
}

// Emitter moves records from a Fetcher to a Publisher.
type Emitter struct {
	Source    Fetcher
	Publisher stream.Publisher
	Stream    string

	// Count is the number of records to fetch successfully.
	Count int
	// MaxAttempts bounds the loop when the source keeps failing. Zero
	// means no bound.
	MaxAttempts int
	// Interval is slept after every iteration, whatever its outcome.
	Interval time.Duration

	Log logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// Run loops until Count records were fetched, MaxAttempts iterations ran, or
// ctx is done. Fetch, encode and publish failures are logged and never end
// the loop; only ctx does, in which case its error is returned.
func (e *Emitter) Run(ctx context.Context) (Summary, error) {
	log := e.Log
	if log == nil {
		log = logger.NopLogger
	}
	sleep := e.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var s Summary
	for s.Fetched < e.Count && (e.MaxAttempts <= 0 || s.Attempts < e.MaxAttempts) {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		s.Attempts++
		e.emitOne(ctx, log, &s)
		if err := sleep(ctx, e.Interval); err != nil {
			return s, err
		}
	}
	log.Infof("Data ingestion completed: %d fetched, %d published in %d attempts", s.Fetched, s.Published, s.Attempts)
	return s, nil
}

func (e *Emitter) emitOne(ctx context.Context, log logger.Logger, s *Summary) {
	rec, err := e.Source.Fetch(ctx)
	if err != nil {
		s.FetchFailures++
		metrics.CounterRecordsFailed.WithLabelValues("fetch").Inc()
		log.Errorf("fetching record: %v", err)
		return
	}
	data, err := record.EncodeCSV(rec)
	if err != nil {
		s.EncodeFailures++
		metrics.CounterRecordsFailed.WithLabelValues("encode").Inc()
		log.Errorf("encoding record: %v", err)
		return
	}
	s.Fetched++
	metrics.CounterRecordsFetched.Inc()

	key := rec.PartitionKey()
	if err := e.Publisher.Put(ctx, e.Stream, key, data); err != nil {
		s.PublishFailures++
		metrics.CounterRecordsFailed.WithLabelValues("publish").Inc()
		log.Errorf("Failed to send data: %v", err)
	} else {
		s.Published++
		metrics.CounterRecordsPublished.Inc()
		log.Infof("Data sent to %s for %s.", e.Stream, key)
	}
	log.Infof("Record %d/%d sent", s.Fetched, e.Count)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
