// Package materializer writes each stream record it is handed verbatim to
// the source bucket as a staging object.
package materializer

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/featurebasedb/edp/logger"
	"github.com/featurebasedb/edp/metrics"
	"github.com/featurebasedb/edp/objstore"
)

const contentType = "text/csv"

// SuccessBody is returned for every invocation.
const SuccessBody = "Successfully processed records"

// KeyFunc names the staging object for a record.
type KeyFunc func(prefix string) string

// DefaultKey returns <prefix>userdata_<unix seconds>_<uuid>.csv.
func DefaultKey(prefix string) string {
	return fmt.Sprintf("%suserdata_%d_%s.csv", prefix, time.Now().Unix(), uuid.New().String())
}

// Response is the invocation result.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
	Written    int    `json:"written"`
	Failed     int    `json:"failed"`
}

// Event is a Kinesis stream event as delivered to the function. Data is
// kept as its base64 text so that one undecodable record does not fail the
// decode of the whole batch.
type Event struct {
	Records []EventRecord `json:"Records"`
}

type EventRecord struct {
	EventSource string        `json:"eventSource"`
	EventID     string        `json:"eventID"`
	Kinesis     KinesisRecord `json:"kinesis"`
}

type KinesisRecord struct {
	Data           string `json:"data"`
	PartitionKey   string `json:"partitionKey"`
	SequenceNumber string `json:"sequenceNumber"`
}

type Materializer struct {
	Store  objstore.ObjectStore
	Bucket string
	Prefix string
	Key    KeyFunc
	Log    logger.Logger
}

// Handle writes each record of the event in delivery order. A record whose
// data does not decode, or whose write fails, is logged and counted in
// Failed; the remaining records are still written.
func (m *Materializer) Handle(ctx context.Context, event Event) (Response, error) {
	log := m.Log
	if log == nil {
		log = logger.NopLogger
	}
	keyFn := m.Key
	if keyFn == nil {
		keyFn = DefaultKey
	}

	resp := Response{StatusCode: 200, Body: SuccessBody}
	for _, rec := range event.Records {
		data, err := base64.StdEncoding.DecodeString(rec.Kinesis.Data)
		if err != nil {
			resp.Failed++
			metrics.CounterObjectsFailed.Inc()
			log.Errorf("Skipping record %s: decoding data: %v", rec.Kinesis.SequenceNumber, err)
			continue
		}
		key := keyFn(m.Prefix)
		info, err := m.Store.Put(ctx, &objstore.PutInput{
			Bucket:      m.Bucket,
			Key:         key,
			Body:        data,
			ContentType: contentType,
		})
		if err != nil {
			resp.Failed++
			metrics.CounterObjectsFailed.Inc()
			log.Errorf("Error storing record %s in %s: %v", rec.Kinesis.SequenceNumber, objstore.URL(m.Bucket, key), err)
			continue
		}
		resp.Written++
		metrics.CounterObjectsMaterialized.Inc()
		log.Infof("Successfully stored data in %s (etag %s)", objstore.URL(m.Bucket, key), info.ETag)
	}
	return resp, nil
}
