// Package replay re-delivers every record retained in a stream shard to the
// materializer function, one asynchronous invocation per record.
package replay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/pkg/errors"

	"github.com/featurebasedb/edp/logger"
	"github.com/featurebasedb/edp/stream"
)

// NoRecordsMessage is logged when the shard holds nothing to replay.
const NoRecordsMessage = "No records to process."

// RecordReader returns the records of a shard, oldest first. On error it
// returns what it read before the error.
type RecordReader interface {
	ReadAll(ctx context.Context) ([]stream.ShardRecord, error)
}

type Replayer struct {
	Reader  RecordReader
	Invoker Invoker

	Workers   int
	QueueSize int

	// Region and StreamARN are copied into each envelope.
	Region    string
	StreamARN string

	Log logger.Logger
}

// Run reads the shard and submits one single-record event per record. A
// read error still replays the records read before it and is returned.
func (r *Replayer) Run(ctx context.Context) (Report, error) {
	log := r.Log
	if log == nil {
		log = logger.NopLogger
	}

	records, readErr := r.Reader.ReadAll(ctx)
	if readErr != nil {
		log.Errorf("Error reading records from Kinesis: %v", readErr)
	}
	if len(records) == 0 {
		log.Infof(NoRecordsMessage)
		return Report{}, readErr
	}

	d := NewDispatcher(ctx, DispatcherConfig{Invoker: r.Invoker, Workers: r.Workers, QueueSize: r.QueueSize, Log: log})
	var encodeFailed int
	var submitErr error
	for _, rec := range records {
		payload, err := Envelope(rec, r.Region, r.StreamARN)
		if err != nil {
			encodeFailed++
			log.Errorf("Error encoding record %s: %v", aws.StringValue(rec.SequenceNumber), err)
			continue
		}
		if submitErr = d.Submit(ctx, payload); submitErr != nil {
			break
		}
	}
	rep := d.Wait()
	rep.Read = len(records)
	rep.Failed += encodeFailed
	log.Infof("Invoked Lambda with %d of %d records (%d failed)", rep.Sent, rep.Read, rep.Failed)

	if submitErr != nil {
		return rep, errors.Wrap(submitErr, "replay interrupted")
	}
	return rep, readErr
}

// Envelope wraps one shard record in the event shape the stream delivers to
// functions, so the materializer handles a replayed record exactly like a
// live one. The payload is base64 encoded by the JSON encoding of []byte.
func Envelope(rec stream.ShardRecord, region, streamARN string) ([]byte, error) {
	if rec.Record == nil {
		return nil, errors.New("empty record")
	}
	seq := aws.StringValue(rec.SequenceNumber)
	kr := events.KinesisRecord{
		Data:                 rec.Data,
		PartitionKey:         aws.StringValue(rec.PartitionKey),
		SequenceNumber:       seq,
		KinesisSchemaVersion: "1.0",
	}
	if rec.ApproximateArrivalTimestamp != nil {
		kr.ApproximateArrivalTimestamp = events.SecondsEpochTime{Time: *rec.ApproximateArrivalTimestamp}
	}
	if rec.EncryptionType != nil {
		kr.EncryptionType = aws.StringValue(rec.EncryptionType)
	}
	ev := events.KinesisEvent{Records: []events.KinesisEventRecord{{
		AwsRegion:      region,
		EventID:        fmt.Sprintf("%s:%s", rec.ShardID, seq),
		EventName:      "aws:kinesis:record",
		EventSource:    "aws:kinesis",
		EventSourceArn: streamARN,
		EventVersion:   "1.0",
		Kinesis:        kr,
	}}}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrap(err, "encoding event")
	}
	return data, nil
}
