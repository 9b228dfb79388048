package stream

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/featurebasedb/edp/awsutil"
	"github.com/featurebasedb/edp/logger"
)

const (
	defaultGetRecordsBatchSize        = 100
	defaultGetRecordsQueriesPerSecond = 5

	// expired iterators are re-acquired at most this many times per read
	maxIteratorRefreshes = 3
)

// ShardReaderConfig configures a ShardReader. Zero BatchSize and
// QueriesPerSecond take the defaults.
type ShardReaderConfig struct {
	Log              logger.Logger
	Client           kinesisiface.KinesisAPI
	StreamName       string
	ShardID          string
	BatchSize        int
	QueriesPerSecond float64
}

// ShardReader reads one shard from its oldest retained record.
type ShardReader struct {
	ShardReaderConfig
	limiter *rate.Limiter
}

func NewShardReader(cfg ShardReaderConfig) *ShardReader {
	if cfg.Log == nil {
		cfg.Log = logger.NopLogger
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultGetRecordsBatchSize
	}
	if cfg.QueriesPerSecond <= 0 {
		cfg.QueriesPerSecond = defaultGetRecordsQueriesPerSecond
	}
	return &ShardReader{
		ShardReaderConfig: cfg,
		limiter:           rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), 1),
	}
}

func (r *ShardReader) getShardIterator(ctx context.Context, afterSequence string) (*string, error) {
	in := &kinesis.GetShardIteratorInput{
		ShardId:           aws.String(r.ShardID),
		ShardIteratorType: aws.String(kinesis.ShardIteratorTypeTrimHorizon),
		StreamName:        aws.String(r.StreamName),
	}
	if afterSequence != "" {
		r.Log.Infof("Shard %s will resume after sequence number %s", r.ShardID, afterSequence)
		in.ShardIteratorType = aws.String(kinesis.ShardIteratorTypeAfterSequenceNumber)
		in.StartingSequenceNumber = aws.String(afterSequence)
	}
	out, err := r.Client.GetShardIteratorWithContext(ctx, in)
	if err != nil {
		return nil, errors.Wrapf(err, "getting iterator for shard %s", r.ShardID)
	}
	return out.ShardIterator, nil
}

// ReadAll returns the records in the shard, oldest first. Reading stops at
// the first empty batch or when the shard is closed. On error the records
// read so far are returned with it.
func (r *ShardReader) ReadAll(ctx context.Context) ([]ShardRecord, error) {
	r.Log.Infof("Getting iterator for shard %s", r.ShardID)
	iter, err := r.getShardIterator(ctx, "")
	if err != nil {
		return nil, err
	}

	var records []ShardRecord
	var lastSequence string
	refreshes := 0
	for iter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return records, errors.Wrap(err, "waiting for shard reader limiter")
		}
		out, err := r.Client.GetRecordsWithContext(ctx, &kinesis.GetRecordsInput{
			Limit:         aws.Int64(int64(r.BatchSize)),
			ShardIterator: iter,
		})
		if err != nil {
			if awsutil.ErrorCode(err) == kinesis.ErrCodeExpiredIteratorException && refreshes < maxIteratorRefreshes {
				refreshes++
				r.Log.Warnf("Shard iterator expired for shard %s", r.ShardID)
				if iter, err = r.getShardIterator(ctx, lastSequence); err != nil {
					return records, err
				}
				continue
			}
			return records, errors.Wrapf(err, "getting records from shard %s", r.ShardID)
		}
		if len(out.Records) == 0 {
			break
		}
		r.Log.Debugf("Read %d records from shard %s", len(out.Records), r.ShardID)
		for _, rec := range out.Records {
			records = append(records, ShardRecord{ShardID: r.ShardID, Record: rec})
			lastSequence = aws.StringValue(rec.SequenceNumber)
		}
		iter = out.NextShardIterator
	}
	return records, nil
}
