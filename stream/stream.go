// Package stream publishes encoded records to, and reads them back from, the
// ordered stream that sits between the emitter and the materializer.
package stream

import (
	"context"

	"github.com/aws/aws-sdk-go/service/kinesis"
)

// Publisher puts one record on a stream under a partition key. Records
// sharing a partition key are delivered in order.
type Publisher interface {
	Put(ctx context.Context, stream, partitionKey string, data []byte) error
}

// ShardRecord wraps a kinesis record with the shard it was read from.
type ShardRecord struct {
	ShardID string
	*kinesis.Record
}
