package stream

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/pkg/errors"

	"github.com/featurebasedb/edp/logger"
)

// KinesisPublisher is a Publisher backed by a Kinesis data stream.
type KinesisPublisher struct {
	client kinesisiface.KinesisAPI
	log    logger.Logger
}

func NewKinesisPublisher(client kinesisiface.KinesisAPI, log logger.Logger) *KinesisPublisher {
	if log == nil {
		log = logger.NopLogger
	}
	return &KinesisPublisher{client: client, log: log}
}

func (p *KinesisPublisher) Put(ctx context.Context, stream, partitionKey string, data []byte) error {
	out, err := p.client.PutRecordWithContext(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(stream),
		PartitionKey: aws.String(partitionKey),
		Data:         data,
	})
	if err != nil {
		return errors.Wrapf(err, "putting record on %s", stream)
	}
	p.log.Debugf("put record on shard %s seq %s", aws.StringValue(out.ShardId), aws.StringValue(out.SequenceNumber))
	return nil
}
