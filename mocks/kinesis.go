package mocks

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/stretchr/testify/mock"
)

type KinesisAPI struct {
	mock.Mock
	kinesisiface.KinesisAPI
}

func (m *KinesisAPI) PutRecordWithContext(ctx aws.Context, in *kinesis.PutRecordInput, opts ...request.Option) (*kinesis.PutRecordOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*kinesis.PutRecordOutput)
	return out, args.Error(1)
}

func (m *KinesisAPI) GetShardIteratorWithContext(ctx aws.Context, in *kinesis.GetShardIteratorInput, opts ...request.Option) (*kinesis.GetShardIteratorOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*kinesis.GetShardIteratorOutput)
	return out, args.Error(1)
}

func (m *KinesisAPI) GetRecordsWithContext(ctx aws.Context, in *kinesis.GetRecordsInput, opts ...request.Option) (*kinesis.GetRecordsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*kinesis.GetRecordsOutput)
	return out, args.Error(1)
}
