package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/featurebasedb/edp/logger"
	"github.com/featurebasedb/edp/mocks"
	"github.com/featurebasedb/edp/stream"
)

type fakeReader struct {
	records []stream.ShardRecord
	err     error
}

func (f *fakeReader) ReadAll(ctx context.Context) ([]stream.ShardRecord, error) {
	return f.records, f.err
}

func shardRecords(payloads ...string) []stream.ShardRecord {
	var out []stream.ShardRecord
	arrival := time.Unix(1700000000, 0).UTC()
	for i, p := range payloads {
		out = append(out, stream.ShardRecord{
			ShardID: "shardId-000000000000",
			Record: &kinesis.Record{
				Data:                        []byte(p),
				PartitionKey:                aws.String("user"),
				SequenceNumber:              aws.String(fmt.Sprint(i + 1)),
				ApproximateArrivalTimestamp: &arrival,
			},
		})
	}
	return out
}

// recordingInvoker keeps the payloads it was given and fails those listed.
type recordingInvoker struct {
	mu       sync.Mutex
	payloads [][]byte
	fail     map[string]bool

	active, peak int32
}

func (r *recordingInvoker) Invoke(ctx context.Context, payload []byte) error {
	n := atomic.AddInt32(&r.active, 1)
	defer atomic.AddInt32(&r.active, -1)
	for {
		p := atomic.LoadInt32(&r.peak)
		if n <= p || atomic.CompareAndSwapInt32(&r.peak, p, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	var ev events.KinesisEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	if r.fail[string(ev.Records[0].Kinesis.Data)] {
		return errors.New("throttled")
	}
	return nil
}

func TestEnvelope(t *testing.T) {
	rec := shardRecords("username,age\nalice,30\n")[0]
	data, err := Envelope(rec, "us-east-1", "arn:aws:kinesis:us-east-1:1:stream/UserData-Stream")
	require.NoError(t, err)

	var raw map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw["Records"], 1)
	assert.Equal(t, "aws:kinesis", raw["Records"][0]["eventSource"])
	kin := raw["Records"][0]["kinesis"].(map[string]interface{})
	assert.Equal(t, "dXNlcm5hbWUsYWdlCmFsaWNlLDMwCg==", kin["data"])

	var ev events.KinesisEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	got := ev.Records[0]
	assert.Equal(t, "username,age\nalice,30\n", string(got.Kinesis.Data))
	assert.Equal(t, "user", got.Kinesis.PartitionKey)
	assert.Equal(t, "1", got.Kinesis.SequenceNumber)
	assert.Equal(t, "shardId-000000000000:1", got.EventID)
	assert.Equal(t, int64(1700000000), got.Kinesis.ApproximateArrivalTimestamp.Unix())

	_, err = Envelope(stream.ShardRecord{}, "", "")
	assert.Error(t, err)
}

func TestRunEmptyShard(t *testing.T) {
	inv := &recordingInvoker{}
	log := logger.NewBufferLogger()
	r := &Replayer{Reader: &fakeReader{}, Invoker: inv, Log: log}

	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, rep)
	assert.Empty(t, inv.payloads)
	assert.Contains(t, log.String(), NoRecordsMessage)
}

func TestRunInvokesEachRecord(t *testing.T) {
	inv := &recordingInvoker{fail: map[string]bool{"c": true}}
	r := &Replayer{Reader: &fakeReader{records: shardRecords("a", "b", "c", "d", "e")}, Invoker: inv, Workers: 2, QueueSize: 1, Log: logger.NewLogfLogger(t)}

	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Read: 5, Sent: 4, Failed: 1}, rep)
	assert.Len(t, inv.payloads, 5)
	assert.LessOrEqual(t, atomic.LoadInt32(&inv.peak), int32(2))
}

func TestRunReplaysPartialReadAndReportsError(t *testing.T) {
	inv := &recordingInvoker{}
	readErr := errors.New("ProvisionedThroughputExceededException")
	r := &Replayer{Reader: &fakeReader{records: shardRecords("a", "b"), err: readErr}, Invoker: inv}

	rep, err := r.Run(context.Background())
	assert.Equal(t, readErr, err)
	assert.Equal(t, Report{Read: 2, Sent: 2}, rep)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	inv := invokerFunc(func(ctx context.Context, payload []byte) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	r := &Replayer{Reader: &fakeReader{records: shardRecords("a", "b", "c", "d")}, Invoker: inv, Workers: 1, QueueSize: 1}

	rep, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Report{Read: 4}, rep)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

type invokerFunc func(ctx context.Context, payload []byte) error

func (f invokerFunc) Invoke(ctx context.Context, payload []byte) error { return f(ctx, payload) }

func TestLambdaInvoker(t *testing.T) {
	client := &mocks.LambdaAPI{}
	client.On("InvokeWithContext", mock.Anything, mock.MatchedBy(func(in *lambda.InvokeInput) bool {
		return *in.FunctionName == "KinesisToS3Processor" && *in.InvocationType == "Event" && string(in.Payload) == "ok"
	})).Return(&lambda.InvokeOutput{StatusCode: aws.Int64(202)}, nil)
	client.On("InvokeWithContext", mock.Anything, mock.MatchedBy(func(in *lambda.InvokeInput) bool {
		return string(in.Payload) == "denied"
	})).Return(nil, awserr.New("AccessDeniedException", "denied", nil))
	client.On("InvokeWithContext", mock.Anything, mock.MatchedBy(func(in *lambda.InvokeInput) bool {
		return string(in.Payload) == "unhandled"
	})).Return(&lambda.InvokeOutput{StatusCode: aws.Int64(200), FunctionError: aws.String("Unhandled")}, nil)

	inv := &LambdaInvoker{Client: client, Function: "KinesisToS3Processor"}
	assert.NoError(t, inv.Invoke(context.Background(), []byte("ok")))
	assert.Error(t, inv.Invoke(context.Background(), []byte("denied")))
	assert.Error(t, inv.Invoke(context.Background(), []byte("unhandled")))
}

func TestDispatcherDefaults(t *testing.T) {
	inv := &recordingInvoker{}
	d := NewDispatcher(context.Background(), DispatcherConfig{Invoker: inv})
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Submit(context.Background(), []byte(`{"Records":[{"kinesis":{"data":"eA=="}}]}`)))
	}
	assert.Equal(t, Report{Sent: 10}, d.Wait())
	assert.LessOrEqual(t, atomic.LoadInt32(&inv.peak), int32(defaultWorkers))
}
