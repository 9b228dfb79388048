package materializer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jaffee/commandeer"
	"github.com/jaffee/commandeer/pflag"
	pflag13 "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featurebasedb/edp/errors"
	"github.com/featurebasedb/edp/logger"
	"github.com/featurebasedb/edp/objstore"
)

func kinesisEvent(payloads ...string) Event {
	var ev Event
	for i, p := range payloads {
		ev.Records = append(ev.Records, EventRecord{
			EventSource: "aws:kinesis",
			Kinesis: KinesisRecord{
				Data:           base64.StdEncoding.EncodeToString([]byte(p)),
				PartitionKey:   "k",
				SequenceNumber: fmt.Sprint(i + 1),
			},
		})
	}
	return ev
}

func sequentialKeys() KeyFunc {
	n := 0
	return func(prefix string) string {
		n++
		return fmt.Sprintf("%suserdata_%d.csv", prefix, n)
	}
}

func TestHandleWritesEachRecord(t *testing.T) {
	store := objstore.NewMemStore()
	m := &Materializer{Store: store, Bucket: "src", Prefix: "inbound/", Key: sequentialKeys(), Log: logger.NewLogfLogger(t)}

	resp, err := m.Handle(context.Background(), kinesisEvent("username\nalice\n", "username\nbob\n"))
	require.NoError(t, err)
	assert.Equal(t, Response{StatusCode: 200, Body: SuccessBody, Written: 2}, resp)

	assert.Equal(t, []string{"inbound/userdata_1.csv", "inbound/userdata_2.csv"}, store.Keys("src", "inbound/"))
	obj, err := store.Get(context.Background(), "src", "inbound/userdata_2.csv")
	require.NoError(t, err)
	assert.Equal(t, "username\nbob\n", string(obj.Body))
	assert.Equal(t, "text/csv", obj.ContentType)
}

func TestHandleContinuesAfterFailedWrite(t *testing.T) {
	store := objstore.NewMemStore()
	store.BeforePut = func(in *objstore.PutInput) error {
		if in.Key == "inbound/userdata_1.csv" {
			return errors.New(errors.ErrUncoded, "slow down")
		}
		return nil
	}
	m := &Materializer{Store: store, Bucket: "src", Prefix: "inbound/", Key: sequentialKeys()}

	resp, err := m.Handle(context.Background(), kinesisEvent("a\n1\n", "a\n2\n"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, resp.Written)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, []string{"inbound/userdata_2.csv"}, store.Keys("src", "inbound/"))
}

func TestHandleEmptyEvent(t *testing.T) {
	m := &Materializer{Store: objstore.NewMemStore(), Bucket: "src", Prefix: "inbound/"}
	resp, err := m.Handle(context.Background(), Event{})
	require.NoError(t, err)
	assert.Equal(t, Response{StatusCode: 200, Body: SuccessBody}, resp)
}

func TestHandleSkipsUndecodableRecord(t *testing.T) {
	good := base64.StdEncoding.EncodeToString([]byte("username\nalice\n"))
	payload := `{"Records":[
		{"eventSource":"aws:kinesis","kinesis":{"data":"` + good + `","sequenceNumber":"1"}},
		{"eventSource":"aws:kinesis","kinesis":{"data":"!!not-base64!!","sequenceNumber":"2"}},
		{"eventSource":"aws:kinesis","kinesis":{"data":"` + good + `","sequenceNumber":"3"}}
	]}`
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(payload), &ev))

	store := objstore.NewMemStore()
	m := &Materializer{Store: store, Bucket: "src", Prefix: "inbound/", Key: sequentialKeys()}
	resp, err := m.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, Response{StatusCode: 200, Body: SuccessBody, Written: 2, Failed: 1}, resp)
	assert.Equal(t, []string{"inbound/userdata_1.csv", "inbound/userdata_2.csv"}, store.Keys("src", "inbound/"))
}

// Events built by the replay utility decode into Event.
func TestEventMatchesLambdaShape(t *testing.T) {
	src := events.KinesisEvent{Records: []events.KinesisEventRecord{{
		EventSource: "aws:kinesis",
		EventID:     "shardId-000000000000:7",
		Kinesis:     events.KinesisRecord{Data: []byte("a\n1\n"), SequenceNumber: "7", PartitionKey: "k"},
	}}}
	data, err := json.Marshal(src)
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	require.Len(t, ev.Records, 1)
	assert.Equal(t, "shardId-000000000000:7", ev.Records[0].EventID)
	assert.Equal(t, "7", ev.Records[0].Kinesis.SequenceNumber)
	got, err := base64.StdEncoding.DecodeString(ev.Records[0].Kinesis.Data)
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", string(got))
}

func TestDefaultKey(t *testing.T) {
	re := regexp.MustCompile(`^inbound/userdata_\d+_[0-9a-f-]{36}\.csv$`)
	a, b := DefaultKey("inbound/"), DefaultKey("inbound/")
	assert.Regexp(t, re, a)
	assert.NotEqual(t, a, b)
}

func TestMainArgs(t *testing.T) {
	fs := &pflag.FlagSet{FlagSet: pflag13.NewFlagSet("edp-materializer", pflag13.ExitOnError)}
	m := NewMain()
	err := commandeer.LoadArgsEnv(fs, m, []string{"--source-bucket", "other", "--staging-prefix", "in/"}, "EDP_MATERIALIZER_", nil)
	require.NoError(t, err)

	mat, err := m.Setup(objstore.NewMemStore())
	require.NoError(t, err)
	assert.Equal(t, "other", mat.Bucket)
	assert.Equal(t, "in/", mat.Prefix)

	m = NewMain()
	m.LogLevel = "loud"
	_, err = m.Setup(objstore.NewMemStore())
	assert.Error(t, err)
}
