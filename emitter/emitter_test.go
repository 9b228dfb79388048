package emitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featurebasedb/edp/logger"
	"github.com/featurebasedb/edp/record"
)

type fetchResult struct {
	json string
	err  error
}

type fakeSource struct {
	results []fetchResult
	calls   int
}

func (f *fakeSource) Fetch(ctx context.Context) (record.Record, error) {
	r := f.results[f.calls%len(f.results)]
	f.calls++
	if r.err != nil {
		return record.Record{}, r.err
	}
	return record.Decode([]byte(r.json))
}

type put struct {
	stream, key, data string
}

type fakePublisher struct {
	puts []put
	err  error
}

func (f *fakePublisher) Put(ctx context.Context, stream, key string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.puts = append(f.puts, put{stream, key, string(data)})
	return nil
}

func newTestEmitter(t *testing.T, src Fetcher, pub *fakePublisher, sleeps *[]time.Duration) *Emitter {
	return &Emitter{
		Source:    src,
		Publisher: pub,
		Stream:    "UserData-Stream",
		Count:     2,
		Interval:  5 * time.Second,
		Log:       logger.NewLogfLogger(t),
		sleep: func(ctx context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			return ctx.Err()
		},
	}
}

func TestRunPublishesCount(t *testing.T) {
	src := &fakeSource{results: []fetchResult{
		{json: `{"username": "alice", "age": 30}`},
		{json: `{"username": "bob", "age": 41}`},
	}}
	pub := &fakePublisher{}
	var sleeps []time.Duration
	e := newTestEmitter(t, src, pub, &sleeps)

	s, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Attempts: 2, Fetched: 2, Published: 2}, s)
	assert.Equal(t, []put{
		{"UserData-Stream", "alice", "username,age\nalice,30\n"},
		{"UserData-Stream", "bob", "username,age\nbob,41\n"},
	}, pub.puts)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, sleeps)
}

func TestRunSkipsFailedFetches(t *testing.T) {
	src := &fakeSource{results: []fetchResult{
		{err: errors.New("status 502")},
		{json: `{"name": "no username"}`},
	}}
	pub := &fakePublisher{}
	var sleeps []time.Duration
	e := newTestEmitter(t, src, pub, &sleeps)

	s, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, s.Attempts)
	assert.Equal(t, 2, s.Fetched)
	assert.Equal(t, 2, s.FetchFailures)
	assert.Len(t, sleeps, 4, "sleeps after failed iterations too")
	for _, p := range pub.puts {
		assert.Equal(t, "default_username", p.key)
	}
}

func TestRunPublishFailureStillCounts(t *testing.T) {
	src := &fakeSource{results: []fetchResult{{json: `{"username": "alice"}`}}}
	pub := &fakePublisher{err: errors.New("throttled")}
	var sleeps []time.Duration
	e := newTestEmitter(t, src, pub, &sleeps)

	s, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Attempts: 2, Fetched: 2, PublishFailures: 2}, s)
}

func TestRunEncodeFailureNotCounted(t *testing.T) {
	src := &fakeSource{results: []fetchResult{
		{json: `{}`},
		{json: `{"username": "alice"}`},
	}}
	pub := &fakePublisher{}
	var sleeps []time.Duration
	e := newTestEmitter(t, src, pub, &sleeps)
	e.Count = 1
	e.MaxAttempts = 5

	s, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Attempts: 2, Fetched: 1, Published: 1, EncodeFailures: 1}, s)
	assert.Equal(t, []put{{"UserData-Stream", "alice", "username\nalice\n"}}, pub.puts)
	assert.Len(t, sleeps, 2)
}

func TestRunMaxAttempts(t *testing.T) {
	src := &fakeSource{results: []fetchResult{{err: errors.New("down")}}}
	pub := &fakePublisher{}
	var sleeps []time.Duration
	e := newTestEmitter(t, src, pub, &sleeps)
	e.MaxAttempts = 3

	s, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Attempts: 3, FetchFailures: 3}, s)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{results: []fetchResult{{err: errors.New("down")}}}
	pub := &fakePublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Emitter{
		Source:    src,
		Publisher: pub,
		Count:     1,
		Interval:  time.Hour,
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	s, err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, s.Attempts)
}
