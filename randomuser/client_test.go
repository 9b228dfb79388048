package randomuser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featurebasedb/edp/errors"
	"github.com/featurebasedb/edp/logger"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error": "Invalid API Key."}`)
			return
		}
		fmt.Fprint(w, `{"sex": "M", "name": "Juan Doe", "username": "jdoe", "age": 40}`)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, APIKey: "secret", Log: logger.NewLogfLogger(t)})
	rec, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sex", "name", "username", "age"}, rec.Names())
	assert.Equal(t, "jdoe", rec.PartitionKey())

	bad := NewClient(Config{URL: srv.URL, APIKey: "wrong"})
	_, err = bad.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUpstream))
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Invalid API Key")
}

func TestFetchServerErrorNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream down")
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, APIKey: "k"})
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUpstream))
	assert.Contains(t, err.Error(), "upstream down")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchNotAnObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"username": "x"}]`)
	}))
	defer srv.Close()

	_, err := NewClient(Config{URL: srv.URL}).Fetch(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrUpstream))
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(Config{URL: url}).Fetch(context.Background())
	assert.Error(t, err)
}
