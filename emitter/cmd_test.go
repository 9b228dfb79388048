package emitter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/jaffee/commandeer/pflag"
	pflag13 "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featurebasedb/edp/errors"
	"github.com/featurebasedb/edp/secrets"
	"github.com/featurebasedb/edp/stream"
)

func TestMainArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string

		StreamName    string
		StreamBackend string
		KafkaBrokers  []string
		Count         int
		Interval      time.Duration
	}{
		{
			name:          "empty",
			args:          []string{""},
			StreamName:    "UserData-Stream",
			StreamBackend: "kinesis",
			KafkaBrokers:  []string{"localhost:9092"},
			Count:         2,
			Interval:      5 * time.Second,
		},
		{
			name: "all-set",
			args: []string{
				"edp-emitter",
				"--stream-name", "other",
				"--stream-backend", "kafka",
				"--kafka-brokers", "k1:9092,k2:9092",
				"--count", "10",
				"--interval", "250ms",
			},
			StreamName:    "other",
			StreamBackend: "kafka",
			KafkaBrokers:  []string{"k1:9092", "k2:9092"},
			Count:         10,
			Interval:      250 * time.Millisecond,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := &pflag.FlagSet{FlagSet: pflag13.NewFlagSet(tc.args[0], pflag13.ExitOnError)}
			m := NewMain()
			if err := commandeer.LoadArgsEnv(fs, m, tc.args[1:], "EDP_EMITTER_", nil); err != nil {
				t.Fatal(err)
			}
			assert.Equal(t, tc.StreamName, m.StreamName)
			assert.Equal(t, tc.StreamBackend, m.StreamBackend)
			assert.Equal(t, tc.KafkaBrokers, m.KafkaBrokers)
			assert.Equal(t, tc.Count, m.Count)
			assert.Equal(t, tc.Interval, m.Interval)
		})
	}
}

func TestMainMissingSecretIsFatal(t *testing.T) {
	m := NewMain()
	m.newResolver = func(*Main) (secrets.Resolver, error) {
		return secrets.Static{"API_Credentials": {"OTHER": "x"}}, nil
	}
	published := false
	m.newPublisher = func(*Main) (stream.Publisher, error) {
		published = true
		return &fakePublisher{}, nil
	}

	err := m.RunContext(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingSecret))
	assert.False(t, published)
}

func TestMainRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "k" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"username": "jdoe", "email": "j@example.com"}`)
	}))
	defer srv.Close()

	cfgPath := filepath.Join(t.TempDir(), "pipeline.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf("record-source-url = %q\n[stream]\nname = \"from-file\"\n", srv.URL)), 0600))

	pub := &fakePublisher{}
	m := NewMain()
	m.Config = cfgPath
	m.Interval = 0
	m.newResolver = func(*Main) (secrets.Resolver, error) {
		return secrets.Static{"API_Credentials": {"API_KEY": "k"}}, nil
	}
	m.newPublisher = func(*Main) (stream.Publisher, error) { return pub, nil }

	require.NoError(t, m.RunContext(context.Background()))
	require.Len(t, pub.puts, 2)
	assert.Equal(t, "from-file", pub.puts[0].stream)
	assert.Equal(t, "jdoe", pub.puts[0].key)
	assert.Equal(t, "username,email\njdoe,j@example.com\n", pub.puts[0].data)
	assert.NotNil(t, m.Log())
}

func TestMainUnknownBackends(t *testing.T) {
	m := NewMain()
	m.SecretBackend = "nope"
	_, err := defaultResolver(m)
	assert.Error(t, err)

	m.StreamBackend = "nope"
	_, err = defaultPublisher(m)
	assert.Error(t, err)
}
