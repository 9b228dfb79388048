package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	p := Defaults()
	assert.Equal(t, "us-east-1", p.Region)
	assert.Equal(t, "UserData-Stream", p.Stream.Name)
	assert.Equal(t, "inbound/", p.StagingPrefix)
	assert.Equal(t, "converted/combined_data.parquet", p.TargetKey)
	assert.NoError(t, p.Validate())
}

func TestParseOverridesOnlySetValues(t *testing.T) {
	doc := `
region = "eu-west-1"
target-bucket = "my-target"

[stream]
name = "other-stream"
`
	p, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", p.Region)
	assert.Equal(t, "my-target", p.TargetBucket)
	assert.Equal(t, "other-stream", p.Stream.Name)
	// untouched
	assert.Equal(t, "shardId-000000000000", p.Stream.ShardID)
	assert.Equal(t, "edp-source-120569637987", p.SourceBucket)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("region = ["))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), p)

	path := filepath.Join(t.TempDir(), "pipeline.toml")
	require.NoError(t, os.WriteFile(path, []byte(`crawler-name = "nightly"`), 0o600))
	p, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nightly", p.CrawlerName)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	p := Defaults()
	p.TargetKey = ""
	assert.EqualError(t, p.Validate(), "target bucket and key are required")
}

func TestPick(t *testing.T) {
	assert.Equal(t, "file", Pick("builtin", "builtin", "file"))
	assert.Equal(t, "flag", Pick("flag", "builtin", "file"))
	assert.Equal(t, "builtin", Pick("builtin", "builtin", ""))
}

func TestMarshalRoundTrip(t *testing.T) {
	p := Defaults()
	p.TargetKey = "converted/other.parquet"
	data, err := p.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "target-key")

	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "region")
	assert.Contains(t, keys, "stream.name")
	assert.Contains(t, keys, "stream.shard-id")
	assert.Contains(t, keys, "target-key")
	assert.NotContains(t, keys, "stream")
}
