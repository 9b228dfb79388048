// Package config holds the deployment settings shared by every program in
// the pipeline: resource names, region and the secret identifier. Values
// compiled in by Defaults can be overridden for a deployment with a TOML
// file passed as --config.
package config

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Pipeline names the managed resources the programs talk to.
type Pipeline struct {
	Region string `toml:"region"`

	Stream StreamConfig `toml:"stream"`

	SourceBucket  string `toml:"source-bucket"`
	StagingPrefix string `toml:"staging-prefix"`
	TargetBucket  string `toml:"target-bucket"`
	TargetKey     string `toml:"target-key"`

	CrawlerName         string `toml:"crawler-name"`
	SecretID            string `toml:"secret-id"`
	MaterializeFunction string `toml:"materialize-function"`
	RecordSourceURL     string `toml:"record-source-url"`
}

// StreamConfig identifies the stream records are published to and replayed
// from.
type StreamConfig struct {
	Name    string `toml:"name"`
	ShardID string `toml:"shard-id"`
}

// Defaults returns the settings of the reference deployment.
func Defaults() Pipeline {
	return Pipeline{
		Region: "us-east-1",
		Stream: StreamConfig{
			Name:    "UserData-Stream",
			ShardID: "shardId-000000000000",
		},
		SourceBucket:        "edp-source-120569637987",
		StagingPrefix:       "inbound/",
		TargetBucket:        "edp-target-120569637987",
		TargetKey:           "converted/combined_data.parquet",
		CrawlerName:         "user-data",
		SecretID:            "API_Credentials",
		MaterializeFunction: "KinesisToS3Processor",
		RecordSourceURL:     "https://api.api-ninjas.com/v1/randomuser",
	}
}

// Load returns Defaults overlaid with the non-empty values found in the TOML
// file at path. An empty path returns Defaults.
func Load(path string) (Pipeline, error) {
	p := Defaults()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, errors.Wrapf(err, "reading config file %s", path)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (Pipeline, error) {
	p := Defaults()
	var file Pipeline
	if err := toml.Unmarshal(data, &file); err != nil {
		return p, errors.Wrap(err, "decoding config")
	}
	p.merge(file)
	return p, nil
}

func (p *Pipeline) merge(o Pipeline) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.Region, o.Region)
	set(&p.Stream.Name, o.Stream.Name)
	set(&p.Stream.ShardID, o.Stream.ShardID)
	set(&p.SourceBucket, o.SourceBucket)
	set(&p.StagingPrefix, o.StagingPrefix)
	set(&p.TargetBucket, o.TargetBucket)
	set(&p.TargetKey, o.TargetKey)
	set(&p.CrawlerName, o.CrawlerName)
	set(&p.SecretID, o.SecretID)
	set(&p.MaterializeFunction, o.MaterializeFunction)
	set(&p.RecordSourceURL, o.RecordSourceURL)
}

// Validate reports the first setting that is empty but required by every
// program.
func (p Pipeline) Validate() error {
	switch {
	case p.Region == "":
		return errors.New("region is required")
	case p.Stream.Name == "":
		return errors.New("stream name is required")
	case p.SourceBucket == "":
		return errors.New("source bucket is required")
	case p.TargetBucket == "" || p.TargetKey == "":
		return errors.New("target bucket and key are required")
	}
	return nil
}

// Pick resolves one setting for a program that takes it both as a flag and
// from the pipeline file: a flag left at its built-in default yields to the
// file's value.
func Pick(flag, builtin, file string) string {
	if flag == builtin && file != "" {
		return file
	}
	return flag
}

// Marshal encodes p as a TOML document that Parse accepts.
func (p Pipeline) Marshal() ([]byte, error) {
	data, err := toml.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "encoding config")
	}
	return data, nil
}

// Keys returns the dotted names of every setting a pipeline file may hold,
// e.g. "stream.name".
func Keys() []string {
	data, err := toml.Marshal(Defaults())
	if err != nil {
		return nil
	}
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil
	}
	return treeKeys(tree, "")
}

func treeKeys(tree *toml.Tree, prefix string) []string {
	var keys []string
	for _, k := range tree.Keys() {
		if sub, ok := tree.Get(k).(*toml.Tree); ok {
			keys = append(keys, treeKeys(sub, prefix+k+".")...)
			continue
		}
		keys = append(keys, prefix+k)
	}
	return keys
}
