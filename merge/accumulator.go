// Package merge folds staging objects, announced through queued storage
// notifications, into the single accumulated parquet object.
package merge

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/featurebasedb/edp/columnar"
	"github.com/featurebasedb/edp/errors"
	"github.com/featurebasedb/edp/logger"
	"github.com/featurebasedb/edp/metrics"
	"github.com/featurebasedb/edp/objstore"
)

// MergedObjectsKey is the parquet key/value metadata entry listing, as a
// JSON array, the staging keys already folded into the accumulated object.
const MergedObjectsKey = "edp.merged_objects"

// DefaultMaxConflictRetries bounds how often a merge restarts after losing
// a conditional write.
const DefaultMaxConflictRetries = 3

const parquetContentType = "application/vnd.apache.parquet"

// Accumulator merges staging objects from SourceBucket into
// TargetBucket/TargetKey.
type Accumulator struct {
	Store         objstore.ObjectStore
	SourceBucket  string
	StagingPrefix string
	TargetBucket  string
	TargetKey     string

	// MaxConflictRetries is how many times a lost conditional write is
	// retried. Zero disables retries; Main defaults it to
	// DefaultMaxConflictRetries.
	MaxConflictRetries int

	// DeleteMerged removes a staging object once it has been merged.
	DeleteMerged bool

	// TempDir holds downloaded staging objects. Empty means os.TempDir().
	TempDir string

	Log logger.Logger
}

// Result describes one MergeOne call.
type Result struct {
	Key string
	// Rows is the number of rows read from the staging object.
	Rows int
	// TotalRows is the accumulated object's row count after the merge.
	TotalRows int
	// Created is set when the accumulated object did not exist before.
	Created bool
	// Duplicate is set when the key had already been merged; nothing was
	// written.
	Duplicate bool
	// Attempts counts read-modify-write cycles, including the final one.
	Attempts int
}

// Report summarizes one ProcessNotification call.
type Report struct {
	Records   int
	Merged    int
	Duplicate int
	Empty     int
	Malformed int
	Skipped   int
	// Failed lists the queue message ids whose merge returned an error.
	Failed []string
}

func (a *Accumulator) log() logger.Logger {
	if a.Log == nil {
		return logger.NopLogger
	}
	return a.Log
}

func (a *Accumulator) maxRetries() int {
	if a.MaxConflictRetries < 0 {
		return 0
	}
	return a.MaxConflictRetries
}

// ProcessNotification merges every staging object announced by the queue
// event. Empty and malformed envelopes are logged and skipped, as are events
// for other buckets or for keys outside the staging prefix. Each matching
// record is merged even if an earlier one failed; the first merge error is
// returned.
func (a *Accumulator) ProcessNotification(ctx context.Context, event events.SQSEvent) (Report, error) {
	log := a.log()
	rep := Report{Records: len(event.Records)}
	var firstErr error

	for _, u := range Unwrap(event) {
		switch u.Outcome {
		case Empty:
			rep.Empty++
			log.Infof("No records found in notification %s", u.MessageID)
			continue
		case Malformed:
			rep.Malformed++
			log.Warnf("Skipping message %s: %v", u.MessageID, u.Err)
			continue
		}
		if u.Bucket != a.SourceBucket || !strings.HasPrefix(u.Key, a.StagingPrefix) {
			rep.Skipped++
			log.Debugf("Ignoring %s: not a staging object of %s", objstore.URL(u.Bucket, u.Key), a.SourceBucket)
			continue
		}

		res, err := a.MergeOne(ctx, u.Key)
		if err != nil {
			rep.Failed = append(rep.Failed, u.MessageID)
			log.Errorf("Error processing %s: %v", objstore.URL(u.Bucket, u.Key), err)
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "merging %s", u.Key)
			}
			continue
		}
		if res.Duplicate {
			rep.Duplicate++
		} else {
			rep.Merged++
		}
	}
	return rep, firstErr
}

// MergeOne appends the rows of the staging object at key to the accumulated
// object. The write is conditional on the object not having changed since
// it was read; a lost write restarts from the read.
func (a *Accumulator) MergeOne(ctx context.Context, key string) (Result, error) {
	log := a.log()
	res := Result{Key: key}
	log.Infof("Processing file: %s from bucket: %s", key, a.SourceBucket)

	incoming, err := a.readStaging(ctx, key)
	if err != nil {
		// a redelivered notification may name a staging object that was
		// merged and then deleted
		if errors.Is(err, errors.ErrNotFound) && a.alreadyMerged(ctx, key, &res) {
			return res, nil
		}
		return res, err
	}
	res.Rows = incoming.NumRows()

	retries := a.maxRetries()
	for {
		res.Attempts++
		err := a.mergeAttempt(ctx, key, incoming, &res)
		if err == nil {
			if !res.Duplicate {
				a.cleanup(ctx, key)
			}
			return res, nil
		}
		if !errors.Is(err, errors.ErrPreconditionFailed) || res.Attempts > retries {
			return res, err
		}
		metrics.CounterConflictsRetried.Inc()
		log.Warnf("Accumulated object changed while merging %s, retrying (%d/%d)", key, res.Attempts, retries)
	}
}

// mergeAttempt runs one read-modify-write cycle.
func (a *Accumulator) mergeAttempt(ctx context.Context, key string, incoming *columnar.Table, res *Result) error {
	log := a.log()

	existing, etag, err := a.readTarget(ctx)
	if err != nil {
		return err
	}

	var merged []string
	var final *columnar.Table
	if existing != nil {
		merged, err = MergedKeys(existing)
		if err != nil {
			return err
		}
		if contains(merged, key) {
			res.Duplicate = true
			res.TotalRows = existing.NumRows()
			metrics.CounterDuplicatesSkipped.Inc()
			log.Infof("%s was already merged, skipping", key)
			return nil
		}
		log.Infof("Existing Parquet file found. Merging with new data...")
		if final, err = columnar.Concat(existing, incoming); err != nil {
			return errors.Wrap(err, "merging rows")
		}
	} else {
		log.Infof("No existing Parquet file found. Creating a new one.")
		// don't stamp the staging table itself; a retry reuses it
		final = &columnar.Table{Schema: incoming.Schema, Rows: incoming.Rows, Metadata: map[string]string{}}
		for k, v := range incoming.Metadata {
			final.Metadata[k] = v
		}
	}
	if err := setMergedKeys(final, append(merged, key)); err != nil {
		return err
	}

	body, err := columnar.EncodeParquet(final)
	if err != nil {
		return errors.Wrap(err, "encoding accumulated object")
	}
	in := &objstore.PutInput{
		Bucket:      a.TargetBucket,
		Key:         a.TargetKey,
		Body:        body,
		ContentType: parquetContentType,
	}
	if existing == nil {
		in.IfNoneMatch = objstore.AnyETag
	} else {
		in.IfMatch = etag
	}
	if _, err := a.Store.Put(ctx, in); err != nil {
		return errors.Wrap(err, "writing accumulated object")
	}

	res.Created = existing == nil
	res.TotalRows = final.NumRows()
	metrics.CounterMerges.Inc()
	metrics.CounterRowsMerged.Add(float64(incoming.NumRows()))
	log.Infof("Successfully updated Parquet file in %s", objstore.URL(a.TargetBucket, a.TargetKey))
	return nil
}

// readStaging downloads the staging object to a temporary file and decodes
// it.
func (a *Accumulator) readStaging(ctx context.Context, key string) (*columnar.Table, error) {
	f, err := os.CreateTemp(a.TempDir, "staging-*.csv")
	if err != nil {
		return nil, errors.Wrap(err, "creating temp file")
	}
	defer func() {
		f.Close()
		os.Remove(f.Name())
	}()

	if _, err := a.Store.Download(ctx, a.SourceBucket, key, f); err != nil {
		return nil, errors.Wrap(err, "fetching staging object")
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, errors.Wrap(err, "rewinding temp file")
	}
	t, err := columnar.ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding staging object %s", key)
	}
	return t, nil
}

// readTarget returns the accumulated object and the ETag it was read at, or
// a nil table when it does not exist yet.
func (a *Accumulator) readTarget(ctx context.Context) (*columnar.Table, string, error) {
	if _, err := a.Store.Head(ctx, a.TargetBucket, a.TargetKey); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", errors.Wrap(err, "checking accumulated object")
	}
	obj, err := a.Store.Get(ctx, a.TargetBucket, a.TargetKey)
	if err != nil {
		// deleted between head and get
		if errors.Is(err, errors.ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", errors.Wrap(err, "reading accumulated object")
	}
	t, err := columnar.DecodeParquet(ctx, obj.Body)
	if err != nil {
		return nil, "", errors.Wrap(err, "decoding accumulated object")
	}
	return t, obj.ETag, nil
}

func (a *Accumulator) alreadyMerged(ctx context.Context, key string, res *Result) bool {
	existing, _, err := a.readTarget(ctx)
	if err != nil || existing == nil {
		return false
	}
	keys, err := MergedKeys(existing)
	if err != nil || !contains(keys, key) {
		return false
	}
	res.Duplicate = true
	res.TotalRows = existing.NumRows()
	metrics.CounterDuplicatesSkipped.Inc()
	a.log().Infof("%s was already merged, skipping", key)
	return true
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func (a *Accumulator) cleanup(ctx context.Context, key string) {
	if !a.DeleteMerged {
		return
	}
	if err := a.Store.Delete(ctx, a.SourceBucket, key); err != nil {
		a.log().Warnf("Could not delete merged staging object %s: %v", objstore.URL(a.SourceBucket, key), err)
	}
}

// MergedKeys returns the staging keys recorded in t's metadata.
func MergedKeys(t *columnar.Table) ([]string, error) {
	raw, ok := t.Metadata[MergedObjectsKey]
	if !ok || raw == "" {
		return nil, nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, errors.Wrapf(err, "decoding %s metadata", MergedObjectsKey)
	}
	return keys, nil
}

func setMergedKeys(t *columnar.Table, keys []string) error {
	data, err := json.Marshal(keys)
	if err != nil {
		return errors.Wrap(err, "encoding merged keys")
	}
	if t.Metadata == nil {
		t.Metadata = make(map[string]string)
	}
	t.Metadata[MergedObjectsKey] = string(data)
	return nil
}
