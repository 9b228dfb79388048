package objstore

import (
	"context"
	"net/url"
	"os"
	"strings"

	"github.com/featurebasedb/edp/errors"
)

// ParseURL splits an s3://bucket/key URL. ok is false for anything that is
// not an s3 URL.
func ParseURL(name string) (bucket, key string, ok bool, err error) {
	if !strings.HasPrefix(name, "s3://") {
		return "", "", false, nil
	}
	u, err := url.Parse(name)
	if err != nil {
		return "", "", true, errors.Wrapf(err, "parsing S3 URL %v", name)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", true, errors.Errorf("S3 URL %v needs a bucket and a key", name)
	}
	return u.Host, key, true, nil
}

// URL formats bucket and key as an s3 URL.
func URL(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

// ReadFileOrURL reads a path from the filesystem or an s3 URL. The store is
// required if reading an s3 URL. A missing file or object returns an error
// coded errors.ErrNotFound.
func ReadFileOrURL(ctx context.Context, name string, store ObjectStore) ([]byte, error) {
	bucket, key, isURL, err := ParseURL(name)
	if err != nil {
		return nil, err
	}
	if isURL {
		if store == nil {
			return nil, errors.New(errors.ErrUncoded, "missing object store")
		}
		obj, err := store.Get(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		return obj.Body, nil
	}

	content, err := os.ReadFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.WithCode(err, errors.ErrNotFound), "reading file %v", name)
		}
		return nil, errors.Wrapf(err, "reading file %v", name)
	}
	return content, nil
}

// WriteFileOrURL writes contents to a local path or an s3 URL.
func WriteFileOrURL(ctx context.Context, name string, contents []byte, store ObjectStore) error {
	bucket, key, isURL, err := ParseURL(name)
	if err != nil {
		return err
	}
	if isURL {
		if store == nil {
			return errors.New(errors.ErrUncoded, "missing object store")
		}
		_, err := store.Put(ctx, &PutInput{Bucket: bucket, Key: key, Body: contents})
		return err
	}
	if err := os.WriteFile(name, contents, 0o644); err != nil {
		return errors.Wrapf(err, "writing file %v", name)
	}
	return nil
}
