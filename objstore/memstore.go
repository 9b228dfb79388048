package objstore

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/featurebasedb/edp/errors"
)

// MemStore is an in-memory ObjectStore with S3's conditional-write
// semantics. It is used by tests and by dry runs.
type MemStore struct {
	mu      sync.Mutex
	objects map[string]*memObject
	gen     int

	// BeforePut, when set, runs before each Put is applied. A non-nil
	// return fails the Put. It is called without the store lock held, so
	// it may write to the store itself (to play a concurrent writer).
	BeforePut func(in *PutInput) error
	// BeforeGet is BeforePut for Get, Head and Download.
	BeforeGet func(bucket, key string) error
}

type memObject struct {
	info ObjectInfo
	body []byte
}

var _ ObjectStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string]*memObject)}
}

func memKey(bucket, key string) string { return bucket + "/" + key }

func (m *MemStore) lookup(bucket, key string) (*memObject, error) {
	if m.BeforeGet != nil {
		if err := m.BeforeGet(bucket, key); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[memKey(bucket, key)]
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "object not found: s3://%s/%s", bucket, key)
	}
	return obj, nil
}

func (m *MemStore) Get(ctx context.Context, bucket, key string) (*Object, error) {
	obj, err := m.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	body := make([]byte, len(obj.body))
	copy(body, obj.body)
	return &Object{ObjectInfo: obj.info, Body: body}, nil
}

func (m *MemStore) Head(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	obj, err := m.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	info := obj.info
	return &info, nil
}

func (m *MemStore) Download(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error) {
	obj, err := m.lookup(bucket, key)
	if err != nil {
		return 0, err
	}
	n, err := w.WriteAt(obj.body, 0)
	return int64(n), err
}

func (m *MemStore) Put(ctx context.Context, in *PutInput) (*ObjectInfo, error) {
	if m.BeforePut != nil {
		if err := m.BeforePut(in); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memKey(in.Bucket, in.Key)
	cur, exists := m.objects[k]
	if in.IfNoneMatch == AnyETag && exists {
		return nil, errors.Newf(errors.ErrPreconditionFailed, "s3://%s/%s already exists", in.Bucket, in.Key)
	}
	if in.IfMatch != "" && (!exists || cur.info.ETag != in.IfMatch) {
		return nil, errors.Newf(errors.ErrPreconditionFailed, "s3://%s/%s does not match %s", in.Bucket, in.Key, in.IfMatch)
	}

	m.gen++
	body := make([]byte, len(in.Body))
	copy(body, in.Body)
	meta := make(map[string]string, len(in.Metadata))
	for mk, mv := range in.Metadata {
		meta[mk] = mv
	}
	info := ObjectInfo{
		Bucket:       in.Bucket,
		Key:          in.Key,
		ETag:         fmt.Sprintf(`"%x-%d"`, md5.Sum(body), m.gen),
		Size:         int64(len(body)),
		ContentType:  in.ContentType,
		LastModified: time.Now().UTC(),
		Metadata:     meta,
	}
	m.objects[k] = &memObject{info: info, body: body}
	return &info, nil
}

func (m *MemStore) Delete(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, memKey(bucket, key))
	return nil
}

// Keys lists the keys stored in bucket under prefix, sorted.
func (m *MemStore) Keys(bucket, prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for _, obj := range m.objects {
		if obj.info.Bucket == bucket && strings.HasPrefix(obj.info.Key, prefix) {
			keys = append(keys, obj.info.Key)
		}
	}
	sort.Strings(keys)
	return keys
}
