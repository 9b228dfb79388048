package objstore

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/featurebasedb/edp/awsutil"
	"github.com/featurebasedb/edp/errors"
)

// S3Store implements ObjectStore on Amazon S3.
type S3Store struct {
	client     s3iface.S3API
	downloader *s3manager.Downloader
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store wraps an S3 client.
func NewS3Store(client s3iface.S3API) *S3Store {
	return &S3Store{
		client:     client,
		downloader: s3manager.NewDownloaderWithClient(client),
	}
}

func (s *S3Store) Get(ctx context.Context, bucket, key string) (*Object, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify(err, "getting s3://%s/%s", bucket, key)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, errors.Wrapf(err, "reading s3://%s/%s", bucket, key)
	}
	return &Object{
		ObjectInfo: ObjectInfo{
			Bucket:       bucket,
			Key:          key,
			ETag:         aws.StringValue(out.ETag),
			Size:         int64(buf.Len()),
			ContentType:  aws.StringValue(out.ContentType),
			LastModified: aws.TimeValue(out.LastModified),
			Metadata:     aws.StringValueMap(out.Metadata),
		},
		Body: buf.Bytes(),
	}, nil
}

func (s *S3Store) Head(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	out, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify(err, "probing s3://%s/%s", bucket, key)
	}
	return &ObjectInfo{
		Bucket:       bucket,
		Key:          key,
		ETag:         aws.StringValue(out.ETag),
		Size:         aws.Int64Value(out.ContentLength),
		ContentType:  aws.StringValue(out.ContentType),
		LastModified: aws.TimeValue(out.LastModified),
		Metadata:     aws.StringValueMap(out.Metadata),
	}, nil
}

func (s *S3Store) Put(ctx context.Context, in *PutInput) (*ObjectInfo, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(in.Bucket),
		Key:           aws.String(in.Key),
		Body:          bytes.NewReader(in.Body),
		ContentLength: aws.Int64(int64(len(in.Body))),
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}
	if len(in.Metadata) > 0 {
		input.Metadata = aws.StringMap(in.Metadata)
	}

	var opts []request.Option
	if in.IfMatch != "" {
		opts = append(opts, withHeader("If-Match", in.IfMatch))
	}
	if in.IfNoneMatch != "" {
		opts = append(opts, withHeader("If-None-Match", in.IfNoneMatch))
	}

	out, err := s.client.PutObjectWithContext(ctx, input, opts...)
	if err != nil {
		return nil, classify(err, "putting s3://%s/%s", in.Bucket, in.Key)
	}
	return &ObjectInfo{
		Bucket:      in.Bucket,
		Key:         in.Key,
		ETag:        aws.StringValue(out.ETag),
		Size:        int64(len(in.Body)),
		ContentType: in.ContentType,
		Metadata:    in.Metadata,
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify(err, "deleting s3://%s/%s", bucket, key)
	}
	return nil
}

func (s *S3Store) Download(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error) {
	n, err := s.downloader.DownloadWithContext(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return n, classify(err, "downloading s3://%s/%s", bucket, key)
	}
	return n, nil
}

// withHeader sets a request header the SDK's input shapes do not model.
func withHeader(name, value string) request.Option {
	return func(r *request.Request) {
		r.HTTPRequest.Header.Set(name, value)
	}
}

// classify wraps err with a message and attaches a code for the conditions
// callers branch on. HEAD responses carry no error body, so a missing key
// surfaces there only as a bare 404.
func classify(err error, format string, args ...interface{}) error {
	switch awsutil.ErrorCode(err) {
	case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
		return errors.Wrapf(errors.WithCode(err, errors.ErrNotFound), format, args...)
	case "PreconditionFailed", "ConditionalRequestConflict":
		return errors.Wrapf(errors.WithCode(err, errors.ErrPreconditionFailed), format, args...)
	}
	switch awsutil.StatusCode(err) {
	case http.StatusNotFound:
		return errors.Wrapf(errors.WithCode(err, errors.ErrNotFound), format, args...)
	case http.StatusPreconditionFailed:
		return errors.Wrapf(errors.WithCode(err, errors.ErrPreconditionFailed), format, args...)
	}
	return errors.Wrapf(err, format, args...)
}
