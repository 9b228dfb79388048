// Package mocks holds testify mocks of the AWS service clients used by the
// pipeline. Each mock embeds the SDK interface so it satisfies it; calling a
// method that is not overridden here panics on the nil embedded value.
package mocks

import (
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/mock"
)

type S3API struct {
	mock.Mock
	s3iface.S3API
}

func (m *S3API) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *S3API) HeadObjectWithContext(ctx aws.Context, in *s3.HeadObjectInput, opts ...request.Option) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

// PutObjectWithContext passes the headers set by opts as the third argument,
// so expectations can match on conditional-write headers.
func (m *S3API) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in, AppliedHeaders(opts...))
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *S3API) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, opts ...request.Option) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

// AppliedHeaders runs opts against a blank request and returns the headers
// they set.
func AppliedHeaders(opts ...request.Option) http.Header {
	r := &request.Request{HTTPRequest: &http.Request{Header: http.Header{}}}
	for _, o := range opts {
		o(r)
	}
	return r.HTTPRequest.Header
}
