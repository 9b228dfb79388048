package mocks

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/glue"
	"github.com/aws/aws-sdk-go/service/glue/glueiface"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/stretchr/testify/mock"
)

type GlueAPI struct {
	mock.Mock
	glueiface.GlueAPI
}

func (m *GlueAPI) StartCrawlerWithContext(ctx aws.Context, in *glue.StartCrawlerInput, opts ...request.Option) (*glue.StartCrawlerOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*glue.StartCrawlerOutput)
	return out, args.Error(1)
}

type LambdaAPI struct {
	mock.Mock
	lambdaiface.LambdaAPI
}

func (m *LambdaAPI) InvokeWithContext(ctx aws.Context, in *lambda.InvokeInput, opts ...request.Option) (*lambda.InvokeOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*lambda.InvokeOutput)
	return out, args.Error(1)
}

type SecretsManagerAPI struct {
	mock.Mock
	secretsmanageriface.SecretsManagerAPI
}

func (m *SecretsManagerAPI) GetSecretValueWithContext(ctx aws.Context, in *secretsmanager.GetSecretValueInput, opts ...request.Option) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*secretsmanager.GetSecretValueOutput)
	return out, args.Error(1)
}
