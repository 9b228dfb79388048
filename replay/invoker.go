package replay

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
	"github.com/pkg/errors"
)

// Invoker hands one event payload to the materializer.
type Invoker interface {
	Invoke(ctx context.Context, payload []byte) error
}

// LambdaInvoker invokes a function asynchronously: the call returns once
// the event is queued, without waiting for the function to run.
type LambdaInvoker struct {
	Client   lambdaiface.LambdaAPI
	Function string
}

func (l *LambdaInvoker) Invoke(ctx context.Context, payload []byte) error {
	out, err := l.Client.InvokeWithContext(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(l.Function),
		InvocationType: aws.String(lambda.InvocationTypeEvent),
		Payload:        payload,
	})
	if err != nil {
		return errors.Wrapf(err, "invoking %s", l.Function)
	}
	if out.FunctionError != nil {
		return errors.Errorf("invoking %s: %s", l.Function, aws.StringValue(out.FunctionError))
	}
	return nil
}
