package secrets

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"

	"github.com/featurebasedb/edp/awsutil"
	"github.com/featurebasedb/edp/errors"
)

// SecretsManager resolves secrets stored as JSON strings in AWS Secrets
// Manager.
type SecretsManager struct {
	client secretsmanageriface.SecretsManagerAPI
}

func NewSecretsManager(client secretsmanageriface.SecretsManagerAPI) *SecretsManager {
	return &SecretsManager{client: client}
}

func (s *SecretsManager) Resolve(ctx context.Context, id string) (map[string]string, error) {
	out, err := s.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		if awsutil.ErrorCode(err) == secretsmanager.ErrCodeResourceNotFoundException {
			return nil, errors.WithCode(err, errors.ErrNotFound)
		}
		return nil, errors.Wrap(err, "getting secret value")
	}
	if out.SecretString == nil {
		return nil, errors.Newf(errors.ErrMissingSecret, "secret %s is binary, expected a JSON string", id)
	}
	return parseJSON([]byte(aws.StringValue(out.SecretString)))
}
