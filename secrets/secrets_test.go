package secrets

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/featurebasedb/edp/errors"
	"github.com/featurebasedb/edp/mocks"
)

func TestAPIKey(t *testing.T) {
	ctx := context.Background()
	r := Static{
		"API_Credentials": {"API_KEY": "k-123"},
		"empty":           {"OTHER": "x"},
	}

	key, err := APIKey(ctx, r, "API_Credentials")
	require.NoError(t, err)
	assert.Equal(t, "k-123", key)

	_, err = APIKey(ctx, r, "empty")
	assert.True(t, errors.Is(err, errors.ErrMissingSecret))

	_, err = APIKey(ctx, r, "absent")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSecretsManagerResolve(t *testing.T) {
	client := &mocks.SecretsManagerAPI{}
	sm := NewSecretsManager(client)

	client.On("GetSecretValueWithContext", mock.Anything, mock.MatchedBy(func(in *secretsmanager.GetSecretValueInput) bool {
		return *in.SecretId == "API_Credentials"
	})).Return(&secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"API_KEY": "abc", "retries": 3}`),
	}, nil)
	client.On("GetSecretValueWithContext", mock.Anything, mock.MatchedBy(func(in *secretsmanager.GetSecretValueInput) bool {
		return *in.SecretId == "binary"
	})).Return(&secretsmanager.GetSecretValueOutput{SecretBinary: []byte{1, 2}}, nil)
	client.On("GetSecretValueWithContext", mock.Anything, mock.MatchedBy(func(in *secretsmanager.GetSecretValueInput) bool {
		return *in.SecretId == "missing"
	})).Return(nil, awserr.New(secretsmanager.ErrCodeResourceNotFoundException, "Secrets Manager can't find the specified secret.", nil))
	client.On("GetSecretValueWithContext", mock.Anything, mock.MatchedBy(func(in *secretsmanager.GetSecretValueInput) bool {
		return *in.SecretId == "notjson"
	})).Return(&secretsmanager.GetSecretValueOutput{SecretString: aws.String("plain")}, nil)

	values, err := sm.Resolve(context.Background(), "API_Credentials")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"API_KEY": "abc", "retries": "3"}, values)

	_, err = sm.Resolve(context.Background(), "binary")
	assert.True(t, errors.Is(err, errors.ErrMissingSecret))

	_, err = sm.Resolve(context.Background(), "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = sm.Resolve(context.Background(), "notjson")
	assert.Error(t, err)
}

func TestVaultResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/secret/data/API_Credentials":
			fmt.Fprint(w, `{"data": {"data": {"API_KEY": "from-v2"}, "metadata": {"version": 1}}}`)
		case "/v1/kv/API_Credentials":
			fmt.Fprint(w, `{"data": {"API_KEY": "from-v1"}}`)
		case "/v1/secret/data/forbidden":
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"errors": ["permission denied"]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"errors": []}`)
		}
	}))
	defer srv.Close()

	v2, err := NewVault(VaultConfig{Address: srv.URL, Token: "root"})
	require.NoError(t, err)
	values, err := v2.Resolve(context.Background(), "API_Credentials")
	require.NoError(t, err)
	assert.Equal(t, "from-v2", values["API_KEY"])

	v1, err := NewVault(VaultConfig{Address: srv.URL, Token: "root", Mount: "/kv/"})
	require.NoError(t, err)
	values, err = v1.Resolve(context.Background(), "API_Credentials")
	require.NoError(t, err)
	assert.Equal(t, "from-v1", values["API_KEY"])

	_, err = v2.Resolve(context.Background(), "absent")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = v2.Resolve(context.Background(), "forbidden")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}
