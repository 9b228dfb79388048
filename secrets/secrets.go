// Package secrets resolves named secrets into key/value maps. Programs load
// a secret once at startup; a missing secret or key is fatal for them.
package secrets

import (
	"context"
	"encoding/json"

	"github.com/featurebasedb/edp/errors"
)

// APIKeyField is the key holding the record source credential.
const APIKeyField = "API_KEY"

// Resolver looks up a secret by identifier.
type Resolver interface {
	Resolve(ctx context.Context, id string) (map[string]string, error)
}

// APIKey resolves id and returns its API_KEY value.
func APIKey(ctx context.Context, r Resolver, id string) (string, error) {
	values, err := r.Resolve(ctx, id)
	if err != nil {
		return "", errors.Wrapf(err, "resolving secret %s", id)
	}
	key := values[APIKeyField]
	if key == "" {
		return "", errors.Newf(errors.ErrMissingSecret, "secret %s has no %s", id, APIKeyField)
	}
	return key, nil
}

// parseJSON flattens a JSON object secret into strings. Non-string values
// keep their JSON text.
func parseJSON(data []byte) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "secret is not a JSON object")
	}
	return flatten(raw), nil
}

func flatten(raw map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(v)
	}
	return out
}

// Static is a fixed Resolver, for local runs and tests.
type Static map[string]map[string]string

func (s Static) Resolve(ctx context.Context, id string) (map[string]string, error) {
	v, ok := s[id]
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "secret %s not found", id)
	}
	return v, nil
}
