package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/featurebasedb/edp/errors"
)

// VaultConfig locates a Vault KV mount. Empty Address and Token fall back to
// VAULT_ADDR and VAULT_TOKEN.
type VaultConfig struct {
	Address string
	Token   string
	Mount   string
}

// Vault resolves secrets from a KV secrets engine. Version 2 mounts are read
// at <mount>/data/<id>; a miss there is retried at <mount>/<id> for version 1
// mounts.
type Vault struct {
	client *api.Client
	mount  string
}

func NewVault(cfg VaultConfig) (*Vault, error) {
	vcfg := api.DefaultConfig()
	if cfg.Address != "" {
		vcfg.Address = cfg.Address
	}
	client, err := api.NewClient(vcfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating vault client")
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	mount := strings.Trim(cfg.Mount, "/")
	if mount == "" {
		mount = "secret"
	}
	return &Vault{client: client, mount: mount}, nil
}

func (v *Vault) Resolve(ctx context.Context, id string) (map[string]string, error) {
	id = strings.Trim(id, "/")
	secret, err := v.client.Logical().ReadWithContext(ctx, v.mount+"/data/"+id)
	if err != nil && !isNotFound(err) {
		return nil, maybePermissionDenied(err, id)
	}
	if secret != nil && secret.Data != nil {
		if inner, ok := secret.Data["data"].(map[string]interface{}); ok {
			return stringify(inner), nil
		}
	}

	secret, err = v.client.Logical().ReadWithContext(ctx, v.mount+"/"+id)
	if err != nil && !isNotFound(err) {
		return nil, maybePermissionDenied(err, id)
	}
	if secret == nil || secret.Data == nil {
		return nil, errors.Newf(errors.ErrNotFound, "secret %s not found in %s", id, v.mount)
	}
	return stringify(secret.Data), nil
}

func stringify(data map[string]interface{}) map[string]string {
	raw := make(map[string]json.RawMessage, len(data))
	for k, val := range data {
		b, err := json.Marshal(val)
		if err != nil {
			continue
		}
		raw[k] = b
	}
	return flatten(raw)
}

func isNotFound(err error) bool {
	var apiErr *api.ResponseError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return strings.Contains(err.Error(), "no secret found")
}

func maybePermissionDenied(err error, id string) error {
	var apiErr *api.ResponseError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
		return errors.Wrapf(err, "permission denied reading secret %s", id)
	}
	return errors.Wrapf(err, "reading secret %s", id)
}
