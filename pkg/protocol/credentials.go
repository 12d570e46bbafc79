package protocol

import "context"

// CredentialResolver loads the decrypted per-integration secrets for a user.
// The engine fetches one snapshot at run start and never decrypts or stores
// secrets itself.
type CredentialResolver interface {
	Load(ctx context.Context, userID string) (map[string]map[string]any, error)
}

// NoCredentials is a resolver for deployments without a credential store.
type NoCredentials struct{}

func (NoCredentials) Load(_ context.Context, _ string) (map[string]map[string]any, error) {
	return map[string]map[string]any{}, nil
}
