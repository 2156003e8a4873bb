package credentials

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/emailmax/warmup/internal/enum"
	warmuperrors "github.com/emailmax/warmup/internal/errors"
)

// Store resolves account secrets by opaque reference. Secrets set at runtime
// take precedence; otherwise the environment is consulted under
// WARMUP_CREDENTIAL_<REF>_<TYPE>. Resolved values are handed out per
// operation and never attached to account records.
type Store struct {
	mu      sync.RWMutex
	secrets map[string]string
}

func NewStore() *Store {
	return &Store{secrets: make(map[string]string)}
}

func key(credentialRef string, credentialType enum.CredentialType) string {
	return credentialRef + "/" + credentialType.String()
}

// Set registers a secret for a credential reference.
func (s *Store) Set(credentialRef string, credentialType enum.CredentialType, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[key(credentialRef, credentialType)] = secret
}

// Delete removes a secret. Safe to call for unknown references.
func (s *Store) Delete(credentialRef string, credentialType enum.CredentialType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, key(credentialRef, credentialType))
}

func (s *Store) Resolve(ctx context.Context, credentialRef string, credentialType enum.CredentialType) (string, error) {
	s.mu.RLock()
	secret, ok := s.secrets[key(credentialRef, credentialType)]
	s.mu.RUnlock()
	if ok {
		return secret, nil
	}

	envKey := envName(credentialRef, credentialType)
	if secret, ok := os.LookupEnv(envKey); ok {
		return secret, nil
	}
	return "", warmuperrors.ErrCredentialNotFound
}

func envName(credentialRef string, credentialType enum.CredentialType) string {
	sanitize := func(s string) string {
		s = strings.ToUpper(s)
		return strings.Map(func(r rune) rune {
			if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				return r
			}
			return '_'
		}, s)
	}
	return "WARMUP_CREDENTIAL_" + sanitize(credentialRef) + "_" + sanitize(credentialType.String())
}
