// Package credential resolves vendor API secrets from the encrypted
// credentials table, caching plaintext for a short TTL so rotations made by
// an admin take effect without a redeploy.
package credential

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/model"
	"github.com/exitschool/offmarket/internal/store"
)

var (
	// ErrMissing means no credential is configured for the service.
	ErrMissing = eris.New("credential: missing")
	// ErrNoKey means no valid 32-byte encryption key is configured.
	ErrNoKey = eris.New("credential: encryption key must be 32 bytes")
)

// Backend is the persistence the credential store reads and writes.
type Backend interface {
	GetCredential(ctx context.Context, service string) (*model.Credential, error)
	PutCredential(ctx context.Context, cred model.Credential) error
}

type cached struct {
	secret    string
	expiresAt time.Time
}

// Store resolves secrets by service name. Stored credentials win over the
// bootstrap keys supplied from configuration.
type Store struct {
	backend   Backend
	key       []byte
	ttl       time.Duration
	bootstrap map[string]string

	mu    sync.Mutex
	cache map[string]cached
	now   func() time.Time
}

// New creates a credential store. key may be nil, in which case only the
// bootstrap keys are available and Put fails with ErrNoKey.
func New(backend Backend, key []byte, ttl time.Duration, bootstrap map[string]string) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{
		backend:   backend,
		key:       key,
		ttl:       ttl,
		bootstrap: bootstrap,
		cache:     make(map[string]cached),
		now:       time.Now,
	}
}

// Get returns the plaintext secret for service, or ErrMissing.
func (s *Store) Get(ctx context.Context, service string) (string, error) {
	service = strings.ToLower(service)

	s.mu.Lock()
	if c, ok := s.cache[service]; ok && s.now().Before(c.expiresAt) {
		s.mu.Unlock()
		return c.secret, nil
	}
	s.mu.Unlock()

	secret := s.lookup(ctx, service)
	if secret == "" {
		return "", eris.Wrapf(ErrMissing, "credential: %s", service)
	}

	s.mu.Lock()
	s.cache[service] = cached{secret: secret, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return secret, nil
}

func (s *Store) lookup(ctx context.Context, service string) string {
	if s.backend != nil && len(s.key) > 0 {
		cred, err := s.backend.GetCredential(ctx, service)
		switch {
		case err == nil:
			secret, derr := Decrypt(s.key, service, cred.EncryptedSecret)
			if derr == nil && secret != "" {
				return secret
			}
			if derr != nil {
				zap.L().Warn("credential: stored secret unreadable, using bootstrap key",
					zap.String("service", service), zap.Error(derr))
			}
		case errors.Is(err, store.ErrNotFound):
		default:
			zap.L().Warn("credential: lookup failed, using bootstrap key",
				zap.String("service", service), zap.Error(err))
		}
	}
	return s.bootstrap[service]
}

// Put encrypts and stores secret for service and drops any cached value.
func (s *Store) Put(ctx context.Context, service, secret string) error {
	service = strings.ToLower(strings.TrimSpace(service))
	if service == "" || secret == "" {
		return eris.New("credential: service and secret are required")
	}
	if s.backend == nil {
		return eris.New("credential: no backend configured")
	}
	enc, err := Encrypt(s.key, service, secret)
	if err != nil {
		return err
	}
	if err := s.backend.PutCredential(ctx, model.Credential{
		Service:         service,
		EncryptedSecret: enc,
		UpdatedAt:       s.now().UTC(),
	}); err != nil {
		return eris.Wrapf(err, "credential: put %s", service)
	}

	s.mu.Lock()
	delete(s.cache, service)
	s.mu.Unlock()
	return nil
}
