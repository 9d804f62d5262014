package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/aretw0/itpbot/pkg/ports"
)

type keyHashingMiddleware struct {
	next ports.SessionStore
	salt []byte
}

// NewKeyHashingMiddleware stores sessions under HMAC-SHA256(salt, key) so channel ids
// such as phone numbers never appear as storage keys or inside stored sessions.
// List reports digests, which are accepted back by Load and Delete.
func NewKeyHashingMiddleware(salt []byte) Middleware {
	return func(next ports.SessionStore) ports.SessionStore {
		return &keyHashingMiddleware{next: next, salt: salt}
	}
}

// HashKey returns the digest a session key is stored under.
func HashKey(salt []byte, key string) string {
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func (m *keyHashingMiddleware) digest(key string) string {
	if isDigest(key) {
		return key
	}
	return HashKey(m.salt, key)
}

func isDigest(key string) bool {
	if len(key) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}

func (m *keyHashingMiddleware) Save(ctx context.Context, key string, session *domain.Session) error {
	// Copy so the caller keeps its in-memory key.
	masked := *session
	masked.Key = ""
	return m.next.Save(ctx, m.digest(key), &masked)
}

func (m *keyHashingMiddleware) Load(ctx context.Context, key string) (*domain.Session, error) {
	session, err := m.next.Load(ctx, m.digest(key))
	if err != nil {
		return nil, err
	}
	session.Key = key
	return session, nil
}

func (m *keyHashingMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, m.digest(key))
}

func (m *keyHashingMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
