package middleware_test

import (
	"context"
	"encoding/json"

	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/aretw0/itpbot/pkg/ports"
)

// MockStore is a map-based store that keeps the serialized form, like a real backend.
type MockStore struct {
	data map[string][]byte
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string][]byte),
	}
}

func (s *MockStore) Save(ctx context.Context, key string, session *domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	s.data[key] = raw
	return nil
}

func (s *MockStore) Load(ctx context.Context, key string) (*domain.Session, error) {
	raw, ok := s.data[key]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *MockStore) Raw(key string) string {
	return string(s.data[key])
}

func (s *MockStore) Delete(ctx context.Context, key string) error {
	delete(s.data, key)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.SessionStore = (*MockStore)(nil)
