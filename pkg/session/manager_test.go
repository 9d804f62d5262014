package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/itpbot/pkg/adapters/memory"
	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/aretw0/itpbot/pkg/ports"
	"github.com/aretw0/itpbot/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]*domain.Session
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, key string, sess *domain.Session) error {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.Session)
	}
	s.data[key] = sess
	return nil
}

func (s *SlowStore) Load(ctx context.Context, key string) (*domain.Session, error) {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.data[key]; ok {
		return sess, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_SerializesReadModifyWrite(t *testing.T) {
	store := memory.NewStore()
	manager := session.NewManager(store)
	ctx := context.Background()
	key := "+34600000000"
	now := time.Now().UTC()

	require.NoError(t, manager.Save(ctx, key, domain.NewSession(key, now)))

	var wg sync.WaitGroup
	var inside int32
	var overlap int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, key, func(ctx context.Context) error {
				if atomic.AddInt32(&inside, 1) > 1 {
					atomic.StoreInt32(&overlap, 1)
				}
				defer atomic.AddInt32(&inside, -1)

				sess, err := manager.Store().Load(ctx, key)
				if err != nil {
					return err
				}
				time.Sleep(time.Millisecond)
				return manager.Store().Save(ctx, key, sess.Advance(domain.AwaitingYear{Maker: "seat"}, now))
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&overlap), "two messages for one session ran at the same time")
}

func TestManager_DifferentKeysRunConcurrently(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- manager.WithLock(ctx, "a", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	finished := make(chan struct{})
	go func() {
		_ = manager.WithLock(ctx, "b", func(context.Context) error { return nil })
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("lock on key b blocked behind key a")
	}
	close(release)
	require.NoError(t, <-done)
}

func TestManager_LoadMissing(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	_, err := manager.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type fakeLocker struct {
	mu       sync.Mutex
	locked   map[string]time.Duration
	unlocked []string
	lockErr  error
	unlockFn func() error
}

func (f *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	if f.locked == nil {
		f.locked = map[string]time.Duration{}
	}
	f.locked[key] = ttl
	return func(context.Context) error {
		f.mu.Lock()
		f.unlocked = append(f.unlocked, key)
		f.mu.Unlock()
		if f.unlockFn != nil {
			return f.unlockFn()
		}
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &fakeLocker{unlockFn: func() error { return errors.New("already expired") }}
	manager := session.NewManager(memory.NewStore(),
		session.WithLocker(locker),
		session.WithLockTTL(5*time.Second))

	called := false
	err := manager.WithLock(context.Background(), "k", func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err, "a failed unlock is logged, not returned")
	assert.True(t, called)
	assert.Equal(t, 5*time.Second, locker.locked["k"])
	assert.Equal(t, []string{"k"}, locker.unlocked)
}

func TestManager_DistributedLockFailure(t *testing.T) {
	locker := &fakeLocker{lockErr: errors.New("lock held")}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker))

	err := manager.WithLock(context.Background(), "k", func(context.Context) error {
		t.Fatal("fn must not run without the lock")
		return nil
	})
	assert.Error(t, err)
}
