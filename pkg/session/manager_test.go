package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/ports"
	"github.com/aretw0/swapflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data  map[string][]byte
	mu    sync.Mutex
	saves int
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, sess *domain.Session) error {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.data[sessionID] = raw
	s.saves++
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	var out domain.Session
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_TransactSerializesReadModifyWrite(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	concurrentWrites := 10
	for i := 0; i < concurrentWrites; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.Transact(ctx, id, func(ctx context.Context, s *domain.Session) (*domain.Session, error) {
				s.Username += "x"
				return s, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", concurrentWrites), s.Username, "no update may be lost")
	assert.Equal(t, concurrentWrites, store.saves, "exactly one save per transaction")
}

func TestManager_TransactSavesOnErrorPath(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	boom := errors.New("boom")

	err := manager.Transact(ctx, "s", func(ctx context.Context, s *domain.Session) (*domain.Session, error) {
		s.WalletAddress = "0xabc"
		return s, boom
	})
	assert.ErrorIs(t, err, boom)

	s, err := manager.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", s.WalletAddress)
	assert.Equal(t, 1, store.saves)
}

func TestManager_TransactCreatesMissingSession(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)

	var seen *domain.Session
	err := manager.Transact(context.Background(), "fresh", func(ctx context.Context, s *domain.Session) (*domain.Session, error) {
		seen = s
		return nil, nil
	})
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "fresh", seen.ID)
	assert.Equal(t, domain.DefaultSettings(), seen.Settings)
	assert.True(t, seen.Idle())
}

func TestManager_LeaseBusy(t *testing.T) {
	var busy atomic.Int32
	manager := session.NewManager(&SlowStore{},
		session.WithLease(time.Minute, 50*time.Millisecond),
		session.WithBusyHook(func() { busy.Add(1) }),
	)
	ctx := context.Background()

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = manager.Lease(ctx, "s", func(ctx context.Context) error {
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding

	called := false
	err := manager.Transact(ctx, "s", func(ctx context.Context, s *domain.Session) (*domain.Session, error) {
		called = true
		return s, nil
	})
	close(done)

	assert.ErrorIs(t, err, domain.ErrSessionBusy)
	assert.False(t, called, "the queued request must not run")
	assert.Equal(t, int32(1), busy.Load())
}

func TestManager_LeaseQueuesWithinBudget(t *testing.T) {
	manager := session.NewManager(&SlowStore{}, session.WithLease(time.Minute, time.Second))
	ctx := context.Background()

	holding := make(chan struct{})
	go func() {
		_ = manager.Lease(ctx, "s", func(ctx context.Context) error {
			close(holding)
			time.Sleep(50 * time.Millisecond)
			return nil
		})
	}()
	<-holding

	err := manager.Lease(ctx, "s", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

type recordingLocker struct {
	mu       sync.Mutex
	locked   []string
	unlocked []string
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	l.locked = append(l.locked, key)
	l.mu.Unlock()
	return func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocked = append(l.unlocked, key)
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &recordingLocker{}
	manager := session.NewManager(&SlowStore{}, session.WithLocker(locker))

	err := manager.Transact(context.Background(), "s1", func(ctx context.Context, s *domain.Session) (*domain.Session, error) {
		return s, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, locker.locked)
	assert.Equal(t, []string{"s1"}, locker.unlocked)
}
