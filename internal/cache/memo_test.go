package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GNS-Science/solvis-query/internal/model"
)

// MockRemoteStore is a mock implementation of RemoteStore
type MockRemoteStore struct {
	mock.Mock
}

func (m *MockRemoteStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockRemoteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func wellingtonCriteria() model.FilterCriteria {
	return model.FilterCriteria{
		ModelID:     "NSHM_v1.0.4",
		FaultSystem: "CRU",
		LocationIDs: []string{"WLG", "MRO"},
		RadiusKm:    10,
	}
}

func TestGetOrCompute_ComputesOncePerKey(t *testing.T) {
	m := NewMemo(WithLogger(zap.NewNop()))
	var calls int32
	compute := func(ctx context.Context) (model.RuptureIDSet, error) {
		atomic.AddInt32(&calls, 1)
		return model.NewRuptureIDSet(1, 2, 3), nil
	}

	key := model.KeyFor(model.ScopeLocationRuptures, wellingtonCriteria())
	first, err := GetOrCompute(context.Background(), m, key, compute)
	require.NoError(t, err)
	second, err := GetOrCompute(context.Background(), m, key, compute)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, first.Equal(second))
}

func TestGetOrCompute_ReorderedListsShareEntry(t *testing.T) {
	m := NewMemo()
	var calls int32
	compute := func(ctx context.Context) (int, error) {
		return int(atomic.AddInt32(&calls, 1)), nil
	}

	a := wellingtonCriteria()
	b := wellingtonCriteria()
	b.LocationIDs = []string{"MRO", "WLG"}

	va, err := GetOrCompute(context.Background(), m, model.KeyFor(model.ScopeFilteredRuptures, a), compute)
	require.NoError(t, err)
	vb, err := GetOrCompute(context.Background(), m, model.KeyFor(model.ScopeFilteredRuptures, b), compute)
	require.NoError(t, err)

	assert.Equal(t, va, vb)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrCompute_FailuresAreNotCached(t *testing.T) {
	m := NewMemo()
	key := model.CacheKey("test|failure")
	var calls int32

	_, err := GetOrCompute(context.Background(), m, key, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", fmt.Errorf("lookup unavailable")
	})
	require.Error(t, err)

	v, err := GetOrCompute(context.Background(), m, key, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrCompute_ConcurrentCallersShareComputation(t *testing.T) {
	m := NewMemo()
	key := model.CacheKey("test|concurrent")
	var calls int32
	release := make(chan struct{})

	compute := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := GetOrCompute(context.Background(), m, key, compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestGetOrCompute_WaiterOutlivesCancelledLeader(t *testing.T) {
	m := NewMemo()
	key := model.CacheKey("test|leader-cancelled")
	var calls int32
	started := make(chan struct{})

	compute := func(ctx context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return 42, nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := GetOrCompute(leaderCtx, m, key, compute)
		leaderErr <- err
	}()
	<-started

	type result struct {
		v   int
		err error
	}
	waiter := make(chan result, 1)
	go func() {
		v, err := GetOrCompute(context.Background(), m, key, compute)
		waiter <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	got := <-waiter
	require.NoError(t, got.err)
	assert.Equal(t, 42, got.v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrCompute_WaiterDeadline(t *testing.T) {
	m := NewMemo()
	key := model.CacheKey("test|waiter-deadline")
	release := make(chan struct{})
	defer close(release)

	compute := func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	}
	go GetOrCompute(context.Background(), m, key, compute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := GetOrCompute(ctx, m, key, compute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetOrCompute_PanicIsAnError(t *testing.T) {
	m := NewMemo()
	key := model.CacheKey("test|panic")

	_, err := GetOrCompute(context.Background(), m, key, func(context.Context) (int, error) {
		panic("bad section index")
	})
	assert.ErrorContains(t, err, "bad section index")

	v, err := GetOrCompute(context.Background(), m, key, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestGetOrCompute_Bounded(t *testing.T) {
	m := NewMemo(WithMaxEntries(2))
	for i := 0; i < 5; i++ {
		key := model.CacheKey(fmt.Sprintf("test|%d", i))
		_, err := GetOrCompute(context.Background(), m, key, func(ctx context.Context) (int, error) { return i, nil })
		require.NoError(t, err)
	}
	assert.Equal(t, 2, m.Stats().Entries)
	assert.Equal(t, int64(3), m.Stats().Evictions)
}

func TestGetOrComputeShared_RemoteHit(t *testing.T) {
	remote := new(MockRemoteStore)
	m := NewMemo(WithRemote(remote, time.Hour))
	key := model.KeyFor(model.ScopeLocationRuptures, wellingtonCriteria())

	payload, err := json.Marshal(model.NewRuptureIDSet(7, 8))
	require.NoError(t, err)
	remote.On("Get", mock.Anything, string(key)).Return(payload, nil).Once()

	v, err := GetOrComputeShared(context.Background(), m, key, func(ctx context.Context) (model.RuptureIDSet, error) {
		t.Fatal("compute must not run on a remote hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8}, v.Sorted())

	// served from memory now
	_, err = GetOrComputeShared(context.Background(), m, key, func(ctx context.Context) (model.RuptureIDSet, error) {
		t.Fatal("compute must not run on a memory hit")
		return nil, nil
	})
	require.NoError(t, err)
	remote.AssertExpectations(t)
}

func TestGetOrComputeShared_RemoteMissWritesBack(t *testing.T) {
	remote := new(MockRemoteStore)
	m := NewMemo(WithRemote(remote, time.Hour))
	key := model.CacheKey("location_ruptures|x")

	remote.On("Get", mock.Anything, string(key)).Return(nil, ErrNotFound).Once()
	remote.On("Set", mock.Anything, string(key), []byte("[1,2]"), time.Hour).Return(nil).Once()

	v, err := GetOrComputeShared(context.Background(), m, key, func(ctx context.Context) (model.RuptureIDSet, error) {
		return model.NewRuptureIDSet(2, 1), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())
	remote.AssertExpectations(t)
}

func TestGetOrComputeShared_RemoteErrorFallsBackToCompute(t *testing.T) {
	remote := new(MockRemoteStore)
	m := NewMemo(WithRemote(remote, time.Hour))
	key := model.CacheKey("location_ruptures|y")

	remote.On("Get", mock.Anything, string(key)).Return(nil, fmt.Errorf("connection refused")).Once()
	remote.On("Set", mock.Anything, string(key), mock.Anything, time.Hour).Return(fmt.Errorf("connection refused")).Once()

	v, err := GetOrComputeShared(context.Background(), m, key, func(ctx context.Context) (model.RuptureIDSet, error) {
		return model.NewRuptureIDSet(5), nil
	})
	require.NoError(t, err)
	assert.True(t, v.Contains(5))
	remote.AssertExpectations(t)
}

func TestGetOrCompute_IgnoresRemote(t *testing.T) {
	remote := new(MockRemoteStore)
	m := NewMemo(WithRemote(remote, time.Hour))

	_, err := GetOrCompute(context.Background(), m, model.CacheKey("mfd|z"), func(ctx context.Context) (int, error) {
		return 1, nil
	})
	require.NoError(t, err)
	remote.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

type countingRecorder struct {
	mu       sync.Mutex
	hits     map[string]int
	misses   int
	computes int
}

func (r *countingRecorder) RecordCacheHit(scope, tier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits[tier]++
}

func (r *countingRecorder) RecordCacheMiss(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses++
}

func (r *countingRecorder) RecordCacheCompute(string, time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.computes++
}

func (r *countingRecorder) RecordCacheEviction() {}

func TestMemo_Recorder(t *testing.T) {
	rec := &countingRecorder{hits: map[string]int{}}
	m := NewMemo(WithRecorder(rec))
	key := model.CacheKey("section_aggregates|k")

	for i := 0; i < 3; i++ {
		_, err := GetOrCompute(context.Background(), m, key, func(ctx context.Context) (int, error) { return 1, nil })
		require.NoError(t, err)
	}

	assert.Equal(t, 1, rec.misses)
	assert.Equal(t, 1, rec.computes)
	assert.Equal(t, 2, rec.hits["memory"])
	assert.Equal(t, "section_aggregates", scopeOf(key))
	assert.Contains(t, m.String(), "max_entries=1024")
}
