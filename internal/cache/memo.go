// Package cache memoizes expensive query computations. Values are held in a
// bounded in-process LRU and, for shared scopes, optionally in a remote
// tier such as Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GNS-Science/solvis-query/internal/model"
)

// ErrNotFound is returned by a RemoteStore on a miss.
var ErrNotFound = errors.New("cache: key not found")

// RemoteStore is a byte-oriented cache tier shared between processes.
type RemoteStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Recorder receives cache events, usually to export them as metrics.
type Recorder interface {
	RecordCacheHit(scope, tier string)
	RecordCacheMiss(scope string)
	RecordCacheCompute(scope string, duration time.Duration, err error)
	RecordCacheEviction()
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheHit(string, string)                    {}
func (nopRecorder) RecordCacheMiss(string)                           {}
func (nopRecorder) RecordCacheCompute(string, time.Duration, error) {}
func (nopRecorder) RecordCacheEviction()                             {}

// Options configures a Memo.
type Options struct {
	// MaxEntries bounds the in-process LRU.
	MaxEntries int

	// TTL expires in-process entries. Zero disables expiry.
	TTL time.Duration

	// Remote is an optional shared tier used by GetOrComputeShared.
	Remote RemoteStore

	// RemoteTTL is the expiry applied to remote writes.
	RemoteTTL time.Duration
}

// DefaultOptions returns the defaults used by NewMemo.
func DefaultOptions() Options {
	return Options{
		MaxEntries: 1024,
		TTL:        0,
		RemoteTTL:  24 * time.Hour,
	}
}

// Option is a functional option for configuring a Memo.
type Option func(*Memo)

// WithMaxEntries sets the in-process capacity.
func WithMaxEntries(n int) Option {
	return func(m *Memo) {
		if n > 0 {
			m.options.MaxEntries = n
		}
	}
}

// WithTTL sets the in-process expiry.
func WithTTL(d time.Duration) Option {
	return func(m *Memo) {
		if d >= 0 {
			m.options.TTL = d
		}
	}
}

// WithRemote enables the shared tier.
func WithRemote(store RemoteStore, ttl time.Duration) Option {
	return func(m *Memo) {
		m.options.Remote = store
		if ttl > 0 {
			m.options.RemoteTTL = ttl
		}
	}
}

// WithRecorder routes cache events to r.
func WithRecorder(r Recorder) Option {
	return func(m *Memo) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Memo) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Memo computes each key at most once while its result stays cached.
// Concurrent callers for the same key share one computation and failed
// computations are never stored.
type Memo struct {
	lru      *LRU
	flight   singleflight.Group
	options  Options
	recorder Recorder
	logger   *zap.Logger
}

// NewMemo creates a Memo.
func NewMemo(opts ...Option) *Memo {
	m := &Memo{
		options:  DefaultOptions(),
		recorder: nopRecorder{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lru = NewLRU(m.options.MaxEntries, m.options.TTL)
	m.lru.onEvict = func(string) { m.recorder.RecordCacheEviction() }
	return m
}

// Stats returns the in-process counters.
func (m *Memo) Stats() Stats {
	return m.lru.Stats()
}

// Purge drops every in-process entry.
func (m *Memo) Purge() {
	m.lru.Purge()
}

// GetOrCompute returns the cached value for key or computes, stores and
// returns it.
func GetOrCompute[T any](ctx context.Context, m *Memo, key model.CacheKey, compute func(ctx context.Context) (T, error)) (T, error) {
	return getOrCompute(ctx, m, key, false, compute)
}

// GetOrComputeShared is GetOrCompute with the remote tier consulted before
// computing. T must round-trip through encoding/json.
func GetOrComputeShared[T any](ctx context.Context, m *Memo, key model.CacheKey, compute func(ctx context.Context) (T, error)) (T, error) {
	return getOrCompute(ctx, m, key, m.options.Remote != nil, compute)
}

func getOrCompute[T any](ctx context.Context, m *Memo, key model.CacheKey, shared bool, compute func(ctx context.Context) (T, error)) (T, error) {
	k := string(key)
	scope := scopeOf(key)

	if v, ok := m.lru.Get(k); ok {
		m.recorder.RecordCacheHit(scope, "memory")
		return v.(T), nil
	}

	for {
		led := false
		ch := m.flight.DoChan(k, func() (_ interface{}, err error) {
			led = true
			// DoChan runs this on its own goroutine, out of reach of the
			// caller's recovery.
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("computing %s panicked: %v", k, r)
				}
			}()
			if v, ok := m.lru.Get(k); ok {
				m.recorder.RecordCacheHit(scope, "memory")
				return v, nil
			}
			m.recorder.RecordCacheMiss(scope)

			if shared {
				if v, ok := remoteGet[T](ctx, m, k); ok {
					m.recorder.RecordCacheHit(scope, "remote")
					m.lru.Set(k, v)
					return v, nil
				}
			}

			start := time.Now()
			result, cerr := compute(ctx)
			m.recorder.RecordCacheCompute(scope, time.Since(start), cerr)
			if cerr != nil {
				return nil, cerr
			}

			m.lru.Set(k, result)
			if shared {
				remoteSet(ctx, m, k, result)
			}
			return result, nil
		})

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				// A computation led by another caller can fail on that
				// caller's cancellation; retry while ours is live.
				if !led && isContextErr(res.Err) && ctx.Err() == nil {
					continue
				}
				var zero T
				return zero, res.Err
			}
			return res.Val.(T), nil
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func remoteGet[T any](ctx context.Context, m *Memo, key string) (T, bool) {
	var zero T
	data, err := m.options.Remote.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("remote cache read failed", zap.String("key", key), zap.Error(err))
		}
		return zero, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		m.logger.Warn("remote cache entry undecodable", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	return v, true
}

func remoteSet[T any](ctx context.Context, m *Memo, key string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		m.logger.Warn("remote cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := m.options.Remote.Set(ctx, key, data, m.options.RemoteTTL); err != nil {
		m.logger.Warn("remote cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func scopeOf(key model.CacheKey) string {
	scope, _, _ := strings.Cut(string(key), "|")
	return scope
}

// String describes the memo configuration for logs.
func (m *Memo) String() string {
	return fmt.Sprintf("memo(max_entries=%d ttl=%s remote=%t)",
		m.options.MaxEntries, m.options.TTL, m.options.Remote != nil)
}
