package store_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"hik-access-bridge/internal/store"
)

// fakeKV in-memory KV with TTL for unit tests.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string]fakeKVItem
	failGet error
}

type fakeKVItem struct {
	value   string
	expires time.Time // zero = no ttl
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]fakeKVItem)}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failGet != nil {
		return "", f.failGet
	}
	item, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	if !item.expires.IsZero() && time.Now().After(item.expires) {
		delete(f.data, key)
		return "", store.ErrMiss
	}
	return item.value, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	f.data[key] = fakeKVItem{value: value, expires: exp}
	return nil
}

var errRedisDown = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
