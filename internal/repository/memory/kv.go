package memory

import (
	"context"
	"sync"

	"github.com/challengeties/rewards/internal/errs"
	"github.com/challengeties/rewards/internal/repository"
)

// KV is a map-backed KeyValueStore.
type KV struct {
	mu sync.Mutex
	m  map[string]string
}

var _ repository.KeyValueStore = (*KV)(nil)

// NewKV constructs an empty store.
func NewKV() *KV { return &KV{m: map[string]string{}} }

func (k *KV) Get(_ context.Context, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.m[key]
	if !ok {
		return "", errs.ErrNotFound
	}
	return v, nil
}

func (k *KV) Set(_ context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m[key] = value
	return nil
}

func (k *KV) Remove(_ context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		delete(k.m, key)
	}
	return nil
}

func (k *KV) Take(_ context.Context, keys ...string) (map[string]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if v, ok := k.m[key]; ok {
			out[key] = v
			delete(k.m, key)
		}
	}
	return out, nil
}
