package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/uvensys/cerberus/lib/store"
)

type factory struct{}

func (factory) Build(ctx context.Context, _ json.RawMessage) (store.Interface, error) {
	return New(ctx), nil
}

func (factory) Valid(json.RawMessage) error { return nil }

func init() {
	store.Register("memory", factory{})
}

type entry struct {
	value   []byte
	expires time.Time
}

type impl struct {
	mu   sync.RWMutex
	data map[string]entry
}

func (i *impl) Delete(_ context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.data[key]; !ok {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	delete(i.data, key)
	return nil
}

func (i *impl) Get(_ context.Context, key string) ([]byte, error) {
	i.mu.RLock()
	ent, ok := i.data[key]
	i.mu.RUnlock()

	if !ok || time.Now().After(ent.expires) {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return ent.value, nil
}

func (i *impl) Set(_ context.Context, key string, value []byte, expiry time.Duration) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.data[key] = entry{value: value, expires: time.Now().Add(expiry)}
	return nil
}

func (i *impl) cleanup() {
	now := time.Now()

	i.mu.Lock()
	defer i.mu.Unlock()

	for key, ent := range i.data {
		if now.After(ent.expires) {
			delete(i.data, key)
		}
	}
}

func (i *impl) cleanupThread(ctx context.Context) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			i.cleanup()
		}
	}
}

// New creates a simple in-memory store. This will not scale to multiple Cerberus instances.
func New(ctx context.Context) store.Interface {
	result := &impl{
		data: map[string]entry{},
	}

	go result.cleanupThread(ctx)

	return result
}
