package memory

import (
	"context"
	"sync"

	"itef-puzzle-service/internal/app"
)

// LocalStore is an in-memory app.LocalStorageProvider; each device gets its own key space.
type LocalStore struct {
	mu      sync.RWMutex
	devices map[string]map[string]string
}

func NewLocalStore() *LocalStore {
	return &LocalStore{devices: make(map[string]map[string]string)}
}

func (s *LocalStore) ForDevice(deviceID string) app.LocalStorage {
	return &deviceStorage{store: s, device: deviceID}
}

type deviceStorage struct {
	store  *LocalStore
	device string
}

func (d *deviceStorage) Get(_ context.Context, key string) (string, bool, error) {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()
	v, ok := d.store.devices[d.device][key]
	return v, ok, nil
}

func (d *deviceStorage) Set(_ context.Context, key, value string) error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	kv, ok := d.store.devices[d.device]
	if !ok {
		kv = make(map[string]string)
		d.store.devices[d.device] = kv
	}
	kv[key] = value
	return nil
}

func (d *deviceStorage) Remove(_ context.Context, key string) error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	delete(d.store.devices[d.device], key)
	return nil
}
