package kvstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store. A positive quota caps the total size of all
// keys and values in bytes, mirroring browser storage limits.
type Memory struct {
	mtx   sync.RWMutex
	data  map[string]string
	used  int
	quota int
}

func NewMemory(quotaBytes int) *Memory {
	return &Memory{data: make(map[string]string), quota: quotaBytes}
}

func (m *Memory) Load(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Save(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()

	next := m.used + len(value)
	if prev, ok := m.data[key]; ok {
		next -= len(prev)
	} else {
		next += len(key)
	}
	if m.quota > 0 && next > m.quota {
		return ErrQuotaExceeded
	}
	m.data[key] = value
	m.used = next
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if prev, ok := m.data[key]; ok {
		m.used -= len(key) + len(prev)
		delete(m.data, key)
	}
	return nil
}

func (m *Memory) Take(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", false, nil
	}
	m.used -= len(key) + len(v)
	delete(m.data, key)
	return v, true, nil
}

// Used reports the bytes currently counted against the quota.
func (m *Memory) Used() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.used
}
