package history

import (
	"context"
	"sync"
)

var _ Store = &Memory{}

// Memory keeps entries in process. Entries are lost on restart.
type Memory struct {
	mu        sync.RWMutex
	entries   map[string][]Entry
	retention int
}

func NewMemory(retention int) *Memory {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Memory{
		entries:   make(map[string][]Entry),
		retention: retention,
	}
}

func (m *Memory) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := append(m.entries[e.APIKey], e)
	if len(list) > m.retention {
		list = list[len(list)-m.retention:]
	}
	m.entries[e.APIKey] = list
	return nil
}

func (m *Memory) List(_ context.Context, apiKey string, limit int) ([]Entry, error) {
	limit = normalizeLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.entries[apiKey]
	n := min(limit, len(list))
	out := make([]Entry, 0, n)
	for i := len(list) - 1; i >= len(list)-n; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
