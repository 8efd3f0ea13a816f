// Package apikey tracks API keys and how often each one has been used.
package apikey

import (
	"errors"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownKey    = errors.New("invalid API key")
	ErrUsageExceeded = errors.New("API key usage limit exceeded")
	ErrKeyExists     = errors.New("API key already exists")
	ErrEmptyKey      = errors.New("API key cannot be empty")
	ErrLastKey       = errors.New("cannot remove the last API key")
)

// Manager holds the key registry. With no keys registered it runs open:
// any non-empty key is accepted and nothing is counted. Removing keys never
// empties a registry that has some, so a running daemon cannot fall back
// to open mode.
//
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	usage    map[string]int
	maxUsage int
}

// NewManager seeds the registry with keys and their persisted usage.
// maxUsage of 0 means unlimited.
func NewManager(keys map[string]int, maxUsage int) *Manager {
	usage := maps.Clone(keys)
	if usage == nil {
		usage = make(map[string]int)
	}
	return &Manager{
		usage:    usage,
		maxUsage: max(0, maxUsage),
	}
}

// Open reports whether the manager accepts any key.
func (m *Manager) Open() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.usage) == 0
}

// MaxUsage returns the per-key cap, 0 when unlimited.
func (m *Manager) MaxUsage() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxUsage
}

func (m *Manager) SetMaxUsage(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxUsage = max(0, n)
}

// Check validates key without counting a use.
func (m *Manager) Check(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check(key)
}

func (m *Manager) check(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if len(m.usage) == 0 {
		return nil
	}
	n, ok := m.usage[key]
	if !ok {
		logrus.WithField("key", Mask(key)).Warn("invalid API key attempted")
		return ErrUnknownKey
	}
	if m.maxUsage > 0 && n >= m.maxUsage {
		logrus.WithField("key", Mask(key)).Warn("API key usage limit exceeded")
		return ErrUsageExceeded
	}
	return nil
}

// Use validates key and counts one use of it. It returns the new usage
// count, which is 0 in open mode.
func (m *Manager) Use(key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(key); err != nil {
		return 0, err
	}
	if len(m.usage) == 0 {
		return 0, nil
	}

	m.usage[key]++
	n := m.usage[key]
	logrus.WithFields(logrus.Fields{
		"key":   Mask(key),
		"usage": n,
		"limit": m.maxUsage,
	}).Debug("API key used")
	return n, nil
}

// Usage returns the usage count of key.
func (m *Manager) Usage(key string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.usage[key]
	return n, ok
}

func (m *Manager) Add(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.usage[key]; ok {
		return ErrKeyExists
	}
	m.usage[key] = 0
	logrus.WithField("key", Mask(key)).Info("API key added")
	return nil
}

func (m *Manager) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.usage[key]; !ok {
		return ErrUnknownKey
	}
	if len(m.usage) == 1 {
		return ErrLastKey
	}
	delete(m.usage, key)
	logrus.WithField("key", Mask(key)).Info("API key removed")
	return nil
}

func (m *Manager) Reset(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.usage[key]; !ok {
		return ErrUnknownKey
	}
	m.usage[key] = 0
	logrus.WithField("key", Mask(key)).Info("API key usage reset")
	return nil
}

// Sync replaces the registry with keys, as after a config reload. Keys on
// both sides keep the higher usage count, so a stale file cannot hand out
// uses that were already spent.
func (m *Manager) Sync(keys map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]int, len(keys))
	for k, n := range keys {
		next[k] = max(n, m.usage[k])
	}
	m.usage = next
}

// ResetAll zeroes every counter and returns how many keys were reset.
func (m *Manager) ResetAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.usage {
		m.usage[k] = 0
	}
	return len(m.usage)
}

// Snapshot returns a copy of every key and its usage.
func (m *Manager) Snapshot() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.usage)
}

// Keys returns the registered keys in order.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.usage))
	for k := range m.usage {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Mask hides all but the first two characters of key.
func Mask(key string) string {
	r := []rune(key)
	if len(r) <= 2 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:2]) + strings.Repeat("*", len(r)-2)
}
