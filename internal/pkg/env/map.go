package env

import (
	"maps"
	"os"
	"strings"

	"github.com/sasha-s/go-deadlock"
)

// Provider reads ENVs, for example the configuration of a rank.
type Provider interface {
	Lookup(key string) (string, bool)
	Get(key string) string
}

// Map of ENVs, keys are case-insensitive, they are stored in uppercase.
type Map struct {
	lock deadlock.RWMutex
	data map[string]string
}

func Empty() *Map {
	return &Map{data: make(map[string]string)}
}

func FromMap(data map[string]string) *Map {
	m := Empty()
	for k, v := range data {
		m.Set(k, v)
	}
	return m
}

// FromOs copies ENVs of the process, a launcher passes rank specific values this way.
func FromOs() (*Map, error) {
	m := Empty()
	for _, pair := range os.Environ() { // nolint:forbidigo
		if k, v, ok := strings.Cut(pair, "="); ok {
			m.Set(k, v)
		}
	}
	return m, nil
}

func (m *Map) Lookup(key string) (string, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	v, ok := m.data[strings.ToUpper(key)]
	return v, ok
}

func (m *Map) Get(key string) string {
	v, _ := m.Lookup(key)
	return v
}

func (m *Map) Set(key, value string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.data[strings.ToUpper(key)] = value
}

func (m *Map) ToMap() map[string]string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return maps.Clone(m.data)
}

// Merge copies values from the other map, existing keys are kept unless overwrite is set.
func (m *Map) Merge(other *Map, overwrite bool) {
	for k, v := range other.ToMap() {
		if _, found := m.Lookup(k); found && !overwrite {
			continue
		}
		m.Set(k, v)
	}
}
