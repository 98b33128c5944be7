package bikeshare

import (
	"sync"

	"github.com/pkg/errors"
)

// Translator maps string keys in a given index field to monotonic uint64 ids
// and back. Implementations must be threadsafe and must return the same id for
// the same key for as long as their storage lives, so re-exporting a row lands
// on the same column.
type Translator interface {
	Get(field string, id uint64) (string, error)
	GetID(field string, key string) (uint64, error)
}

// MapTranslator is an in-memory Translator.
type MapTranslator struct {
	lock   sync.RWMutex
	fields map[string]*mapFieldTranslator
}

type mapFieldTranslator struct {
	ids  map[string]uint64
	keys []string
}

// NewMapTranslator creates a new MapTranslator.
func NewMapTranslator() *MapTranslator {
	return &MapTranslator{
		fields: make(map[string]*mapFieldTranslator),
	}
}

// Get returns the key mapped to id in field.
func (m *MapTranslator) Get(field string, id uint64) (string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	ft, ok := m.fields[field]
	if !ok || id >= uint64(len(ft.keys)) {
		return "", errors.Errorf("field '%s': unknown id %d", field, id)
	}
	return ft.keys[id], nil
}

// GetID returns the id of key in field, allocating the next id if the key is
// new.
func (m *MapTranslator) GetID(field string, key string) (uint64, error) {
	m.lock.RLock()
	if ft, ok := m.fields[field]; ok {
		if id, ok := ft.ids[key]; ok {
			m.lock.RUnlock()
			return id, nil
		}
	}
	m.lock.RUnlock()
	m.lock.Lock()
	defer m.lock.Unlock()
	ft, ok := m.fields[field]
	if !ok {
		ft = &mapFieldTranslator{ids: make(map[string]uint64)}
		m.fields[field] = ft
	}
	if id, ok := ft.ids[key]; ok {
		return id, nil
	}
	id := uint64(len(ft.keys))
	ft.keys = append(ft.keys, key)
	ft.ids[key] = id
	return id, nil
}
