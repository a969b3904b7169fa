package storage

import (
	"bytes"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory implementation of a Store, mainly
// used for testing. Do not use MemoryStore in production.
type MemoryStore struct {
	mut sync.RWMutex
	mem map[string][]byte
}

// memorySnapshot is a frozen copy of MemoryStore contents.
type memorySnapshot struct {
	mem map[string][]byte
}

// KeyValue represents key-value pair.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// NewMemoryStore creates a new MemoryStore object.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mem: make(map[string][]byte),
	}
}

// Get implements the Store interface.
func (s *MemoryStore) Get(key []byte) ([]byte, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return memGet(s.mem, key)
}

func memGet(m map[string][]byte, key []byte) ([]byte, error) {
	if val, ok := m[string(key)]; ok && val != nil {
		return val, nil
	}
	return nil, ErrKeyNotFound
}

// PutChangeSet implements the Store interface. Never returns an error.
func (s *MemoryStore) PutChangeSet(puts map[string][]byte) error {
	s.mut.Lock()
	for k, v := range puts {
		if v != nil {
			s.mem[k] = bytes.Clone(v)
		} else {
			delete(s.mem, k)
		}
	}
	s.mut.Unlock()
	return nil
}

// Seek implements the Store interface.
func (s *MemoryStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	s.mut.RLock()
	memSeek(s.mem, rng, f)
	s.mut.RUnlock()
}

// Snapshot implements the Store interface. It copies the whole store, so
// it's not cheap.
func (s *MemoryStore) Snapshot() (Snapshot, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	m := make(map[string][]byte, len(s.mem))
	for k, v := range s.mem {
		m[k] = v
	}
	return &memorySnapshot{mem: m}, nil
}

// memSeek is an unlocked implementation of Seek over the given map.
// Backwards seeking from some point is supported with corresponding
// SeekRange field set.
func memSeek(m map[string][]byte, rng SeekRange, f func(k, v []byte) bool) {
	sPrefix := string(rng.Prefix)
	lPrefix := len(sPrefix)
	sStart := string(rng.Start)
	lStart := len(sStart)
	var memList []KeyValue

	isKeyOK := func(key string) bool {
		return strings.HasPrefix(key, sPrefix) && (lStart == 0 || strings.Compare(key[lPrefix:], sStart) >= 0)
	}
	if rng.Backwards {
		isKeyOK = func(key string) bool {
			return strings.HasPrefix(key, sPrefix) && (lStart == 0 || strings.Compare(key[lPrefix:], sStart) <= 0)
		}
	}
	less := func(k1, k2 []byte) bool {
		res := bytes.Compare(k1, k2)
		return res != 0 && rng.Backwards == (res > 0)
	}

	for k, v := range m {
		if v != nil && isKeyOK(k) {
			memList = append(memList, KeyValue{
				Key:   []byte(k),
				Value: v,
			})
		}
	}
	sort.Slice(memList, func(i, j int) bool {
		return less(memList[i].Key, memList[j].Key)
	})
	for _, kv := range memList {
		if !f(kv.Key, kv.Value) {
			break
		}
	}
}

// Close implements Store interface and clears up memory. Never returns an
// error.
func (s *MemoryStore) Close() error {
	s.mut.Lock()
	s.mem = nil
	s.mut.Unlock()
	return nil
}

// Get implements the Snapshot interface.
func (s *memorySnapshot) Get(key []byte) ([]byte, error) {
	return memGet(s.mem, key)
}

// Seek implements the Snapshot interface.
func (s *memorySnapshot) Seek(rng SeekRange, f func(k, v []byte) bool) {
	memSeek(s.mem, rng, f)
}

// Release implements the Snapshot interface.
func (s *memorySnapshot) Release() {
	s.mem = nil
}
