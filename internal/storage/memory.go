package storage

import (
	"context"
	"fmt"
	"iter"
	"os"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory ObjectStorage. Tests use it as a stand-in for
// the real bucket; the exported fields inject failures per key so the
// archive engine can be driven through every failure stage without a
// network.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	PutErr   map[string]error // UploadFile returns this for the key
	StatErr  map[string]error // StatObject returns this for the key
	StatSize map[string]int64 // StatObject reports this size instead of the stored one
	ListErr  error            // ListObjects yields this before any object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string][]byte),
		PutErr:   make(map[string]error),
		StatErr:  make(map[string]error),
		StatSize: make(map[string]int64),
	}
}

// UploadFile reads the local file and stores its content under key.
func (m *MemoryStore) UploadFile(_ context.Context, localPath, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.PutErr[key]; err != nil {
		return err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("upload %s to %s: %w", localPath, key, err)
	}
	m.objects[key] = data
	return nil
}

// StatObject returns the stored object's metadata, or ErrNotFound.
func (m *MemoryStore) StatObject(_ context.Context, key string) (ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.StatErr[key]; err != nil {
		return ObjectInfo{}, err
	}
	data, ok := m.objects[key]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, ErrNotFound)
	}
	size := int64(len(data))
	if override, ok := m.StatSize[key]; ok {
		size = override
	}
	return ObjectInfo{Key: key, Size: size}, nil
}

// ListObjects yields the stored objects under prefix in key order.
func (m *MemoryStore) ListObjects(_ context.Context, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		m.mu.Lock()
		if m.ListErr != nil {
			err := m.ListErr
			m.mu.Unlock()
			yield(ObjectInfo{}, err)
			return
		}
		infos := make([]ObjectInfo, 0, len(m.objects))
		for key, data := range m.objects {
			if strings.HasPrefix(key, prefix) {
				infos = append(infos, ObjectInfo{Key: key, Size: int64(len(data))})
			}
		}
		m.mu.Unlock()

		sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
		for _, info := range infos {
			if !yield(info, nil) {
				return
			}
		}
	}
}

// Object returns the stored content for key.
func (m *MemoryStore) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var _ ObjectStorage = (*MemoryStore)(nil)
