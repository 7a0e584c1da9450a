package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JaimeStill/rapport/pkg/lifecycle"
)

type memoryBlob struct {
	data        []byte
	contentType string
	modified    time.Time
}

type memory struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
}

// NewMemory returns a System that keeps blobs in process memory.
// Markers are the last key of the previous page.
func NewMemory() System {
	return &memory{blobs: make(map[string]memoryBlob)}
}

func (m *memory) Start(*lifecycle.Coordinator) error { return nil }

func (m *memory) List(ctx context.Context, prefix, marker string, maxResults int32) (*BlobList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) && k > marker {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	list := &BlobList{Blobs: []BlobMeta{}}
	for i, k := range keys {
		if maxResults > 0 && int32(i) == maxResults {
			list.NextMarker = keys[i-1]
			break
		}
		list.Blobs = append(list.Blobs, m.meta(k))
	}

	return list, nil
}

func (m *memory) Find(ctx context.Context, key string) (*BlobMeta, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.blobs[key]; !ok {
		return nil, ErrNotFound
	}
	meta := m.meta(key)
	return &meta, nil
}

func (m *memory) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}

	m.mu.Lock()
	m.blobs[key] = memoryBlob{data: data, contentType: contentType, modified: time.Now()}
	m.mu.Unlock()

	return nil
}

func (m *memory) Download(ctx context.Context, key string) (*BlobResult, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	m.mu.RLock()
	b, ok := m.blobs[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	return &BlobResult{
		Body:          io.NopCloser(bytes.NewReader(b.data)),
		ContentType:   b.contentType,
		ContentLength: int64(len(b.data)),
	}, nil
}

func (m *memory) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[key]; !ok {
		return ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}

func (m *memory) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blobs[key]
	return ok, nil
}

func (m *memory) meta(key string) BlobMeta {
	b := m.blobs[key]
	return BlobMeta{
		Key:           key,
		ContentType:   b.contentType,
		ContentLength: int64(len(b.data)),
		LastModified:  b.modified,
	}
}
