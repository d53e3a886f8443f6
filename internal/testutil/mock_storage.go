// mock_storage.go - Mock staging store for testing
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/upload-portal/backend/internal/models"
)

// MockStorage implements storage.Store in memory and records releases so
// tests can assert on blob lifecycle.
type MockStorage struct {
	mu       sync.RWMutex
	files    map[string]*models.StagedFile
	fileData map[string][]byte
	released map[string]bool
	nextID   int

	// FailOpen, when set, makes Open fail for every ID. Used to exercise
	// submission paths that cannot read staged content.
	FailOpen bool
}

// NewMockStorage creates an empty mock store.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.StagedFile),
		fileData: make(map[string][]byte),
		released: make(map[string]bool),
	}
}

func (m *MockStorage) Save(name, contentType string, r io.Reader) (*models.StagedFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	info := &models.StagedFile{
		ID:          fmt.Sprintf("mock-%d", m.nextID),
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		StagedAt:    time.Now(),
	}

	m.files[info.ID] = info
	m.fileData[info.ID] = data
	return info, nil
}

func (m *MockStorage) Get(id string) (*models.StagedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("staged file not found: %s", id)
	}
	return info, nil
}

func (m *MockStorage) Open(id string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailOpen {
		return nil, fmt.Errorf("open disabled for test")
	}

	data, ok := m.fileData[id]
	if !ok {
		return nil, fmt.Errorf("staged file not found: %s", id)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockStorage) Release(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[id]; !ok {
		return nil
	}

	delete(m.files, id)
	delete(m.fileData, id)
	m.released[id] = true
	return nil
}

func (m *MockStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// Released reports whether the given blob ID has been released.
func (m *MockStorage) Released(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.released[id]
}
