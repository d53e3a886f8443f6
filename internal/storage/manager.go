package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upload-portal/backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// indexFileName is the msgpack sidecar holding staged file metadata.
const indexFileName = "index.msgpack"

// Store defines the interface for the staging blob store.
type Store interface {
	Save(name, contentType string, r io.Reader) (*models.StagedFile, error)
	Get(id string) (*models.StagedFile, error)
	Open(id string) (io.ReadCloser, error)
	Release(id string) error
	Len() int
}

// LocalStore implements Store on the local filesystem. Staged content is
// written under stagingDir keyed by blob ID; metadata is kept in memory and
// snapshotted to a msgpack index so a process restart does not orphan blobs.
type LocalStore struct {
	mu         sync.RWMutex
	stagingDir string
	files      map[string]*models.StagedFile
}

// NewLocalStore creates a LocalStore rooted at stagingDir, recovering any
// staged files recorded in the index from a previous run.
func NewLocalStore(stagingDir string) (*LocalStore, error) {
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	s := &LocalStore{
		stagingDir: stagingDir,
		files:      make(map[string]*models.StagedFile),
	}

	if err := s.loadIndex(); err != nil {
		return nil, fmt.Errorf("loading staging index: %w", err)
	}

	return s, nil
}

// Save stages the content of r and returns its metadata handle.
func (s *LocalStore) Save(name, contentType string, r io.Reader) (*models.StagedFile, error) {
	id := uuid.New().String()
	path := filepath.Join(s.stagingDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating staged file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing staged file: %w", err)
	}

	info := &models.StagedFile{
		ID:          id,
		Name:        name,
		Size:        size,
		ContentType: contentType,
		StagedAt:    time.Now(),
	}

	s.mu.Lock()
	s.files[id] = info
	s.persistIndexLocked()
	s.mu.Unlock()

	return info, nil
}

// Get retrieves staged file metadata by ID.
func (s *LocalStore) Get(id string) (*models.StagedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("staged file not found: %s", id)
	}

	return info, nil
}

// Open returns a reader over the staged content.
func (s *LocalStore) Open(id string) (io.ReadCloser, error) {
	s.mu.RLock()
	_, ok := s.files[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("staged file not found: %s", id)
	}

	f, err := os.Open(filepath.Join(s.stagingDir, id))
	if err != nil {
		return nil, fmt.Errorf("opening staged file: %w", err)
	}

	return f, nil
}

// Release removes a staged file and its content. Releasing an unknown ID is
// not an error; the caller may be discarding an already-replaced selection.
func (s *LocalStore) Release(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return nil
	}

	path := filepath.Join(s.stagingDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting staged file: %w", err)
	}

	delete(s.files, id)
	s.persistIndexLocked()

	return nil
}

// Len returns the number of staged files.
func (s *LocalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// loadIndex restores metadata from the msgpack sidecar, pruning entries
// whose content has gone missing on disk.
func (s *LocalStore) loadIndex() error {
	path := filepath.Join(s.stagingDir, indexFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var files map[string]*models.StagedFile
	if err := msgpack.Unmarshal(data, &files); err != nil {
		// A corrupt index is not fatal; start from an empty one.
		fmt.Printf("[Staging] Warning: discarding unreadable index: %v\n", err)
		return nil
	}

	for id, info := range files {
		if _, err := os.Stat(filepath.Join(s.stagingDir, id)); err != nil {
			continue
		}
		s.files[id] = info
	}

	return nil
}

// persistIndexLocked snapshots the metadata index. Best effort: a failed
// snapshot only weakens restart recovery, so it is logged and not returned.
// Caller must hold s.mu.
func (s *LocalStore) persistIndexLocked() {
	data, err := msgpack.Marshal(s.files)
	if err != nil {
		fmt.Printf("[Staging] Warning: failed to encode index: %v\n", err)
		return
	}

	path := filepath.Join(s.stagingDir, indexFileName)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		fmt.Printf("[Staging] Warning: failed to write index: %v\n", err)
		return
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		fmt.Printf("[Staging] Warning: failed to replace index: %v\n", err)
	}
}
