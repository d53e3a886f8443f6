// Package session tracks live upload form instances, one per browser
// session.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upload-portal/backend/internal/models"
	"github.com/upload-portal/backend/internal/staging"
	"github.com/upload-portal/backend/internal/storage"
)

// DefaultMaxForms limits concurrent forms to prevent unbounded staging.
const DefaultMaxForms = 50

// DefaultFormMaxAge is how long an untouched form is kept before cleanup.
const DefaultFormMaxAge = 30 * time.Minute

// Manager handles active upload forms.
type Manager struct {
	mu       sync.RWMutex
	forms    map[string]*formEntry
	store    storage.Store
	client   staging.Uploader
	table    []models.CategorySpec
	maxForms int
}

type formEntry struct {
	form         *staging.Form
	lastAccessed time.Time
}

// NewManager creates a form manager backed by the given store and uploader.
func NewManager(store storage.Store, client staging.Uploader, table []models.CategorySpec) *Manager {
	return &Manager{
		forms:    make(map[string]*formEntry),
		store:    store,
		client:   client,
		table:    table,
		maxForms: DefaultMaxForms,
	}
}

// SetMaxForms overrides the concurrent form cap.
func (m *Manager) SetMaxForms(n int) {
	if n > 0 {
		m.maxForms = n
	}
}

// Create makes a fresh, all-empty form and returns it.
func (m *Manager) Create() (*staging.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.forms) >= m.maxForms {
		m.evictOldestLocked()
	}
	if len(m.forms) >= m.maxForms {
		return nil, fmt.Errorf("form limit reached (%d)", m.maxForms)
	}

	id := uuid.New().String()
	form := staging.NewForm(id, m.store, m.client, m.table)
	m.forms[id] = &formEntry{
		form:         form,
		lastAccessed: time.Now(),
	}

	return form, nil
}

// Get returns the form with the given ID, refreshing its last-access time.
func (m *Manager) Get(id string) (*staging.Form, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.forms[id]
	if !ok {
		return nil, false
	}

	entry.lastAccessed = time.Now()
	return entry.form, true
}

// Delete removes a form and releases its staged files.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	entry, ok := m.forms[id]
	if ok {
		delete(m.forms, id)
	}
	m.mu.Unlock()

	if ok {
		entry.form.Discard()
	}
}

// Count returns the number of live forms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.forms)
}

// CleanupIdleForms discards forms untouched for longer than maxAge.
func (m *Manager) CleanupIdleForms(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var expired []*formEntry
	for id, entry := range m.forms {
		if entry.lastAccessed.Before(cutoff) {
			expired = append(expired, entry)
			delete(m.forms, id)
		}
	}
	m.mu.Unlock()

	for _, entry := range expired {
		fmt.Printf("[Forms] Cleaning up idle form %.8s\n", entry.form.ID())
		entry.form.Discard()
	}
}

// evictOldestLocked drops the least recently touched form to make room.
// Caller must hold m.mu.
func (m *Manager) evictOldestLocked() {
	var oldestID string
	var oldest *formEntry
	for id, entry := range m.forms {
		if oldest == nil || entry.lastAccessed.Before(oldest.lastAccessed) {
			oldestID = id
			oldest = entry
		}
	}

	if oldest == nil {
		return
	}

	delete(m.forms, oldestID)
	fmt.Printf("[Forms] Evicting oldest form %.8s to stay under limit\n", oldestID)
	oldest.form.Discard()
}
