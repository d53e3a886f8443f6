// Package staging owns the upload form state: the category to staged-file
// mapping, the single error message slot, and the submission action.
package staging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/upload-portal/backend/internal/models"
	"github.com/upload-portal/backend/internal/storage"
	"github.com/upload-portal/backend/internal/uploader"
)

// NoFilesMessage is shown when submit is invoked with nothing staged.
const NoFilesMessage = "No files selected"

var (
	// ErrNoFilesSelected reports a submit with every category empty. The
	// network is never touched in this case.
	ErrNoFilesSelected = errors.New("no files selected")

	// ErrSubmissionInFlight reports a submit while a previous one is still
	// waiting on the collaborator.
	ErrSubmissionInFlight = errors.New("submission already in progress")

	// ErrUnknownCategory reports a category outside the fixed set.
	ErrUnknownCategory = errors.New("unknown category")
)

// Uploader performs the outbound multipart submission.
type Uploader interface {
	Upload(ctx context.Context, parts []uploader.Part) (*uploader.Receipt, error)
}

// Form is one upload form instance. All state transitions are serialized by
// its mutex; only the network step of Submit runs outside it, so selections
// remain possible while a submission is in flight.
type Form struct {
	id     string
	store  storage.Store
	client Uploader
	fields map[models.Category]string

	mu       sync.Mutex
	files    map[models.Category][]models.StagedFile
	errorMsg string
	inFlight bool
}

// NewForm creates a form with every category present and empty.
func NewForm(id string, store storage.Store, client Uploader, table []models.CategorySpec) *Form {
	fields := make(map[models.Category]string, len(table))
	for _, spec := range table {
		fields[spec.Name] = spec.Field
	}

	files := make(map[models.Category][]models.StagedFile, len(models.AllCategories))
	for _, c := range models.AllCategories {
		files[c] = []models.StagedFile{}
	}

	return &Form{
		id:     id,
		store:  store,
		client: client,
		fields: fields,
		files:  files,
	}
}

// ID returns the form's identifier.
func (f *Form) ID() string {
	return f.id
}

// State returns a copy of the current form state.
func (f *Form) State() models.FormState {
	f.mu.Lock()
	defer f.mu.Unlock()

	files := make(map[models.Category][]models.StagedFile, len(f.files))
	for c, list := range f.files {
		files[c] = append([]models.StagedFile{}, list...)
	}

	return models.FormState{
		Files:              files,
		ErrorMessage:       f.errorMsg,
		SubmissionInFlight: f.inFlight,
	}
}

// SelectFiles replaces the category's staged sequence with batch, releasing
// the blobs of the discarded selection and clearing the error message. An
// empty batch means the picker was cancelled and is a no-op.
func (f *Form) SelectFiles(category models.Category, batch []models.StagedFile) error {
	if _, ok := f.fields[category]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	if len(batch) == 0 {
		return nil
	}

	f.mu.Lock()
	previous := f.files[category]
	f.files[category] = append([]models.StagedFile{}, batch...)
	f.errorMsg = ""
	f.mu.Unlock()

	f.releaseAll(previous)
	return nil
}

// RemoveFile removes the staged entry at index from the category, keeping
// the rest in order. Out-of-range indexes are tolerated silently.
func (f *Form) RemoveFile(category models.Category, index int) {
	f.mu.Lock()
	list := f.files[category]
	if index < 0 || index >= len(list) {
		f.mu.Unlock()
		return
	}

	removed := list[index]
	kept := make([]models.StagedFile, 0, len(list)-1)
	kept = append(kept, list[:index]...)
	kept = append(kept, list[index+1:]...)
	f.files[category] = kept
	f.mu.Unlock()

	f.release(removed)
}

// Submit flattens the staged state into one multipart payload and posts it
// to the collaborator. On acceptance the whole form resets to empty; on
// rejection or transport failure the staged files stay put so the user can
// retry without re-selecting.
func (f *Form) Submit(ctx context.Context) (*models.SubmitResult, error) {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}

	hasAny := false
	for _, c := range models.AllCategories {
		if len(f.files[c]) > 0 {
			hasAny = true
			break
		}
	}
	if !hasAny {
		f.errorMsg = NoFilesMessage
		f.mu.Unlock()
		return nil, ErrNoFilesSelected
	}

	f.inFlight = true
	snapshot := make(map[models.Category][]models.StagedFile, len(f.files))
	for c, list := range f.files {
		snapshot[c] = append([]models.StagedFile{}, list...)
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight = false
		f.mu.Unlock()
	}()

	parts, err := f.buildParts(snapshot)
	if err != nil {
		f.setError(err.Error())
		return nil, err
	}

	receipt, err := f.client.Upload(ctx, parts)
	if err != nil {
		var rejected *uploader.RejectedError
		if errors.As(err, &rejected) {
			f.setError(rejected.Message)
			return nil, err
		}

		message := err.Error()
		if message == "" {
			message = uploader.FallbackRejectionMessage
		}
		f.setError(message)
		fmt.Printf("[Submit %.8s] Transport failure: %v\n", f.id, err)
		return nil, err
	}

	f.reset()

	return &models.SubmitResult{
		Message:       receipt.Message,
		UploadedFiles: receipt.UploadedFiles,
		Errors:        receipt.Errors,
	}, nil
}

// Discard releases every staged blob. Used when the form's session ends.
func (f *Form) Discard() {
	f.mu.Lock()
	var all []models.StagedFile
	for c, list := range f.files {
		all = append(all, list...)
		f.files[c] = []models.StagedFile{}
	}
	f.errorMsg = ""
	f.mu.Unlock()

	f.releaseAll(all)
}

// buildParts opens staged content in the fixed category order. On failure
// every reader opened so far is closed.
func (f *Form) buildParts(snapshot map[models.Category][]models.StagedFile) ([]uploader.Part, error) {
	var parts []uploader.Part
	for _, c := range models.AllCategories {
		field := f.fields[c]
		for _, staged := range snapshot[c] {
			content, err := f.store.Open(staged.ID)
			if err != nil {
				for _, p := range parts {
					p.Content.Close()
				}
				return nil, fmt.Errorf("reading staged file %q: %w", staged.Name, err)
			}
			parts = append(parts, uploader.Part{
				Field:       field,
				FileName:    staged.Name,
				ContentType: staged.ContentType,
				Content:     content,
			})
		}
	}
	return parts, nil
}

// reset clears every category and the error message after an accepted
// submission, releasing the staged blobs.
func (f *Form) reset() {
	f.mu.Lock()
	var all []models.StagedFile
	for c, list := range f.files {
		all = append(all, list...)
		f.files[c] = []models.StagedFile{}
	}
	f.errorMsg = ""
	f.mu.Unlock()

	f.releaseAll(all)
}

func (f *Form) setError(message string) {
	f.mu.Lock()
	f.errorMsg = message
	f.mu.Unlock()
}

func (f *Form) release(staged models.StagedFile) {
	if err := f.store.Release(staged.ID); err != nil {
		fmt.Printf("[Form %.8s] Warning: failed to release %s: %v\n", f.id, staged.ID, err)
	}
}

func (f *Form) releaseAll(staged []models.StagedFile) {
	for _, s := range staged {
		f.release(s)
	}
}
