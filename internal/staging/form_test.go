// form_test.go - Tests for the upload form state machine
package staging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/upload-portal/backend/internal/models"
	"github.com/upload-portal/backend/internal/testutil"
	"github.com/upload-portal/backend/internal/uploader"
)

// stubUploader records submissions and answers with a canned outcome.
type stubUploader struct {
	mu      sync.Mutex
	receipt *uploader.Receipt
	err     error
	calls   int
	parts   []uploader.Part
	block   chan struct{} // when set, Upload waits until closed
}

func (s *stubUploader) Upload(ctx context.Context, parts []uploader.Part) (*uploader.Receipt, error) {
	s.mu.Lock()
	s.calls++
	s.parts = parts
	block := s.block
	s.mu.Unlock()

	for _, p := range parts {
		p.Content.Close()
	}
	if block != nil {
		<-block
	}
	return s.receipt, s.err
}

func (s *stubUploader) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func defaultTable() []models.CategorySpec {
	return []models.CategorySpec{
		{Name: models.CategoryImages, Field: "images", Accept: "image/*", Label: "Images"},
		{Name: models.CategoryPDF, Field: "pdf", Accept: ".pdf", Label: "PDFs"},
		{Name: models.CategoryJSON, Field: "json", Accept: ".json", Label: "JSON"},
		{Name: models.CategoryTxt, Field: "txt", Accept: ".txt", Label: "Text"},
	}
}

func newTestForm(up Uploader) (*Form, *testutil.MockStorage) {
	store := testutil.NewMockStorage()
	return NewForm("form-under-test", store, up, defaultTable()), store
}

func stage(t *testing.T, store *testutil.MockStorage, name, content string) models.StagedFile {
	t.Helper()
	info, err := store.Save(name, "text/plain", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Failed to stage %s: %v", name, err)
	}
	return *info
}

func TestNewFormStartsEmpty(t *testing.T) {
	form, _ := newTestForm(&stubUploader{})
	state := form.State()

	if len(state.Files) != len(models.AllCategories) {
		t.Fatalf("Expected all %d categories present, got %d", len(models.AllCategories), len(state.Files))
	}
	for _, c := range models.AllCategories {
		list, ok := state.Files[c]
		if !ok {
			t.Errorf("Category %s missing from state", c)
		}
		if len(list) != 0 {
			t.Errorf("Expected empty sequence for %s, got %d entries", c, len(list))
		}
	}
	if state.ErrorMessage != "" {
		t.Errorf("Expected no error message, got %q", state.ErrorMessage)
	}
	if state.SubmissionInFlight {
		t.Error("Expected no submission in flight")
	}
}

func TestSelectFilesReplacesNotAppends(t *testing.T) {
	form, store := newTestForm(&stubUploader{})

	f1 := stage(t, store, "f1.txt", "1")
	f2 := stage(t, store, "f2.txt", "2")
	f3 := stage(t, store, "f3.txt", "3")

	if err := form.SelectFiles(models.CategoryTxt, []models.StagedFile{f1, f2}); err != nil {
		t.Fatalf("SelectFiles failed: %v", err)
	}
	if err := form.SelectFiles(models.CategoryTxt, []models.StagedFile{f3}); err != nil {
		t.Fatalf("SelectFiles failed: %v", err)
	}

	list := form.State().Files[models.CategoryTxt]
	if len(list) != 1 || list[0].Name != "f3.txt" {
		t.Fatalf("Expected replacement to leave only f3.txt, got %v", list)
	}

	// The discarded selection's blobs must be released.
	if !store.Released(f1.ID) || !store.Released(f2.ID) {
		t.Error("Expected replaced selection blobs to be released")
	}
	if store.Released(f3.ID) {
		t.Error("Current selection must not be released")
	}
}

func TestSelectFilesEmptyBatchIsNoOp(t *testing.T) {
	form, store := newTestForm(&stubUploader{})
	f1 := stage(t, store, "f1.txt", "1")

	if err := form.SelectFiles(models.CategoryTxt, []models.StagedFile{f1}); err != nil {
		t.Fatalf("SelectFiles failed: %v", err)
	}
	form.setError("lingering failure")

	// Cancelled picker: nothing changes, not even the error banner.
	if err := form.SelectFiles(models.CategoryTxt, nil); err != nil {
		t.Fatalf("SelectFiles failed: %v", err)
	}

	state := form.State()
	if len(state.Files[models.CategoryTxt]) != 1 {
		t.Errorf("Expected selection to survive an empty batch, got %v", state.Files[models.CategoryTxt])
	}
	if state.ErrorMessage != "lingering failure" {
		t.Errorf("Empty batch must not clear the error message, got %q", state.ErrorMessage)
	}
}

func TestSelectFilesClearsError(t *testing.T) {
	form, store := newTestForm(&stubUploader{})
	form.setError("previous failure")

	f1 := stage(t, store, "f1.txt", "1")
	if err := form.SelectFiles(models.CategoryTxt, []models.StagedFile{f1}); err != nil {
		t.Fatalf("SelectFiles failed: %v", err)
	}

	if msg := form.State().ErrorMessage; msg != "" {
		t.Errorf("Expected error cleared on selection, got %q", msg)
	}
}

func TestSelectFilesUnknownCategory(t *testing.T) {
	form, store := newTestForm(&stubUploader{})
	f1 := stage(t, store, "f1.bin", "1")

	err := form.SelectFiles(models.Category("videos"), []models.StagedFile{f1})
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("Expected ErrUnknownCategory, got %v", err)
	}
}

func TestRemoveFile(t *testing.T) {
	form, store := newTestForm(&stubUploader{})
	f1 := stage(t, store, "f1.txt", "1")
	f2 := stage(t, store, "f2.txt", "2")
	f3 := stage(t, store, "f3.txt", "3")

	if err := form.SelectFiles(models.CategoryTxt, []models.StagedFile{f1, f2, f3}); err != nil {
		t.Fatalf("SelectFiles failed: %v", err)
	}

	form.RemoveFile(models.CategoryTxt, 1)

	list := form.State().Files[models.CategoryTxt]
	if len(list) != 2 || list[0].Name != "f1.txt" || list[1].Name != "f3.txt" {
		t.Fatalf("Expected [f1 f3] after removing index 1, got %v", list)
	}
	if !store.Released(f2.ID) {
		t.Error("Expected removed entry's blob to be released")
	}

	// Stale index: position 2 no longer exists, nothing else may vanish.
	form.RemoveFile(models.CategoryTxt, 2)
	list = form.State().Files[models.CategoryTxt]
	if len(list) != 2 {
		t.Fatalf("Out-of-range removal must be a no-op, got %v", list)
	}

	form.RemoveFile(models.CategoryTxt, -1)
	if len(form.State().Files[models.CategoryTxt]) != 2 {
		t.Error("Negative index removal must be a no-op")
	}
}

func TestSubmitWithNothingStaged(t *testing.T) {
	up := &stubUploader{}
	form, _ := newTestForm(up)

	_, err := form.Submit(context.Background())
	if !errors.Is(err, ErrNoFilesSelected) {
		t.Fatalf("Expected ErrNoFilesSelected, got %v", err)
	}
	if up.callCount() != 0 {
		t.Error("No network call may happen when nothing is staged")
	}
	if msg := form.State().ErrorMessage; msg != NoFilesMessage {
		t.Errorf("Expected %q, got %q", NoFilesMessage, msg)
	}
}

func TestSubmitSuccessResetsForm(t *testing.T) {
	up := &stubUploader{
		receipt: &uploader.Receipt{
			Message:       "All files uploaded successfully",
			UploadedFiles: []byte(`{"images":[{"filename":"f1.png"}]}`),
		},
	}
	form, store := newTestForm(up)

	f1 := stage(t, store, "f1.png", "png")
	if err := form.SelectFiles(models.CategoryImages, []models.StagedFile{f1}); err != nil {
		t.Fatalf("SelectFiles failed: %v", err)
	}
	form.setError("old failure")

	result, err := form.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if !strings.Contains(string(result.UploadedFiles), "f1.png") {
		t.Errorf("Expected confirmation to carry f1.png, got %s", result.UploadedFiles)
	}

	state := form.State()
	for _, c := range models.AllCategories {
		if len(state.Files[c]) != 0 {
			t.Errorf("Expected %s cleared after success, got %v", c, state.Files[c])
		}
	}
	if state.ErrorMessage != "" {
		t.Errorf("Expected error cleared after success, got %q", state.ErrorMessage)
	}
	if !store.Released(f1.ID) {
		t.Error("Expected staged blob released after success")
	}
}

func TestSubmitRejectedKeepsStagedFiles(t *testing.T) {
	up := &stubUploader{
		err: &uploader.RejectedError{Status: 400, Message: "bad file"},
	}
	form, store := newTestForm(up)

	f1 := stage(t, store, "f1.png", "png")
	if err := form.SelectFiles(models.CategoryImages, []models.StagedFile{f1}); err != nil {
		t.Fatalf("SelectFiles failed: %v", err)
	}

	_, err := form.Submit(context.Background())
	var rejected *uploader.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Expected RejectedError, got %v", err)
	}

	state := form.State()
	if state.ErrorMessage != "bad file" {
		t.Errorf("Expected server error surfaced, got %q", state.ErrorMessage)
	}
	list := state.Files[models.CategoryImages]
	if len(list) != 1 || list[0].ID != f1.ID {
		t.Errorf("Staged files must survive rejection for retry, got %v", list)
	}
	if store.Released(f1.ID) {
		t.Error("Staged blob must not be released on rejection")
	}
}

func TestSubmitTransportFailureKeepsStagedFiles(t *testing.T) {
	up := &stubUploader{err: errors.New("connection refused")}
	form, store := newTestForm(up)

	f1 := stage(t, store, "f1.png", "png")
	if err := form.SelectFiles(models.CategoryImages, []models.StagedFile{f1}); err != nil {
		t.Fatalf("SelectFiles failed: %v", err)
	}

	_, err := form.Submit(context.Background())
	if err == nil {
		t.Fatal("Expected transport failure")
	}

	state := form.State()
	if !strings.Contains(state.ErrorMessage, "connection refused") {
		t.Errorf("Expected transport description surfaced, got %q", state.ErrorMessage)
	}
	if len(state.Files[models.CategoryImages]) != 1 {
		t.Error("Staged files must survive transport failure for retry")
	}
	if store.Released(f1.ID) {
		t.Error("Staged blob must not be released on transport failure")
	}
}

func TestSubmitFieldOrderAndNames(t *testing.T) {
	up := &stubUploader{receipt: &uploader.Receipt{}}
	form, store := newTestForm(up)

	img := stage(t, store, "a.png", "png")
	pdf := stage(t, store, "b.pdf", "pdf")
	txt1 := stage(t, store, "c.txt", "c")
	txt2 := stage(t, store, "d.txt", "d")

	// Stage out of display order; the wire must still follow it.
	form.SelectFiles(models.CategoryTxt, []models.StagedFile{txt1, txt2})
	form.SelectFiles(models.CategoryImages, []models.StagedFile{img})
	form.SelectFiles(models.CategoryPDF, []models.StagedFile{pdf})

	if _, err := form.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	var got []string
	for _, p := range up.parts {
		got = append(got, p.Field+":"+p.FileName)
	}
	want := []string{"images:a.png", "pdf:b.pdf", "txt:c.txt", "txt:d.txt"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d parts, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Part %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestSubmitRejectsOverlappingCalls(t *testing.T) {
	release := make(chan struct{})
	up := &stubUploader{receipt: &uploader.Receipt{}, block: release}
	form, store := newTestForm(up)

	f1 := stage(t, store, "f1.txt", "1")
	form.SelectFiles(models.CategoryTxt, []models.StagedFile{f1})

	firstDone := make(chan error, 1)
	go func() {
		_, err := form.Submit(context.Background())
		firstDone <- err
	}()

	// Wait for the first submission to reach the network step.
	for i := 0; up.callCount() == 0 && i < 100; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if up.callCount() == 0 {
		t.Fatal("First submission never reached the uploader")
	}

	if !form.State().SubmissionInFlight {
		t.Error("Expected in-flight flag set during submission")
	}

	_, err := form.Submit(context.Background())
	if !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("Expected ErrSubmissionInFlight, got %v", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("First submission failed: %v", err)
	}

	if form.State().SubmissionInFlight {
		t.Error("Expected in-flight flag cleared after completion")
	}
	if up.callCount() != 1 {
		t.Errorf("Expected exactly one upload, got %d", up.callCount())
	}
}
