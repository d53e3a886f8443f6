package models

import "encoding/json"

// FormState is the JSON view of one upload form instance.
// Files always contains an entry for every category, empty or not.
type FormState struct {
	Files              map[Category][]StagedFile `json:"files"`
	ErrorMessage       string                    `json:"errorMessage,omitempty"`
	SubmissionInFlight bool                      `json:"submissionInFlight"`
}

// SubmitResult is the outcome of a successful submission. UploadedFiles is
// the collaborator's `uploaded_files` payload echoed verbatim so the
// confirmation surface can show exactly what the server accepted.
type SubmitResult struct {
	Message       string          `json:"message,omitempty"`
	UploadedFiles json.RawMessage `json:"uploadedFiles"`
	Errors        []string        `json:"errors,omitempty"`
}
