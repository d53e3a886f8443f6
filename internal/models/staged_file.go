package models

import "time"

// StagedFile represents metadata about a file staged for submission.
// Content lives in the staging store and is addressed by ID; the handle
// itself never carries bytes.
type StagedFile struct {
	ID          string    `json:"id" msgpack:"id"`
	Name        string    `json:"name" msgpack:"name"`
	Size        int64     `json:"size" msgpack:"size"`
	ContentType string    `json:"contentType" msgpack:"contentType"`
	StagedAt    time.Time `json:"stagedAt" msgpack:"stagedAt"`
}
