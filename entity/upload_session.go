package entity

import (
	"time"
)

// UploadStatus is the lifecycle of a multi-file upload session.
type UploadStatus string

const (
	UploadStatusProcessing UploadStatus = "PROCESSING"
	UploadStatusCompleted  UploadStatus = "COMPLETED"
	UploadStatusFailed     UploadStatus = "FAILED"
)

// UploadSession is the externally visible state of one multi-file upload.
// It is held in process memory and snapshotted to Redis, never stored in Postgres.
type UploadSession struct {
	ID          string       `json:"id"`
	AdAccountID string       `json:"ad_account_id"`
	UserID      string       `json:"user_id,omitempty"`
	TotalFiles  int          `json:"total_files"`
	Processed   int          `json:"processed"`
	Errors      []FileError  `json:"errors"`
	Status      UploadStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// FileError is one failed file inside a session.
type FileError struct {
	FileName string `json:"file_name"`
	Message  string `json:"message"`
}
