package model

import (
	"time"

	"github.com/google/uuid"
)

// Document references an uploaded artifact. DownloadURL holds the storage key,
// never a signed URL.
type Document struct {
	ID          uuid.UUID `json:"id"`
	DownloadURL string    `json:"downloadUrl"`
	Description string    `json:"description"`
	UploadDate  time.Time `json:"uploadDate"`
}
