package models

import "time"

// File is the metadata record of one stored object. Size is rendered as a
// decimal string so very large values survive JSON number handling.
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	OriginalName string    `json:"originalName"`
	StorageKey   string    `json:"path"`
	Size         int64     `json:"size,string"`
	MimeType     string    `json:"mimeType"`
	Extension    string    `json:"extension"`
	ContentHash  string    `json:"hash"`
	Description  string    `json:"description,omitempty"`
	Tags         []string  `json:"tags"`
	IsPublic     bool      `json:"isPublic"`
	FolderID     *string   `json:"folderId"`
	UserID       string    `json:"userId"`
	UploadedAt   time.Time `json:"uploadedAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UploadIntent records that bytes are about to be written under StorageKey.
// It is removed once the matching metadata row commits; stale intents point
// at objects that may be orphaned.
type UploadIntent struct {
	ID         string
	StorageKey string
	UserID     string
	CreatedAt  time.Time
}
