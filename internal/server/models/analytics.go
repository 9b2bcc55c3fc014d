package models

import "time"

// Analytics actions.
const (
	ActionFileUpload   = "FILE_UPLOAD"
	ActionFileDownload = "FILE_DOWNLOAD"
	ActionFileDelete   = "FILE_DELETE"
	ActionUserLogin    = "USER_LOGIN"
	ActionFolderCreate = "FOLDER_CREATE"
	ActionFolderDelete = "FOLDER_DELETE"
)

// AnalyticsEvent is an append-only usage record.
type AnalyticsEvent struct {
	ID        string
	UserID    string
	FileID    *string
	Action    string
	Metadata  map[string]any
	CreatedAt time.Time
}
