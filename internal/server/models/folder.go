package models

import "time"

// Folder is a named container in a user's tree. Path is the materialized
// "/a/b" chain of ancestor names; ParentID nil means root level.
type Folder struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Description string    `json:"description,omitempty"`
	ParentID    *string   `json:"parentId"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FolderDetail is a folder together with its direct contents.
type FolderDetail struct {
	Folder
	Children []Folder `json:"children"`
	Files    []File   `json:"files"`
}
