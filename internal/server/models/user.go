// Package models defines server-side data models persisted in the database.
package models

import "time"

// Role is the access level of a user account.
type Role string

const (
	RoleUser   Role = "USER"
	RoleEditor Role = "EDITOR"
	RoleAdmin  Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// User is an account record. PasswordDigest is never serialized.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	FirstName      string    `json:"firstName,omitempty"`
	LastName       string    `json:"lastName,omitempty"`
	Avatar         string    `json:"avatar,omitempty"`
	PasswordDigest string    `json:"-"`
	Role           Role      `json:"role"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// UserStats summarizes what a user stores.
type UserStats struct {
	FileCount   int64 `json:"fileCount"`
	FolderCount int64 `json:"folderCount"`
	TotalSize   int64 `json:"totalSize,string"`
}
