package auth

import (
	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
)

// Action is something a principal wants to do to a resource.
type Action int

const (
	// ActionRead views a file or folder: owner, or anyone for public files.
	ActionRead Action = iota
	// ActionWrite mutates or deletes a file or folder: owner only.
	ActionWrite
	// ActionManageUsers covers listing, creating and updating accounts.
	ActionManageUsers
	// ActionDeleteUser and ActionToggleUser also refuse the caller's own account.
	ActionDeleteUser
	ActionToggleUser
)

// Resource is what the policy needs to know about a target.
type Resource struct {
	// Kind names the resource in messages ("File", "Folder", "User").
	Kind    string
	OwnerID string
	Public  bool
}

// Authorize decides whether p may perform action on res. Ownership failures
// are reported as NotFound so callers cannot discover other users' resources;
// missing roles are Forbidden.
func Authorize(p *Principal, action Action, res Resource) error {
	if p == nil {
		return common.NewError(common.ErrorUnauthorized, "User not authenticated")
	}

	switch action {
	case ActionRead:
		if res.OwnerID == p.UserID || res.Public {
			return nil
		}
		return common.NewError(common.ErrorNotFound, res.Kind+" not found")

	case ActionWrite:
		if res.OwnerID == p.UserID {
			return nil
		}
		return common.NewError(common.ErrorNotFound, res.Kind+" not found")

	case ActionManageUsers, ActionDeleteUser, ActionToggleUser:
		if p.Role != models.RoleAdmin {
			return common.NewError(common.ErrorForbidden, "Access denied. Admin role required.")
		}
		if res.OwnerID == p.UserID {
			switch action {
			case ActionDeleteUser:
				return common.NewError(common.ErrorBadRequest, "Cannot delete your own account")
			case ActionToggleUser:
				return common.NewError(common.ErrorBadRequest, "Cannot deactivate your own account")
			}
		}
		return nil
	}

	return common.NewError(common.ErrorForbidden, "Access denied")
}
