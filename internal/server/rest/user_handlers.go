package rest

import (
	"net/http"

	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type userCreateRequest struct {
	Email     string      `json:"email"`
	Username  string      `json:"username"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Password  string      `json:"password"`
	Role      models.Role `json:"role"`
}

type userUpdateRequest struct {
	Email     *string      `json:"email"`
	Username  *string      `json:"username"`
	FirstName *string      `json:"firstName"`
	LastName  *string      `json:"lastName"`
	Role      *models.Role `json:"role"`
	IsActive  *bool        `json:"isActive"`
}

func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, r, err, "Failed to retrieve users")
		return
	}
	writeOK(w, http.StatusOK, "Users retrieved successfully", users)
}

func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req userCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := validateUserCreate(&req); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	user, err := h.users.Create(r.Context(), principal(r), services.CreateUserInput{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		h.writeError(w, r, err, "Failed to create user")
		return
	}
	writeOK(w, http.StatusCreated, "User created successfully", user)
}

func (h *Handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	var req userUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := validateUserUpdate(&req); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	user, err := h.users.Update(r.Context(), principal(r), chi.URLParam(r, "id"), services.UpdateUserInput{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		IsActive:  req.IsActive,
	})
	if err != nil {
		h.writeError(w, r, err, "Failed to update user")
		return
	}
	writeOK(w, http.StatusOK, "User updated successfully", user)
}

func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err, "Failed to delete user")
		return
	}
	writeOK(w, http.StatusOK, "User deleted successfully", nil)
}

func (h *Handlers) toggleUserStatus(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.ToggleStatus(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "Failed to toggle user status")
		return
	}
	msg := "User deactivated successfully"
	if user.IsActive {
		msg = "User activated successfully"
	}
	writeOK(w, http.StatusOK, msg, user)
}
