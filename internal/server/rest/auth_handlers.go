package rest

import (
	"net/http"

	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/services"
)

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Avatar    *string `json:"avatar"`
}

type sessionResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

type userResponse struct {
	User *models.User `json:"user"`
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := validateRegister(&req); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	sess, err := h.auth.Register(r.Context(), services.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		h.writeError(w, r, err, "Failed to register user")
		return
	}
	writeOK(w, http.StatusCreated, "User registered successfully", sessionResponse{User: sess.User, Token: sess.Token})
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := validateLogin(&req); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err, "Failed to login")
		return
	}
	writeOK(w, http.StatusOK, "Login successful", sessionResponse{User: sess.User, Token: sess.Token})
}

func (h *Handlers) profile(w http.ResponseWriter, r *http.Request) {
	prof, err := h.auth.Profile(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, r, err, "Failed to get profile")
		return
	}
	writeOK(w, http.StatusOK, "Profile retrieved successfully", prof)
}

func (h *Handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), principal(r), services.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Avatar:    req.Avatar,
	})
	if err != nil {
		h.writeError(w, r, err, "Failed to update profile")
		return
	}
	writeOK(w, http.StatusOK, "Profile updated successfully", userResponse{User: user})
}

// logout only acknowledges; tokens are stateless and discarded client-side.
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "Logout successful", nil)
}
