package rest

import (
	"net/http"

	"github.com/dmitrijs2005/bigdatakeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type folderCreateRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ParentID    *string `json:"parentId"`
}

type folderUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *Handlers) listFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.folders.List(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, r, err, "Failed to retrieve folders")
		return
	}
	writeOK(w, http.StatusOK, "Folders retrieved successfully", folders)
}

func (h *Handlers) createFolder(w http.ResponseWriter, r *http.Request) {
	var req folderCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	folder, err := h.folders.Create(r.Context(), principal(r), services.CreateFolderInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	})
	if err != nil {
		h.writeError(w, r, err, "Failed to create folder")
		return
	}
	writeOK(w, http.StatusCreated, "Folder created successfully", folder)
}

func (h *Handlers) getFolder(w http.ResponseWriter, r *http.Request) {
	folder, err := h.folders.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "Failed to retrieve folder")
		return
	}
	writeOK(w, http.StatusOK, "Folder retrieved successfully", folder)
}

func (h *Handlers) updateFolder(w http.ResponseWriter, r *http.Request) {
	var req folderUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	folder, err := h.folders.Update(r.Context(), principal(r), chi.URLParam(r, "id"), services.UpdateFolderInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, r, err, "Failed to update folder")
		return
	}
	writeOK(w, http.StatusOK, "Folder updated successfully", folder)
}

func (h *Handlers) deleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.folders.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err, "Failed to delete folder")
		return
	}
	writeOK(w, http.StatusOK, "Folder deleted successfully", nil)
}
