package rest

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

const (
	multipartMemory   = 32 << 20
	multipartOverhead = 10 << 20
)

type fileUpdateRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
	IsPublic    *bool     `json:"isPublic"`
}

type moveRequest struct {
	FolderID *string `json:"folderId"`
}

// parseUpload reads a multipart body and returns the parts under field.
// The caller must call cleanup.
func (h *Handlers) parseUpload(w http.ResponseWriter, r *http.Request, field string, maxFiles int) ([]*multipart.FileHeader, func(), error) {
	noop := func() {}

	if h.upload.MaxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.upload.MaxFileSize*int64(maxFiles)+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, noop, common.NewValidationError(field,
				fmt.Sprintf("File size exceeds maximum limit of %dGB", h.upload.MaxFileSize>>30))
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, common.NewError(common.ErrorBadRequest, noFileMessage(field))
		}
		return nil, noop, common.NewError(common.ErrorBadRequest, "Invalid multipart body")
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, cleanup, common.NewError(common.ErrorBadRequest, noFileMessage(field))
	}
	return headers, cleanup, nil
}

func noFileMessage(field string) string {
	if field == "files" {
		return "No files provided"
	}
	return "No file provided"
}

func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(extOf(fh.Filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// uploadInputs opens every part and pairs it with the shared form fields.
// Opened parts are closed by the returned close func.
func uploadInputs(r *http.Request, headers []*multipart.FileHeader) ([]services.UploadInput, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	form := r.MultipartForm.Value
	get := func(k string) string {
		if v := form[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	var folderID *string
	if id := get("folderId"); id != "" {
		folderID = &id
	}
	isPublic, _ := strconv.ParseBool(get("isPublic"))

	inputs := make([]services.UploadInput, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open multipart part: %w", err)
		}
		opened = append(opened, f)
		inputs = append(inputs, services.UploadInput{
			Body:         f,
			OriginalName: fh.Filename,
			MimeType:     contentType(fh),
			FolderID:     folderID,
			Description:  get("description"),
			Tags:         parseTags(get("tags")),
			IsPublic:     isPublic,
		})
	}
	return inputs, closeAll, nil
}

func (h *Handlers) uploadFile(w http.ResponseWriter, r *http.Request) {
	headers, cleanup, err := h.parseUpload(w, r, "file", 1)
	defer cleanup()
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := h.upload.checkFile("file", headers[0].Filename, headers[0].Size); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	inputs, closeAll, err := uploadInputs(r, headers[:1])
	defer closeAll()
	if err != nil {
		h.writeError(w, r, err, "Failed to upload file")
		return
	}

	file, err := h.files.Upload(r.Context(), principal(r), inputs[0])
	if err != nil {
		h.writeError(w, r, err, "Failed to upload file")
		return
	}
	writeOK(w, http.StatusCreated, "File uploaded successfully", file)
}

func (h *Handlers) uploadFiles(w http.ResponseWriter, r *http.Request) {
	maxFiles := h.upload.MaxFiles
	if maxFiles < 1 {
		maxFiles = 1
	}
	headers, cleanup, err := h.parseUpload(w, r, "files", maxFiles)
	defer cleanup()
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := h.upload.checkCount(len(headers)); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	for _, fh := range headers {
		if err := h.upload.checkFile("files", fh.Filename, fh.Size); err != nil {
			h.writeError(w, r, err, "")
			return
		}
	}

	inputs, closeAll, err := uploadInputs(r, headers)
	defer closeAll()
	if err != nil {
		h.writeError(w, r, err, "Failed to upload files")
		return
	}

	res, err := h.files.UploadBatch(r.Context(), principal(r), inputs)
	if err != nil {
		h.writeError(w, r, err, "Failed to upload files")
		return
	}
	writeOK(w, http.StatusCreated, fmt.Sprintf("%d files uploaded successfully", len(res.Files)), res)
}

func (h *Handlers) listFiles(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}

	res, err := h.files.List(r.Context(), principal(r), services.ListInput{
		FolderID:  q.FolderID,
		Search:    q.Search,
		Page:      q.Page,
		Limit:     q.Limit,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	})
	if err != nil {
		h.writeError(w, r, err, "Failed to retrieve files")
		return
	}

	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "Files retrieved successfully",
		Data:    res.Files,
		Pagination: &Pagination{
			Page:       res.Page,
			Limit:      res.Limit,
			Total:      res.Total,
			TotalPages: res.TotalPages,
		},
	})
}

func (h *Handlers) getFile(w http.ResponseWriter, r *http.Request) {
	file, err := h.files.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "Failed to retrieve file")
		return
	}
	writeOK(w, http.StatusOK, "File retrieved successfully", file)
}

func (h *Handlers) downloadFile(w http.ResponseWriter, r *http.Request) {
	dl, err := h.files.Download(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "Failed to download file")
		return
	}
	defer dl.Body.Close()

	ct := dl.File.MimeType
	if ct == "" {
		ct = "application/octet-stream"
	}
	name := strings.ReplaceAll(dl.File.OriginalName, `"`, "")

	hdr := w.Header()
	hdr.Set("Content-Type", ct)
	hdr.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	hdr.Set("Content-Length", strconv.FormatInt(dl.File.Size, 10))
	if dl.File.ContentHash != "" {
		hdr.Set("ETag", `"`+dl.File.ContentHash+`"`)
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl.Body); err != nil {
		h.log.Warn(r.Context(), "download interrupted", "file_id", dl.File.ID, "error", err)
	}
}

func (h *Handlers) fileURL(w http.ResponseWriter, r *http.Request) {
	link, err := h.files.PresignedURL(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "Failed to generate download link")
		return
	}
	writeOK(w, http.StatusOK, "Download link generated successfully", link)
}

func (h *Handlers) updateFile(w http.ResponseWriter, r *http.Request) {
	var req fileUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if req.Tags != nil {
		tags := cleanTags(*req.Tags)
		req.Tags = &tags
	}

	file, err := h.files.Update(r.Context(), principal(r), chi.URLParam(r, "id"), services.UpdateFileInput{
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		h.writeError(w, r, err, "Failed to update file")
		return
	}
	writeOK(w, http.StatusOK, "File updated successfully", file)
}

func (h *Handlers) moveFile(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	file, err := h.files.Move(r.Context(), principal(r), chi.URLParam(r, "id"), req.FolderID)
	if err != nil {
		h.writeError(w, r, err, "Failed to move file")
		return
	}
	writeOK(w, http.StatusOK, "File moved successfully", file)
}

func (h *Handlers) deleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.files.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err, "Failed to delete file")
		return
	}
	writeOK(w, http.StatusOK, "File deleted successfully", nil)
}
