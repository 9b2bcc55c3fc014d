package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/auth"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/storage"
)

const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return common.NewError(common.ErrorBadRequest, "Request body is required")
		}
		return common.NewError(common.ErrorBadRequest, "Invalid JSON body")
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, "@")
}

func checkEmail(v *common.ValidationError, email string) {
	if !validEmail(strings.TrimSpace(email)) {
		v.Add("email", "Invalid email format")
	}
}

func checkUsername(v *common.ValidationError, username string) {
	if len([]rune(strings.TrimSpace(username))) < 3 {
		v.Add("username", "Username must be at least 3 characters")
	}
}

func checkPassword(v *common.ValidationError, password string) {
	switch {
	case len(password) < 8:
		v.Add("password", "Password must be at least 8 characters")
	case len(password) > auth.MaxPasswordBytes:
		v.Add("password", auth.PasswordTooLongMessage)
	}
}

func validateRegister(req *registerRequest) error {
	v := &common.ValidationError{}
	checkEmail(v, req.Email)
	checkUsername(v, req.Username)
	checkPassword(v, req.Password)
	return v.Err()
}

func validateLogin(req *loginRequest) error {
	v := &common.ValidationError{}
	checkEmail(v, req.Email)
	if req.Password == "" {
		v.Add("password", "Password is required")
	}
	return v.Err()
}

func validateUserCreate(req *userCreateRequest) error {
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Username) == "" || req.Password == "" ||
		strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return common.NewError(common.ErrorBadRequest, "All fields are required")
	}
	v := &common.ValidationError{}
	checkEmail(v, req.Email)
	checkUsername(v, req.Username)
	checkPassword(v, req.Password)
	return v.Err()
}

func validateUserUpdate(req *userUpdateRequest) error {
	v := &common.ValidationError{}
	if req.Email != nil {
		checkEmail(v, *req.Email)
	}
	if req.Username != nil {
		checkUsername(v, *req.Username)
	}
	return v.Err()
}

// listParams is the parsed query of GET /api/files.
type listParams struct {
	Page      int
	Limit     int
	Search    string
	FolderID  *string
	SortBy    string
	SortOrder string
}

func parseListQuery(r *http.Request) (*listParams, error) {
	q := r.URL.Query()
	v := &common.ValidationError{}
	p := &listParams{
		Page:      1,
		Limit:     20,
		Search:    q.Get("search"),
		SortBy:    q.Get("sortBy"),
		SortOrder: strings.ToLower(q.Get("sortOrder")),
	}

	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			v.Add("page", "Page must be a positive integer")
		}
		p.Page = n
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 100 {
			v.Add("limit", "Limit must be between 1 and 100")
		}
		p.Limit = n
	}
	if p.SortOrder != "" && p.SortOrder != "asc" && p.SortOrder != "desc" {
		v.Add("sortOrder", "Sort order must be asc or desc")
	}
	if id := q.Get("folderId"); id != "" {
		p.FolderID = &id
	}

	if err := v.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// uploadRules is the upload policy applied before files reach the service.
type uploadRules struct {
	MaxFileSize       int64
	AllowedExtensions []string
	MaxFiles          int
}

func (u uploadRules) checkCount(n int) error {
	if u.MaxFiles > 0 && n > u.MaxFiles {
		return common.NewValidationError("files", fmt.Sprintf("Maximum %d files allowed per upload", u.MaxFiles))
	}
	return nil
}

func (u uploadRules) checkFile(field, name string, size int64) error {
	v := &common.ValidationError{}
	if u.MaxFileSize > 0 && size > u.MaxFileSize {
		v.Add(field, fmt.Sprintf("File size exceeds maximum limit of %dGB", u.MaxFileSize>>30))
	}
	if len(u.AllowedExtensions) > 0 {
		ext := strings.ToLower(strings.TrimPrefix(extOf(name), "."))
		allowed := false
		for _, a := range u.AllowedExtensions {
			if a == ext {
				allowed = true
				break
			}
		}
		if !allowed {
			v.Add(field, fmt.Sprintf("File type .%s is not allowed", ext))
		}
	}
	return v.Err()
}

func extOf(name string) string {
	name = storage.SanitizeName(name)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

// parseTags accepts a JSON array or a comma-separated list.
func parseTags(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var tags []string
	if strings.HasPrefix(s, "[") && json.Unmarshal([]byte(s), &tags) == nil {
		return cleanTags(tags)
	}
	return cleanTags(strings.Split(s, ","))
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
