package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"notebuddy/internal/domain"
	"notebuddy/internal/files"
	"notebuddy/internal/middleware"
	"notebuddy/pkg/response"

	"github.com/gorilla/mux"
)

const maxUploadSize = 10 << 20

type FileHandler struct {
	service *files.Service
}

func NewFileHandler(service *files.Service) *FileHandler {
	return &FileHandler{service: service}
}

// Upload stores an attachment for a note. When the form carries extracted
// text, the content is attached to the note's AI context as well.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["noteId"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		response.BadRequest(w, "Invalid multipart payload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "File is required")
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		response.BadRequest(w, "Failed to read file")
		return
	}

	userID := middleware.GetUserID(r)
	contentType := header.Header.Get("Content-Type")

	meta, err := h.service.Upload(r.Context(), userID, noteID, header.Filename, contentType, body)
	if err != nil {
		if errors.Is(err, files.ErrUnsupportedFileType) {
			response.BadRequest(w, "Unsupported file type")
			return
		}
		response.InternalError(w, "Failed to upload file")
		return
	}

	if text := r.FormValue("extracted_text"); text != "" {
		if err := h.service.AttachContext(r.Context(), userID, noteID, header.Filename, meta.URL, text); err != nil {
			response.InternalError(w, "Failed to attach file context")
			return
		}
	}

	response.Created(w, meta)
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["noteId"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	userID := middleware.GetUserID(r)

	list, err := h.service.List(r.Context(), userID, noteID)
	if err != nil {
		response.InternalError(w, "Failed to list files")
		return
	}

	response.Success(w, list)
}

type deleteFileRequest struct {
	URL string `json:"url"`
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		response.BadRequest(w, "File URL is required")
		return
	}

	if err := h.service.Delete(r.Context(), middleware.GetUserID(r), req.URL); err != nil {
		if errors.Is(err, files.ErrNotOwned) {
			response.Forbidden(w, "File belongs to another user")
			return
		}
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "File not found")
			return
		}
		response.InternalError(w, "Failed to delete file")
		return
	}

	response.Success(w, map[string]string{"message": "File deleted successfully"})
}
