package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"notebuddy/internal/domain"
	"notebuddy/internal/middleware"
	"notebuddy/internal/search"
	"notebuddy/internal/sync"
	"notebuddy/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type NoteHandler struct {
	service  *sync.Service
	validate *validator.Validate
}

func NewNoteHandler(service *sync.Service) *NoteHandler {
	return &NoteHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		response.InternalError(w, "Failed to create note")
		return
	}

	response.Created(w, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	notes, err := h.service.List(r.Context(), userID)
	if err != nil {
		response.InternalError(w, "Failed to list notes")
		return
	}

	response.Success(w, notes)
}

// Search ranks the user's notes against a fuzzy query. Title matches rank
// above content matches and every hit carries a preview clipped around the
// matched text.
func (h *NoteHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		response.Success(w, []search.Result{})
		return
	}

	limit := search.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.BadRequest(w, "Limit must be a positive number")
			return
		}
		limit = parsed
	}

	userID := middleware.GetUserID(r)

	notes, err := h.service.List(r.Context(), userID)
	if err != nil {
		response.InternalError(w, "Failed to search notes")
		return
	}

	response.Success(w, search.Notes(notes, query, limit))
}

// Open loads a note for editing. When the cached copy and the remote copy have
// diverged beyond tolerance, the handler replies 409 with both versions so the
// client can present the resolution dialog.
func (h *NoteHandler) Open(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.Open(r.Context(), userID, noteID)
	if err != nil {
		var escalation *sync.ConflictEscalation
		if errors.As(err, &escalation) {
			response.Conflict(w, "version_conflict", escalation.Report)
			return
		}
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "Note not found")
			return
		}
		response.InternalError(w, "Failed to open note")
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	var req domain.UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.Update(r.Context(), userID, noteID, &req)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "Note not found")
			return
		}
		response.InternalError(w, "Failed to update note")
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.ToggleFavorite(r.Context(), userID, noteID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "Note not found")
			return
		}
		response.InternalError(w, "Failed to update note")
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	var req domain.ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	result, err := h.service.Resolve(r.Context(), userID, noteID, &req)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "Note not found")
			return
		}
		if errors.Is(err, sync.ErrEmptyMergedContent) {
			response.BadRequest(w, "Merged content is required")
			return
		}
		response.InternalError(w, "Failed to resolve conflict")
		return
	}

	response.Success(w, result)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	userID := middleware.GetUserID(r)

	existed, err := h.service.Delete(r.Context(), userID, noteID)
	if err != nil {
		response.InternalError(w, "Failed to delete note")
		return
	}
	if !existed {
		response.Success(w, map[string]string{"message": "Note already deleted"})
		return
	}

	response.Success(w, map[string]string{"message": "Note deleted successfully"})
}
