package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"notebuddy/internal/ai"
	"notebuddy/internal/middleware"
	"notebuddy/pkg/response"

	"github.com/go-playground/validator/v10"
)

const maxRecordingSize = 25 << 20 // whisper upload cap

type AIHandler struct {
	service     *ai.Service
	transcriber *ai.Transcriber
	validate    *validator.Validate
}

func NewAIHandler(service *ai.Service, transcriber *ai.Transcriber) *AIHandler {
	return &AIHandler{
		service:     service,
		transcriber: transcriber,
		validate:    validator.New(),
	}
}

type completionRequest struct {
	NoteID string `json:"note_id" validate:"required"`
	Text   string `json:"text" validate:"required"`
}

func (h *AIHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	result, err := h.service.Complete(r.Context(), userID, req.NoteID, req.Text)
	if err != nil {
		response.InternalError(w, "Failed to generate completion")
		return
	}

	response.Success(w, result)
}

type summaryRequest struct {
	NoteID  string `json:"note_id" validate:"required"`
	Content string `json:"content" validate:"required"`
}

func (h *AIHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	result, err := h.service.Summarize(r.Context(), userID, req.NoteID, req.Content)
	if err != nil {
		response.InternalError(w, "Failed to summarize note")
		return
	}

	response.Success(w, result)
}

func (h *AIHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxRecordingSize); err != nil {
		response.BadRequest(w, "Invalid multipart payload")
		return
	}

	noteID := r.FormValue("note_id")
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		response.BadRequest(w, "Audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxRecordingSize))
	if err != nil {
		response.BadRequest(w, "Failed to read audio file")
		return
	}

	userID := middleware.GetUserID(r)

	result, err := h.transcriber.Transcribe(r.Context(), userID, noteID, audio)
	if err != nil {
		response.InternalError(w, "Failed to transcribe recording")
		return
	}

	response.Success(w, result)
}
