package handler

import (
	"encoding/json"
	"net/http"

	"notebuddy/internal/domain"
	"notebuddy/internal/middleware"
	"notebuddy/internal/sync"
	"notebuddy/pkg/response"
)

type SettingsHandler struct {
	service *sync.Service
}

func NewSettingsHandler(service *sync.Service) *SettingsHandler {
	return &SettingsHandler{service: service}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	settings, err := h.service.Settings(r.Context(), userID)
	if err != nil {
		response.InternalError(w, "Failed to load settings")
		return
	}

	response.Success(w, settings)
}

func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var settings domain.SessionSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	userID := middleware.GetUserID(r)

	if err := h.service.SaveSettings(r.Context(), userID, settings); err != nil {
		response.InternalError(w, "Failed to save settings")
		return
	}

	response.Success(w, settings)
}
