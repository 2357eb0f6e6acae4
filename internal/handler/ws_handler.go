package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"notebuddy/internal/sync"
	"notebuddy/internal/websocket"
	"notebuddy/pkg/jwt"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	manager   *websocket.Manager
	jwtSecret string
	upgrader  ws.Upgrader
	log       *zap.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, jwtSecret string, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager:   manager,
		jwtSecret: jwtSecret,
		log:       log,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}
	}

	if token == "" {
		http.Error(w, "missing authorization token", http.StatusUnauthorized)
		return
	}

	claims, err := jwt.ValidateToken(token, h.jwtSecret)
	if err != nil {
		h.log.Debug("websocket token validation failed", zap.Error(err))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := websocket.NewClient(uuid.New().String(), claims.UserID, conn, h.manager)

	h.manager.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// EditMessageHandler routes incoming websocket messages into the sync layer.
// A note_edit message feeds the note's editing session (debounced remote
// save); close_note flushes and tears the session down.
type EditMessageHandler struct {
	service *sync.Service
	log     *zap.Logger
}

func NewEditMessageHandler(service *sync.Service, log *zap.Logger) *EditMessageHandler {
	return &EditMessageHandler{
		service: service,
		log:     log,
	}
}

func (h *EditMessageHandler) HandleWebSocketMessage(client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypeNoteEdit:
		return h.handleNoteEdit(client, msg)

	case websocket.TypeCloseNote:
		return h.handleCloseNote(client, msg)

	case websocket.TypePing:
		return h.handlePing(client)

	default:
		h.log.Debug("unknown websocket message type", zap.String("type", string(msg.Type)))
	}

	return nil
}

// ClientGone fires when a user's last connection drops. Open sessions are
// flushed and closed so nothing keeps debounce timers alive for a dead editor.
func (h *EditMessageHandler) ClientGone(client *websocket.Client) {
	h.service.CloseSessions(client.UserID)
}

func (h *EditMessageHandler) handleNoteEdit(client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.NoteEditPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return err
	}

	return h.service.Edit(context.Background(), client.UserID, payload.NoteID, payload.Title, payload.Content)
}

func (h *EditMessageHandler) handleCloseNote(client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.CloseNotePayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return err
	}

	h.service.CloseSession(client.UserID, payload.NoteID)
	return nil
}

func (h *EditMessageHandler) handlePing(client *websocket.Client) error {
	pong, err := websocket.NewMessage(websocket.TypePong, nil)
	if err != nil {
		return err
	}

	bytes, err := json.Marshal(pong)
	if err != nil {
		return err
	}

	client.Send <- bytes
	return nil
}
