package websocket

import (
	"encoding/json"
	"time"

	"notebuddy/internal/domain"
)

type MessageType string

const (
	// Client -> server.
	TypeNoteEdit  MessageType = "note_edit"
	TypeCloseNote MessageType = "close_note"
	TypePing      MessageType = "ping"

	// Server -> client.
	TypeSaveStatus MessageType = "save_status"
	TypeNoteUpdate MessageType = "note_update"
	TypeNoteDelete MessageType = "note_delete"
	TypePong       MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NoteEditPayload carries one content-change event from the editor. Content is
// the full current state, not a delta.
type NoteEditPayload struct {
	NoteID  string `json:"note_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type CloseNotePayload struct {
	NoteID string `json:"note_id"`
}

type SaveStatusPayload struct {
	NoteID string            `json:"note_id"`
	Status domain.SaveStatus `json:"status"`
}

type NoteUpdatePayload struct {
	NoteID    string    `json:"note_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NoteDeletePayload struct {
	NoteID string `json:"note_id"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
