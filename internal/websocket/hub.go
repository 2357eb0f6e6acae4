package websocket

import (
	"go.uber.org/zap"

	"notebuddy/internal/domain"
)

// The manager doubles as the sync layer's Notifier: persistence events become
// broadcast messages to every connection the owning user has open.

func (m *Manager) SaveStatusChanged(userID, noteID string, status domain.SaveStatus) {
	m.broadcast(userID, TypeSaveStatus, &SaveStatusPayload{
		NoteID: noteID,
		Status: status,
	})
}

func (m *Manager) NoteUpdated(userID string, note *domain.Note) {
	m.broadcast(userID, TypeNoteUpdate, &NoteUpdatePayload{
		NoteID:    note.ID,
		Title:     note.Title,
		Content:   note.Content,
		UpdatedAt: note.UpdatedAt,
	})
}

func (m *Manager) NoteDeleted(userID, noteID string) {
	m.broadcast(userID, TypeNoteDelete, &NoteDeletePayload{
		NoteID: noteID,
	})
}

func (m *Manager) broadcast(userID string, msgType MessageType, payload interface{}) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		m.log.Warn("failed to build broadcast message",
			zap.String("type", string(msgType)), zap.Error(err))
		return
	}
	if err := m.BroadcastToUser(userID, msg); err != nil {
		m.log.Warn("failed to broadcast message",
			zap.String("type", string(msgType)), zap.Error(err))
	}
}
