package registry

import (
	"context"

	"inkwell/api/internal/session"
)

// SessionSlot binds the shared registry to one editing session so it
// satisfies the session.Registry interface: sets always win, clears only
// apply while this session still owns the slot.
type SessionSlot struct {
	reg       *RedisRegistry
	sessionID string
}

func ForSession(reg *RedisRegistry, sessionID string) *SessionSlot {
	return &SessionSlot{reg: reg, sessionID: sessionID}
}

func (s *SessionSlot) SetActive(ctx context.Context, doc session.ActiveDocument) error {
	return s.reg.Set(ctx, Entry{
		DocumentID: doc.DocumentID,
		Title:      doc.Title,
		URL:        doc.URL,
		SessionID:  s.sessionID,
	})
}

func (s *SessionSlot) ClearActive(ctx context.Context) error {
	return s.reg.Clear(ctx, s.sessionID)
}
