// Package audit writes structured audit entries for enrichment, report and
// settings operations. Writes are best effort.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/model"
)

// Writer persists audit entries.
type Writer interface {
	InsertAuditLog(ctx context.Context, entry model.AuditEntry) error
}

// Logger records audit entries. A nil Logger or nil Writer drops entries.
type Logger struct {
	w   Writer
	now func() time.Time
}

// New returns a Logger backed by w.
func New(w Writer) *Logger {
	return &Logger{w: w, now: time.Now}
}

// Record writes one entry. A failed write is logged and never returned, so
// callers cannot fail because of the audit sink.
func (l *Logger) Record(ctx context.Context, userID, action, entity, entityID string, meta map[string]any) {
	if l == nil || l.w == nil {
		return
	}
	entry := model.AuditEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Metadata:  meta,
		CreatedAt: l.now().UTC(),
	}
	if err := l.w.InsertAuditLog(ctx, entry); err != nil {
		zap.L().Warn("audit: write failed",
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}
