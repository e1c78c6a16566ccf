package memory

import (
	"context"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// AuditStore is an in-memory domain.AuditStore.
type AuditStore struct {
	db *DB
}

// NewAuditStore creates an AuditStore over db.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// Log appends an entry.
func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.audit = append(s.db.audit, domain.AuditEntry{
		ID:        int64(len(s.db.audit) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: s.db.now().UTC(),
	})
	return nil
}

// List returns up to limit entries, newest first.
func (s *AuditStore) List(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]domain.AuditEntry, 0, len(s.db.audit))
	for i := len(s.db.audit) - 1; i >= 0; i-- {
		out = append(out, s.db.audit[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var _ domain.AuditStore = (*AuditStore)(nil)
