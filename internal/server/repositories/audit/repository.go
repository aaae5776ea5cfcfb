package audit

import (
	"context"

	"github.com/psharma/securenotes/internal/server/models"
)

// Filter narrows a ListRecent query. Zero values match everything.
type Filter struct {
	UserID string
	Action models.AuditAction
}

// Repository is the append-only audit sink. There is deliberately no update
// or delete operation.
type Repository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	ListRecent(ctx context.Context, filter Filter, limit int) ([]*models.AuditEntry, error)
}
