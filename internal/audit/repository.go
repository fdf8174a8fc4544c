package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/solespace/solespace-backend/pkg/db/models"
	"github.com/solespace/solespace-backend/pkg/enums"
)

// Entry describes one audited change.
type Entry struct {
	Action     enums.AuditAction
	Actor      enums.AuditActor
	UserID     *uuid.UUID
	EntityType string
	EntityID   string
	Metadata   map[string]any
}

// Repository appends rows to the audit trail.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Record writes entry. Callers pass their transaction through WithTx so the
// row commits with the change it describes.
func (r *Repository) Record(ctx context.Context, entry Entry) error {
	if entry.Action == "" || entry.EntityType == "" || entry.EntityID == "" {
		return fmt.Errorf("audit entry requires action, entity type and entity id")
	}
	if entry.Actor == "" {
		entry.Actor = enums.AuditActorSystem
	}
	var meta json.RawMessage
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		meta = raw
	}
	row := models.AuditLog{
		Action:     entry.Action,
		Actor:      entry.Actor,
		UserID:     entry.UserID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   meta,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// ListForEntity returns an entity's trail, oldest first.
func (r *Repository) ListForEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
