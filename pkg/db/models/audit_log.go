package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/solespace/solespace-backend/pkg/enums"
)

// AuditLog records who changed what on an order or address.
type AuditLog struct {
	ID         uint64            `gorm:"column:id;primaryKey;autoIncrement"`
	Action     enums.AuditAction `gorm:"column:action;not null;index"`
	Actor      enums.AuditActor  `gorm:"column:actor;not null"`
	UserID     *uuid.UUID        `gorm:"column:user_id;type:uuid"`
	EntityType string            `gorm:"column:entity_type;not null"`
	EntityID   string            `gorm:"column:entity_id;not null;index"`
	Metadata   json.RawMessage   `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}
