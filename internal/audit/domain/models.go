package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// AuditLog records one state-changing operation.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	GarageID   *snowflake.ID     `gorm:"index" json:"garageId,omitempty"`
	ActorType  string            `gorm:"type:text;not null" json:"actorType"`
	ActorID    *string           `gorm:"type:text" json:"actorId,omitempty"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"type:text;not null" json:"targetType"`
	TargetID   *string           `gorm:"type:text;index" json:"targetId,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"type:text" json:"ipAddress,omitempty"`
	UserAgent  *string           `gorm:"type:text" json:"userAgent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"createdAt"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	GarageID   snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
