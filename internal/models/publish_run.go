package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PublishRunStatus string

const (
	PublishRunRunning   PublishRunStatus = "running"
	PublishRunFailed    PublishRunStatus = "failed"
	PublishRunCompleted PublishRunStatus = "completed"
)

// PublishRun is one attempt to walk an offer through the publish pipeline.
// Steps holds the per-step state snapshot so the UI can poll it.
type PublishRun struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OfferID uint      `gorm:"not null;index" json:"offer_id"`
	Offer   *Offer    `gorm:"foreignKey:OfferID" json:"offer,omitempty"`

	Status PublishRunStatus `gorm:"type:varchar(20);default:'running';index" json:"status"`
	Steps  datatypes.JSON   `json:"steps"`

	PartnerCenterID string `gorm:"type:varchar(80)" json:"partner_center_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *PublishRun) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}
