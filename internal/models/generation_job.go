package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GenerationJobStatus string

const (
	GenerationSubmitting GenerationJobStatus = "submitting"
	GenerationRunning    GenerationJobStatus = "running"
	GenerationSucceeded  GenerationJobStatus = "succeeded"
	GenerationFailed     GenerationJobStatus = "failed"
)

// GenerationJob tracks one submission to the generation backend and the
// offer it produced. Kept for status polling and for correlating the signed
// callback.
type GenerationJob struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`

	TargetURL string `gorm:"type:text;not null" json:"target_url"`
	Alias     string `gorm:"type:varchar(60);not null" json:"alias"`
	OfferType string `gorm:"type:varchar(30);not null" json:"offer_type"`

	// inert reference documents passed through to the backend
	Documents datatypes.JSON `json:"documents,omitempty"`

	RemoteJobID string              `gorm:"type:varchar(80);index" json:"remote_job_id"`
	Status      GenerationJobStatus `gorm:"type:varchar(20);default:'submitting';index" json:"status"`
	Error       string              `gorm:"type:text" json:"error,omitempty"`

	OfferID *uint  `gorm:"index" json:"offer_id,omitempty"`
	Offer   *Offer `gorm:"foreignKey:OfferID" json:"offer,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (j *GenerationJob) BeforeCreate(tx *gorm.DB) (err error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return
}
