package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type OfferStatus string

const (
	OfferStatusDraft           OfferStatus = "draft"
	OfferStatusGenerating      OfferStatus = "generating"
	OfferStatusReadyToReview   OfferStatus = "ready_to_review"
	OfferStatusReadyToPublish  OfferStatus = "ready_to_publish"
	OfferStatusSubmitted       OfferStatus = "submitted"
	OfferStatusInPreview       OfferStatus = "in_preview"
	OfferStatusInCertification OfferStatus = "in_certification"
	OfferStatusPublished       OfferStatus = "published"
	OfferStatusFailed          OfferStatus = "failed"
)

// StatusLabel maps a lifecycle status to its dashboard label.
func StatusLabel(s OfferStatus) string {
	switch s {
	case OfferStatusDraft:
		return "Draft"
	case OfferStatusGenerating:
		return "Generating"
	case OfferStatusReadyToReview:
		return "Ready to review"
	case OfferStatusReadyToPublish:
		return "Ready to publish"
	case OfferStatusSubmitted:
		return "Submitted"
	case OfferStatusInPreview:
		return "In preview"
	case OfferStatusInCertification:
		return "In certification"
	case OfferStatusPublished:
		return "Published"
	case OfferStatusFailed:
		return "Failed"
	}
	return string(s)
}

// Offer is one marketplace listing draft. Each section is its own JSON
// column so a section save replaces exactly one column, never merges.
type Offer struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`

	Alias  string      `gorm:"type:varchar(60);index" json:"alias"`
	Status OfferStatus `gorm:"type:varchar(30);default:'draft';index" json:"status"`

	OfferSetup          datatypes.JSON `json:"offer_setup"`
	Properties          datatypes.JSON `json:"properties"`
	OfferListing        datatypes.JSON `json:"offer_listing"`
	Plans               datatypes.JSON `json:"plans"`
	TechnicalConfig     datatypes.JSON `json:"technical_config"`
	PreviewAudience     datatypes.JSON `json:"preview_audience"`
	ResellCSP           datatypes.JSON `gorm:"column:resell_csp" json:"resell_csp"`
	SupplementalContent datatypes.JSON `json:"supplemental_content"`

	// listing ID on the partner platform, set when publishing completes
	PartnerCenterID string `gorm:"type:varchar(80)" json:"partner_center_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SectionColumn maps a section key to its database column.
func SectionColumn(key string) (string, bool) {
	switch key {
	case "offerSetup":
		return "offer_setup", true
	case "properties":
		return "properties", true
	case "offerListing":
		return "offer_listing", true
	case "plans":
		return "plans", true
	case "technicalConfig":
		return "technical_config", true
	case "previewAudience":
		return "preview_audience", true
	case "resellCSP":
		return "resell_csp", true
	case "supplementalContent":
		return "supplemental_content", true
	}
	return "", false
}
