package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

type User struct {
	ID    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	Email string    `gorm:"uniqueIndex;not null" json:"email"`

	Password string `gorm:"not null" json:"-"`
	Role     Role   `gorm:"type:varchar(20);not null;index" json:"role"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	// set when the account was created through the partner identity provider
	PartnerSubject string `gorm:"type:varchar(120);index" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
