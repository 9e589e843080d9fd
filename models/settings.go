package models

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WhatsAppSettings stores tenant-specific WhatsApp Cloud API credentials.
// Lives in the public schema so an inbound webhook can resolve the owning
// tenant by sender id across all tenants.
type WhatsAppSettings struct {
	Id                string         `json:"id" gorm:"primaryKey"`
	TenantSchema      string         `json:"-" gorm:"size:64;not null;uniqueIndex"`
	AccessToken       string         `json:"-" gorm:"type:text"`
	SenderID          string         `json:"sender_id" gorm:"size:64;uniqueIndex"`
	VerifyToken       string         `json:"-" gorm:"size:128"`
	SigningSecret     string         `json:"-" gorm:"size:128"`
	Active            bool           `json:"active" gorm:"default:true;index"`
	FreeformEnabled   bool           `json:"freeform_enabled" gorm:"default:true"`
	ConsentExceptions datatypes.JSON `json:"consent_exceptions" gorm:"type:jsonb"`
}

func (s *WhatsAppSettings) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if s.Id == "" {
		s.Id = uuid.NewString()
	}
	return
}

// Configured reports whether the record carries enough to send outbound
// messages.
func (s *WhatsAppSettings) Configured() bool {
	return strings.TrimSpace(s.AccessToken) != "" && strings.TrimSpace(s.SenderID) != ""
}
