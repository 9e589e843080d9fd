package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message directions. A "status" row records a delivery-status callback and is
// also used to mutate the matching outbound row's status; everything else is
// append-only.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
	DirectionStatus   = "status"
)

// Normalized delivery statuses for outbound messages.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

// MessageLog is one outbound send, inbound receipt or delivery-status event
// (tenant schema).
type MessageLog struct {
	Id            string         `json:"id" gorm:"primaryKey"`
	AppointmentID *uint          `json:"appointment_id" gorm:"index"`
	Direction     string         `json:"direction" gorm:"size:16;not null;index"`
	Kind          string         `json:"kind" gorm:"size:32"`
	Phone         string         `json:"phone" gorm:"size:32;index"`
	Status        string         `json:"status" gorm:"size:16"`
	ProviderMsgID *string        `json:"provider_msg_id" gorm:"size:128;index"`
	Body          string         `json:"body" gorm:"type:text"`
	Raw           datatypes.JSON `json:"raw" gorm:"type:jsonb"`
	ErrorText     *string        `json:"error_text"`
	CreatedAt     time.Time      `json:"created_at" gorm:"index"`
}

func (m *MessageLog) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if m.Id == "" {
		m.Id = uuid.NewString()
	}
	return
}
