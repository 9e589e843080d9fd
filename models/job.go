package models

import (
	"time"

	"gorm.io/datatypes"
)

// Job statuses. QUEUED/RETRYING/PROCESSING are "open"; the rest are terminal.
// The dispatch worker owns the PROCESSING/RETRYING/SENT/FAILED transitions;
// this service only creates, re-arms and cancels jobs.
const (
	JobStatusQueued     = "QUEUED"
	JobStatusProcessing = "PROCESSING"
	JobStatusRetrying   = "RETRYING"
	JobStatusSent       = "SENT"
	JobStatusFailed     = "FAILED"
	JobStatusCanceled   = "CANCELED"
)

// The four reminder/follow-up kinds attached to an appointment.
const (
	JobTypeReminder48h = "reminder_48h"
	JobTypeReminder24h = "reminder_24h"
	JobTypeReminder2h  = "reminder_2h"
	JobTypeFollowUp    = "followup_post"
)

// MessageJob is one scheduled send tied to one appointment (tenant schema).
// The idempotency key is deterministic over (tenant, appointment, type,
// scheduled minute), so re-scheduling updates rows instead of duplicating them.
type MessageJob struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	TenantSchema   string         `json:"-" gorm:"size:64;not null;index"`
	AppointmentID  uint           `json:"appointment_id" gorm:"not null;index"`
	JobType        string         `json:"job_type" gorm:"size:32;not null"`
	ScheduledFor   time.Time      `json:"scheduled_for" gorm:"not null;index"`
	Phone          string         `json:"phone" gorm:"size:32"`
	IdempotencyKey string         `json:"idempotency_key" gorm:"size:255;not null;uniqueIndex"`
	Status         string         `json:"status" gorm:"size:16;not null;default:'QUEUED';index"`
	Attempts       int            `json:"attempts"`
	LastError      datatypes.JSON `json:"last_error" gorm:"type:jsonb"`
	Payload        datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	SentAt         *time.Time     `json:"sent_at"`
	CanceledAt     *time.Time     `json:"canceled_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// JobError is the structured last_error payload stored on a job.
type JobError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// JobPayload is the opaque payload handed to the dispatch worker.
type JobPayload struct {
	Template string `json:"template"`
	Channel  string `json:"channel"`
}
