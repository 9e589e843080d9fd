package models

// Consent states for automation-triggered messaging.
const (
	ConsentGranted = "granted"
	ConsentDenied  = "denied"
	ConsentPending = "pending"
)

// Contact is the examinee the practice messages about an appointment
// (tenant schema). Consent gates automation-triggered sends.
type Contact struct {
	Id            uint   `json:"id" gorm:"primaryKey"`
	FirstName     string `json:"first_name" gorm:"not null"`
	LastName      string `json:"last_name" gorm:"not null"`
	Phone         string `json:"phone" gorm:"size:32;not null;uniqueIndex"`
	ConsentStatus string `json:"consent_status" gorm:"size:16;not null;default:'pending'"`
	Active        bool   `json:"-" gorm:"default:true"`
}
