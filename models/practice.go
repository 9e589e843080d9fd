package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Practice is the expert-examination office owning one tenant schema.
type Practice struct {
	Id           string `json:"id" gorm:"primaryKey"`
	PracticeName string `json:"practice_name" gorm:"not null;unique"`
	Address      string `json:"address"`
	City         string `json:"city"`
	Country      string `json:"country"`
	Zip          string `json:"zip"`
	UserId       string `json:"-"`
	User         User   `json:"user" gorm:"foreignKey:UserId;references:Id"`
	SchemaName   string `json:"-"`
}

func (practice *Practice) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	practice.Id = uuid.NewString()
	return
}
