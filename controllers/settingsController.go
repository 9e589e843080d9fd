package controllers

import (
	"encoding/json"

	"pericias-backend/database"
	"pericias-backend/middlewares"
	"pericias-backend/models"
	"pericias-backend/repo"
	"pericias-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type whatsappSettingsDTO struct {
	AccessToken       string   `json:"access_token" validate:"omitempty,min=10"`
	SenderID          string   `json:"sender_id" validate:"omitempty,numeric"`
	VerifyToken       string   `json:"verify_token" validate:"omitempty,min=8"`
	SigningSecret     string   `json:"signing_secret"`
	Active            bool     `json:"active"`
	FreeformEnabled   bool     `json:"freeform_enabled"`
	ConsentExceptions []string `json:"consent_exceptions" validate:"omitempty,dive,numeric"`
}

// UpsertWhatsAppSettings writes the tenant's provider integration record
// (public schema, one per tenant).
func UpsertWhatsAppSettings(c *fiber.Ctx) error {
	var dto whatsappSettingsDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	schema := c.Locals("schema").(string)

	exceptions, err := json.Marshal(dto.ConsentExceptions)
	if err != nil {
		return err
	}

	settings := &models.WhatsAppSettings{
		TenantSchema:      schema,
		AccessToken:       dto.AccessToken,
		SenderID:          dto.SenderID,
		VerifyToken:       dto.VerifyToken,
		SigningSecret:     dto.SigningSecret,
		Active:            dto.Active,
		FreeformEnabled:   dto.FreeformEnabled,
		ConsentExceptions: exceptions,
	}
	if err := repo.NewSettingsStore(database.DB).Upsert(c.Context(), settings); err != nil {
		return err
	}
	return c.JSON(settings)
}

// GetWhatsAppSettings returns the tenant's integration record with secrets
// masked by the model's json tags.
func GetWhatsAppSettings(c *fiber.Ctx) error {
	schema := c.Locals("schema").(string)

	settings, err := repo.NewSettingsStore(database.DB).ByTenant(c.Context(), schema)
	if err != nil {
		return err
	}
	if settings == nil {
		return fiber.NewError(fiber.StatusNotFound, "whatsapp settings not configured")
	}
	return c.JSON(settings)
}
