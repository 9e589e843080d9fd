package repo

import (
	"context"
	"errors"

	"pericias-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsStore reads/writes the public-schema WhatsApp settings records.
type SettingsStore struct {
	db *gorm.DB
}

func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// ForTenant returns the tenant's active settings, or nil when none exist.
func (s *SettingsStore) ForTenant(ctx context.Context, tenantSchema string) (*models.WhatsAppSettings, error) {
	var settings models.WhatsAppSettings
	err := s.db.WithContext(ctx).
		Where("tenant_schema = ? AND active = ?", tenantSchema, true).
		First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// ByTenant returns the tenant's settings record regardless of active state,
// or nil when none exists. The display/edit path uses this; ForTenant stays
// the send-path resolver so a deactivated integration can still be viewed and
// re-enabled.
func (s *SettingsStore) ByTenant(ctx context.Context, tenantSchema string) (*models.WhatsAppSettings, error) {
	var settings models.WhatsAppSettings
	err := s.db.WithContext(ctx).
		Where("tenant_schema = ?", tenantSchema).
		First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// BySenderID resolves the owning tenant for an inbound webhook, or nil when
// the sender id matches no active integration.
func (s *SettingsStore) BySenderID(ctx context.Context, senderID string) (*models.WhatsAppSettings, error) {
	if senderID == "" {
		return nil, nil
	}
	var settings models.WhatsAppSettings
	err := s.db.WithContext(ctx).
		Where("sender_id = ? AND active = ?", senderID, true).
		First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// VerifyTokenMatches reports whether any active integration is configured with
// the given webhook verify token.
func (s *SettingsStore) VerifyTokenMatches(ctx context.Context, token string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.WhatsAppSettings{}).
		Where("verify_token = ? AND active = ?", token, true).
		Count(&count).Error
	return count > 0, err
}

// Upsert writes the tenant's settings record (one per tenant).
func (s *SettingsStore) Upsert(ctx context.Context, settings *models.WhatsAppSettings) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_schema"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "sender_id", "verify_token", "signing_secret",
			"active", "freeform_enabled", "consent_exceptions",
		}),
	}).Create(settings).Error
}
