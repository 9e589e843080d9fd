package repo

import (
	"context"
	"errors"
	"time"

	"pericias-backend/models"

	"gorm.io/gorm"
)

type MessageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Create(ctx context.Context, msg *models.MessageLog) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

// UpdateOutboundStatus sets the mapped status (and optional error text) on the
// outbound row sharing the provider message id. Concurrent status callbacks for
// the same id race last-write-wins, which is acceptable here.
func (s *MessageStore) UpdateOutboundStatus(ctx context.Context, providerMsgID, status string, errorText *string) (int64, error) {
	updates := map[string]any{"status": status}
	if errorText != nil {
		updates["error_text"] = *errorText
	}
	res := s.db.WithContext(ctx).Model(&models.MessageLog{}).
		Where("provider_msg_id = ? AND direction = ?", providerMsgID, models.DirectionOutbound).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// LastInboundAt returns when the contact last messaged us, or nil if never.
func (s *MessageStore) LastInboundAt(ctx context.Context, phone string) (*time.Time, error) {
	var msg models.MessageLog
	err := s.db.WithContext(ctx).
		Where("phone = ? AND direction = ?", phone, models.DirectionInbound).
		Order("created_at DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg.CreatedAt, nil
}

// HasInboundFrom reports whether any prior inbound message exists for the
// phone (used to pick the linked vs unlinked triage intent).
func (s *MessageStore) HasInboundFrom(ctx context.Context, phone string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.MessageLog{}).
		Where("phone = ? AND direction = ?", phone, models.DirectionInbound).
		Count(&count).Error
	return count > 0, err
}

// List returns the tenant's message log, newest first.
func (s *MessageStore) List(ctx context.Context, limit int) ([]models.MessageLog, error) {
	var msgs []models.MessageLog
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// TenantMessageStore binds message-log access to a tenant schema for callers
// outside the per-request TX (the webhook path resolves its tenant at
// runtime). Each operation runs in its own short transaction with SET LOCAL
// search_path, so the pin cannot land on one pooled connection while the
// statement runs on another, and nothing leaks back into the pool.
type TenantMessageStore struct {
	db     *gorm.DB
	schema string
}

func NewTenantMessageStore(db *gorm.DB, schema string) *TenantMessageStore {
	return &TenantMessageStore{db: db, schema: schema}
}

func (s *TenantMessageStore) withSchema(ctx context.Context, fn func(store *MessageStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`SET LOCAL search_path = "` + s.schema + `", public`).Error; err != nil {
			return err
		}
		return fn(NewMessageStore(tx))
	})
}

func (s *TenantMessageStore) Create(ctx context.Context, msg *models.MessageLog) error {
	return s.withSchema(ctx, func(store *MessageStore) error {
		return store.Create(ctx, msg)
	})
}

func (s *TenantMessageStore) UpdateOutboundStatus(ctx context.Context, providerMsgID, status string, errorText *string) (int64, error) {
	var affected int64
	err := s.withSchema(ctx, func(store *MessageStore) error {
		var e error
		affected, e = store.UpdateOutboundStatus(ctx, providerMsgID, status, errorText)
		return e
	})
	return affected, err
}

func (s *TenantMessageStore) HasInboundFrom(ctx context.Context, phone string) (bool, error) {
	var has bool
	err := s.withSchema(ctx, func(store *MessageStore) error {
		var e error
		has, e = store.HasInboundFrom(ctx, phone)
		return e
	})
	return has, err
}
