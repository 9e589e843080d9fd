// Package repo provides the GORM-backed stores. Stores operating on tenant
// tables expect a *gorm.DB already pinned to the tenant schema (per-request TX
// or database.GetTenantDB).
package repo

import (
	"context"
	"encoding/json"
	"time"

	"pericias-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var openJobStatuses = []string{models.JobStatusQueued, models.JobStatusRetrying, models.JobStatusProcessing}

type JobStore struct {
	db *gorm.DB
}

func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

// Upsert inserts the job or, when its idempotency key already exists, re-arms
// the existing row: back to QUEUED with fresh schedule/phone/payload and
// cleared attempts, error and terminal timestamps.
func (s *JobStore) Upsert(ctx context.Context, job *models.MessageJob) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "idempotency_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":        models.JobStatusQueued,
			"scheduled_for": job.ScheduledFor,
			"phone":         job.Phone,
			"payload":       job.Payload,
			"attempts":      0,
			"last_error":    nil,
			"sent_at":       nil,
			"canceled_at":   nil,
			"updated_at":    time.Now(),
		}),
	}).Create(job).Error
}

// CancelOpen transitions every open job for the appointment to CANCELED,
// stamping the cancellation timestamp and structured error. Returns the number
// of rows touched.
func (s *JobStore) CancelOpen(ctx context.Context, tenantSchema string, appointmentID uint, jobErr models.JobError, canceledAt time.Time) (int64, error) {
	errJSON, err := json.Marshal(jobErr)
	if err != nil {
		return 0, err
	}

	res := s.db.WithContext(ctx).Model(&models.MessageJob{}).
		Where("tenant_schema = ? AND appointment_id = ? AND status IN ?", tenantSchema, appointmentID, openJobStatuses).
		Updates(map[string]any{
			"status":      models.JobStatusCanceled,
			"canceled_at": canceledAt,
			"last_error":  errJSON,
		})
	return res.RowsAffected, res.Error
}

// ListByAppointment returns the appointment's jobs, newest schedule first.
func (s *JobStore) ListByAppointment(ctx context.Context, tenantSchema string, appointmentID uint) ([]models.MessageJob, error) {
	var jobs []models.MessageJob
	err := s.db.WithContext(ctx).
		Where("tenant_schema = ? AND appointment_id = ?", tenantSchema, appointmentID).
		Order("scheduled_for DESC").
		Find(&jobs).Error
	return jobs, err
}

// List returns the tenant's jobs, newest schedule first.
func (s *JobStore) List(ctx context.Context, tenantSchema string, limit int) ([]models.MessageJob, error) {
	var jobs []models.MessageJob
	err := s.db.WithContext(ctx).
		Where("tenant_schema = ?", tenantSchema).
		Order("scheduled_for DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
