// Package scheduler derives reminder/follow-up send jobs from an appointment's
// scheduled time and cancels stale jobs on reschedule or disable.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"pericias-backend/models"
	"pericias-backend/utils"
)

// Minute offsets relative to the appointment time, one per job type.
var jobOffsets = map[string]int{
	models.JobTypeReminder48h: -2880,
	models.JobTypeReminder24h: -1440,
	models.JobTypeReminder2h:  -120,
	models.JobTypeFollowUp:    120,
}

// Cancellation reason stamped on jobs invalidated by a reschedule/disable.
const CancelCodeReschedule = "CANCELED_BY_RESCHEDULE"

const channelWhatsApp = "whatsapp"

// JobStore is the persistence port. Upsert must be an atomic insert-or-update
// keyed by the idempotency key; that uniqueness constraint is the correctness
// backstop against concurrent reschedules.
type JobStore interface {
	CancelOpen(ctx context.Context, tenantSchema string, appointmentID uint, jobErr models.JobError, canceledAt time.Time) (int64, error)
	Upsert(ctx context.Context, job *models.MessageJob) error
}

type Scheduler struct {
	jobs   JobStore
	clock  utils.Clock
	logger *slog.Logger
}

func New(jobs JobStore, clock utils.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = utils.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{jobs: jobs, clock: clock, logger: logger}
}

// SyncAppointmentJobs cancels every open job for the appointment and, when
// scheduling is enabled and a time is known, (re)creates the reminder and
// follow-up jobs. Reminders already in the past are skipped; the post-event
// follow-up is always kept. Returns the number of jobs written.
func (s *Scheduler) SyncAppointmentJobs(ctx context.Context, tenantSchema string, appointmentID uint, scheduledAt *time.Time, phone string, shouldSchedule bool) (int, error) {
	now := s.clock.Now()

	if _, err := s.CancelOpenJobs(ctx, tenantSchema, appointmentID, "rescheduled_or_disabled"); err != nil {
		return 0, err
	}

	if !shouldSchedule || scheduledAt == nil {
		return 0, nil
	}

	written := 0
	for _, jobType := range []string{models.JobTypeReminder48h, models.JobTypeReminder24h, models.JobTypeReminder2h, models.JobTypeFollowUp} {
		target := scheduledAt.Add(time.Duration(jobOffsets[jobType]) * time.Minute)

		// A reminder cannot fire in the past; the follow-up is kept regardless.
		if jobType != models.JobTypeFollowUp && !target.After(now) {
			continue
		}

		payload, _ := json.Marshal(models.JobPayload{
			Template: ResolveTemplateKey(jobType),
			Channel:  channelWhatsApp,
		})

		job := &models.MessageJob{
			TenantSchema:   tenantSchema,
			AppointmentID:  appointmentID,
			JobType:        jobType,
			ScheduledFor:   target,
			Phone:          phone,
			IdempotencyKey: BuildIdempotencyKey(tenantSchema, appointmentID, jobType, target),
			Status:         models.JobStatusQueued,
			Payload:        payload,
		}
		if err := s.jobs.Upsert(ctx, job); err != nil {
			return written, err
		}
		written++
	}

	s.logger.Info("appointment jobs synced",
		"tenant", tenantSchema, "appointment_id", appointmentID, "written", written)
	return written, nil
}

// CancelOpenJobs bulk-transitions every QUEUED/RETRYING/PROCESSING job for the
// appointment to CANCELED. Terminal jobs are untouched.
func (s *Scheduler) CancelOpenJobs(ctx context.Context, tenantSchema string, appointmentID uint, reason string) (int64, error) {
	now := s.clock.Now()
	jobErr := models.JobError{
		Code:    CancelCodeReschedule,
		Message: reason,
		At:      now,
	}
	canceled, err := s.jobs.CancelOpen(ctx, tenantSchema, appointmentID, jobErr, now)
	if err != nil {
		return 0, err
	}
	if canceled > 0 {
		s.logger.Info("open jobs canceled",
			"tenant", tenantSchema, "appointment_id", appointmentID, "count", canceled)
	}
	return canceled, nil
}

// BuildIdempotencyKey derives the deterministic per-tenant key; re-deriving
// for the same appointment and target minute always yields the same row.
func BuildIdempotencyKey(tenantSchema string, appointmentID uint, jobType string, scheduledFor time.Time) string {
	return fmt.Sprintf("%s:%d:%s:%s", tenantSchema, appointmentID, jobType, scheduledFor.UTC().Format(time.RFC3339))
}

// ResolveTemplateKey maps a job type to its message template identifier.
func ResolveTemplateKey(jobType string) string {
	switch jobType {
	case models.JobTypeReminder48h:
		return "reminder_48h"
	case models.JobTypeReminder24h:
		return "reminder_24h"
	case models.JobTypeReminder2h:
		return "reminder_2h"
	case models.JobTypeFollowUp:
		return "post"
	default:
		return jobType
	}
}
