package controllers

import (
	"log/slog"
	"time"

	"pericias-backend/database"
	"pericias-backend/middlewares"
	"pericias-backend/repo"
	"pericias-backend/scheduler"
	"pericias-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type syncRemindersDTO struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
	Phone       string     `json:"phone" validate:"omitempty,min=8,max=32"`
	Enabled     bool       `json:"enabled"`
}

// SyncAppointmentReminders is called by the appointment CRUD whenever an
// appointment is created, rescheduled or has its messaging disabled. It
// cancels every open job for the appointment and recreates the reminder and
// follow-up jobs from the new time.
func SyncAppointmentReminders(c *fiber.Ctx) error {
	appointmentID, err := c.ParamsInt("id")
	if err != nil || appointmentID <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid appointment id")
	}

	var dto syncRemindersDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	dto.Phone = utils.NormalizePhone(dto.Phone)

	schema := c.Locals("schema").(string)
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return err
	}

	sched := scheduler.New(repo.NewJobStore(tenantDB), appClock, slog.Default())
	created, err := sched.SyncAppointmentJobs(c.Context(), schema, uint(appointmentID), dto.ScheduledAt, dto.Phone, dto.Enabled)
	if err != nil {
		return err
	}

	jobs, err := repo.NewJobStore(tenantDB).ListByAppointment(c.Context(), schema, uint(appointmentID))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"created": created,
		"jobs":    jobs,
	})
}
