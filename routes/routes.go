package routes

import (
	"github.com/gofiber/fiber/v2"

	"pericias-backend/controllers"
	"pericias-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// WhatsApp webhook: the only unauthenticated boundary
	api.Get("/webhook/whatsapp", controllers.VerifyWhatsAppWebhook)
	api.Post("/webhook/whatsapp", controllers.ReceiveWhatsAppWebhook)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency())

	// Then per-request tenant transaction (pins search_path and commits/rolls back)
	protected.Use(middlewares.TenantTx())

	// Contacts (consent)
	protected.Post("/contact", controllers.CreateContact)
	protected.Get("/contacts", controllers.GetContacts)
	protected.Put("/contact/:id", controllers.UpdateContact)

	// WhatsApp integration settings
	protected.Get("/settings/whatsapp", controllers.GetWhatsAppSettings)
	protected.Put("/settings/whatsapp", controllers.UpsertWhatsAppSettings)

	// Messaging
	protected.Post("/messages", controllers.SendMessage)
	protected.Get("/messages", controllers.ListMessages)
	protected.Get("/messages/policy", controllers.EvaluatePolicy)
	protected.Get("/jobs", controllers.ListJobs)

	// Reminder scheduling (called by appointment CRUD on create/reschedule/disable)
	protected.Put("/appointments/:id/reminders", controllers.SyncAppointmentReminders)
}
