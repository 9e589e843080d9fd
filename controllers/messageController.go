package controllers

import (
	"strconv"

	"pericias-backend/database"
	"pericias-backend/middlewares"
	"pericias-backend/models"
	"pericias-backend/repo"
	"pericias-backend/rules"
	"pericias-backend/services"
	"pericias-backend/utils"

	"github.com/gofiber/fiber/v2"
)

// Wired once at startup from main.go.
var (
	messageService *services.MessageService
	appClock       utils.Clock = utils.NewRealClock()
)

func Setup(svc *services.MessageService, clock utils.Clock) {
	messageService = svc
	if clock != nil {
		appClock = clock
	}
}

type sendMessageDTO struct {
	To            string `json:"to" validate:"required,min=8,max=32"`
	Message       string `json:"message" validate:"required,max=4096"`
	MessageType   string `json:"message_type" validate:"omitempty,oneof=template freeform"`
	Automation    bool   `json:"automation"`
	AppointmentID *uint  `json:"appointment_id"`
}

// SendMessage sends one outbound WhatsApp text for the tenant. Automation and
// freeform sends are checked against the consent/service-window policy first.
func SendMessage(c *fiber.Ctx) error {
	var dto sendMessageDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)
	dto.To = utils.NormalizePhone(dto.To)

	schema := c.Locals("schema").(string)

	messageType := dto.MessageType
	if messageType == "" {
		messageType = rules.MessageTypeFreeform
	}

	eval, err := evaluateForPhone(c, schema, dto.To, messageType, dto.Automation)
	if err != nil {
		return err
	}
	if !eval.Allowed {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message":    "message not permitted",
			"evaluation": eval,
		})
	}

	confirmation, err := messageService.SendTenantMessage(c.Context(), schema, dto.To, dto.Message, dto.AppointmentID)
	if err != nil {
		return err
	}
	return c.JSON(confirmation)
}

// EvaluatePolicy exposes the automation/service-window decision for the UI
// ("expires in N hours") without sending anything.
func EvaluatePolicy(c *fiber.Ctx) error {
	phone := utils.NormalizePhone(c.Query("phone"))
	if phone == "" {
		return fiber.NewError(fiber.StatusBadRequest, "phone query parameter is required")
	}
	messageType := c.Query("type", rules.MessageTypeFreeform)
	automation := c.QueryBool("automation", false)

	schema := c.Locals("schema").(string)
	eval, err := evaluateForPhone(c, schema, phone, messageType, automation)
	if err != nil {
		return err
	}
	return c.JSON(eval)
}

// evaluateForPhone assembles the policy inputs (contact consent, tenant
// settings, last inbound timestamp) and runs the pure rules engine.
func evaluateForPhone(c *fiber.Ctx, schema, phone, messageType string, isAutomation bool) (rules.Evaluation, error) {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return rules.Evaluation{}, err
	}

	settings, err := repo.NewSettingsStore(database.DB).ForTenant(c.Context(), schema)
	if err != nil {
		return rules.Evaluation{}, err
	}
	freeformEnabled := false
	var exceptions []string
	if settings != nil {
		freeformEnabled = settings.FreeformEnabled
		exceptions = utils.StringsFromJSON(settings.ConsentExceptions)
	}

	consent := models.ConsentPending
	contactID := ""
	var contact models.Contact
	if err := tenantDB.Where("phone = ?", phone).First(&contact).Error; err == nil {
		consent = contact.ConsentStatus
		contactID = strconv.FormatUint(uint64(contact.Id), 10)
	}

	lastInboundAt, err := repo.NewMessageStore(tenantDB).LastInboundAt(c.Context(), phone)
	if err != nil {
		return rules.Evaluation{}, err
	}

	return rules.EvaluateAutomation(rules.EvaluationInput{
		ConsentStatus:     consent,
		IsAutomation:      isAutomation,
		MessageType:       messageType,
		LastInboundAt:     lastInboundAt,
		FreeformEnabled:   freeformEnabled,
		ConsentExceptions: exceptions,
		ContactID:         contactID,
		Now:               appClock.Now(),
	}), nil
}

// ListMessages returns the tenant's message log (newest first).
func ListMessages(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return err
	}
	limit := utils.ParseIntDefault(c.Query("limit"), 100)

	msgs, err := repo.NewMessageStore(tenantDB).List(c.Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(msgs)
}

// ListJobs returns the tenant's scheduled send jobs.
func ListJobs(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return err
	}
	schema := c.Locals("schema").(string)
	limit := utils.ParseIntDefault(c.Query("limit"), 100)

	jobs, err := repo.NewJobStore(tenantDB).List(c.Context(), schema, limit)
	if err != nil {
		return err
	}
	return c.JSON(jobs)
}
