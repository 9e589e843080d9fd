// Package services implements the tenant messaging operations: outbound sends,
// webhook processing and the provider handshake.
package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"pericias-backend/models"
	"pericias-backend/rules"
	"pericias-backend/whatsapp"

	"github.com/gofiber/fiber/v2"
)

// TextSender is the outbound gateway port.
type TextSender interface {
	SendText(ctx context.Context, token, senderID, to, message string) (*whatsapp.SendResult, error)
}

// SettingsSource resolves tenant provider credentials (public schema).
type SettingsSource interface {
	ForTenant(ctx context.Context, tenantSchema string) (*models.WhatsAppSettings, error)
	BySenderID(ctx context.Context, senderID string) (*models.WhatsAppSettings, error)
	VerifyTokenMatches(ctx context.Context, token string) (bool, error)
}

// MessageSink writes/updates a tenant's message log.
type MessageSink interface {
	Create(ctx context.Context, msg *models.MessageLog) error
	UpdateOutboundStatus(ctx context.Context, providerMsgID, status string, errorText *string) (int64, error)
	HasInboundFrom(ctx context.Context, phone string) (bool, error)
}

// MessageSinkFactory yields a sink bound to the given tenant schema. The
// webhook path resolves the tenant at runtime, so the sink cannot be fixed at
// construction.
type MessageSinkFactory func(tenantSchema string) (MessageSink, error)

type MessageService struct {
	settings    SettingsSource
	sender      TextSender
	messagesFor MessageSinkFactory
	logger      *slog.Logger
}

func NewMessageService(settings SettingsSource, sender TextSender, messagesFor MessageSinkFactory, logger *slog.Logger) *MessageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageService{
		settings:    settings,
		sender:      sender,
		messagesFor: messagesFor,
		logger:      logger,
	}
}

// SendConfirmation is returned to the caller after a successful send.
type SendConfirmation struct {
	MessageID     string `json:"message_id"`
	ProviderMsgID string `json:"provider_msg_id"`
}

// SendTenantMessage resolves the tenant's credentials, sends the text through
// the gateway and logs the outbound message. Missing credentials are a
// precondition failure, never retried here.
func (s *MessageService) SendTenantMessage(ctx context.Context, tenantSchema, to, message string, appointmentID *uint) (*SendConfirmation, error) {
	settings, err := s.settings.ForTenant(ctx, tenantSchema)
	if err != nil {
		return nil, err
	}
	if settings == nil || !settings.Configured() {
		return nil, fiber.NewError(fiber.StatusPreconditionFailed, "whatsapp integration not configured for tenant")
	}

	result, err := s.sender.SendText(ctx, settings.AccessToken, settings.SenderID, to, message)
	if err != nil {
		return nil, err
	}

	sink, err := s.messagesFor(tenantSchema)
	if err != nil {
		return nil, err
	}

	log := &models.MessageLog{
		AppointmentID: appointmentID,
		Direction:     models.DirectionOutbound,
		Kind:          "text",
		Phone:         to,
		Status:        models.MessageStatusSent,
		Raw:           []byte(result.Raw),
	}
	if result.ProviderMsgID != "" {
		id := result.ProviderMsgID
		log.ProviderMsgID = &id
	}
	if err := sink.Create(ctx, log); err != nil {
		return nil, err
	}

	return &SendConfirmation{MessageID: log.Id, ProviderMsgID: result.ProviderMsgID}, nil
}

// WebhookResult is always 200-shaped; the provider must never see internal
// errors, or it retries in a storm.
type WebhookResult struct {
	OK      bool   `json:"ok"`
	Ignored bool   `json:"ignored,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ProcessWebhook handles one webhook POST: resolves the tenant by sender id,
// verifies the signature when a secret is configured, logs inbound messages
// with their interpreted intent and applies delivery-status updates.
func (s *MessageService) ProcessWebhook(ctx context.Context, rawBody []byte, signatureHeader string) (*WebhookResult, error) {
	events := whatsapp.ParseWebhook(rawBody)

	settings, err := s.settings.BySenderID(ctx, events.SenderID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		// Unknown senders must never error.
		return &WebhookResult{OK: true, Ignored: true, Reason: "tenant-not-found"}, nil
	}

	if settings.SigningSecret != "" {
		if !whatsapp.ValidateSignature(rawBody, signatureHeader, settings.SigningSecret) {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid webhook signature")
		}
	}

	sink, err := s.messagesFor(settings.TenantSchema)
	if err != nil {
		return nil, err
	}

	for _, msg := range events.Messages {
		hasLinked, err := sink.HasInboundFrom(ctx, msg.From)
		if err != nil {
			return nil, err
		}
		intent := rules.InterpretInbound(msg.Body, hasLinked)

		raw, _ := json.Marshal(msg)
		row := &models.MessageLog{
			Direction: models.DirectionInbound,
			Kind:      intent.Type,
			Phone:     msg.From,
			Status:    "received",
			Body:      intent.NormalizedBody,
			Raw:       raw,
		}
		if msg.ProviderMsgID != "" {
			id := msg.ProviderMsgID
			row.ProviderMsgID = &id
		}
		if err := sink.Create(ctx, row); err != nil {
			return nil, err
		}
	}

	for _, ev := range events.Statuses {
		raw, _ := json.Marshal(ev)
		id := ev.ProviderMsgID
		row := &models.MessageLog{
			Direction:     models.DirectionStatus,
			Kind:          "status",
			Status:        ev.Status,
			ProviderMsgID: &id,
			Raw:           raw,
		}
		if err := sink.Create(ctx, row); err != nil {
			return nil, err
		}

		var errText *string
		if ev.ErrorTitle != "" {
			t := ev.ErrorTitle
			errText = &t
		}
		if _, err := sink.UpdateOutboundStatus(ctx, ev.ProviderMsgID, ev.Status, errText); err != nil {
			return nil, err
		}
	}

	s.logger.Info("webhook processed",
		"tenant", settings.TenantSchema,
		"messages", len(events.Messages),
		"statuses", len(events.Statuses))
	return &WebhookResult{OK: true}, nil
}

// VerifyChallenge performs the provider's webhook handshake. The challenge is
// echoed only for mode=subscribe with a recognized active verify token.
func (s *MessageService) VerifyChallenge(ctx context.Context, mode, token, challenge string) (string, error) {
	if mode != "subscribe" || token == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid webhook verification request")
	}
	ok, err := s.settings.VerifyTokenMatches(ctx, token)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fiber.NewError(fiber.StatusForbidden, "verify token not recognized")
	}
	return challenge, nil
}
