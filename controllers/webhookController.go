package controllers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// VerifyWhatsAppWebhook answers the provider's GET handshake: echo the
// challenge for a recognized verify token, else 400/403.
func VerifyWhatsAppWebhook(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	answer, err := messageService.VerifyChallenge(c.Context(), mode, token, challenge)
	if err != nil {
		return err
	}
	return c.SendString(answer)
}

// ReceiveWhatsAppWebhook is the only unauthenticated POST boundary. It hands
// the raw body and signature header to the service. Apart from a signature
// mismatch, the provider always gets 200 so it never enters a retry storm.
func ReceiveWhatsAppWebhook(c *fiber.Ctx) error {
	raw := make([]byte, len(c.Body()))
	copy(raw, c.Body())
	signature := c.Get("X-Hub-Signature-256")

	result, err := messageService.ProcessWebhook(c.Context(), raw, signature)
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok && fe.Code == fiber.StatusUnauthorized {
			return err
		}
		slog.Error("webhook processing failed", "error", err)
		return c.JSON(fiber.Map{"ok": true})
	}
	return c.JSON(result)
}
