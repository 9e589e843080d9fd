package whatsapp

import (
	"encoding/json"
	"strings"
)

// Webhook payloads arrive arbitrarily shaped; parsing maps them into small
// typed events at the boundary and drops anything that doesn't fit. No field
// access past this point touches the raw provider JSON.

type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []rawMessage `json:"messages"`
				Statuses []rawStatus  `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type rawMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Button *struct {
		Text string `json:"text"`
	} `json:"button"`
	Interactive *struct {
		ButtonReply *struct {
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

type rawStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Errors []struct {
		Title string `json:"title"`
	} `json:"errors"`
}

// InboundMessage is one validated inbound message event.
type InboundMessage struct {
	ProviderMsgID string
	From          string
	Type          string
	Body          string
}

// StatusEvent is one validated delivery-status event for a prior outbound
// message.
type StatusEvent struct {
	ProviderMsgID string
	Status        string
	ErrorTitle    string
}

// WebhookEvents is the typed result of parsing one webhook POST body.
type WebhookEvents struct {
	SenderID string
	Messages []InboundMessage
	Statuses []StatusEvent
}

// ParseWebhook extracts the sender id and all message/status events from a raw
// webhook body. Malformed or partially-shaped payloads never fail; absent
// arrays are treated as empty and unparsable JSON yields an empty result.
func ParseWebhook(rawBody []byte) WebhookEvents {
	var payload webhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return WebhookEvents{}
	}

	var out WebhookEvents
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			v := change.Value
			if out.SenderID == "" {
				out.SenderID = v.Metadata.PhoneNumberID
			}
			for _, m := range v.Messages {
				out.Messages = append(out.Messages, InboundMessage{
					ProviderMsgID: m.ID,
					From:          m.From,
					Type:          m.Type,
					Body:          extractBody(m),
				})
			}
			for _, s := range v.Statuses {
				ev := StatusEvent{
					ProviderMsgID: s.ID,
					Status:        MapStatus(s.Status),
				}
				if len(s.Errors) > 0 {
					ev.ErrorTitle = s.Errors[0].Title
				}
				out.Statuses = append(out.Statuses, ev)
			}
		}
	}
	return out
}

// extractBody makes a best-effort extraction of the human-readable body from
// the possible message shapes: text body, button text or interactive reply.
func extractBody(m rawMessage) string {
	if m.Text != nil && m.Text.Body != "" {
		return m.Text.Body
	}
	if m.Button != nil && m.Button.Text != "" {
		return m.Button.Text
	}
	if m.Interactive != nil {
		if m.Interactive.ButtonReply != nil && m.Interactive.ButtonReply.Title != "" {
			return m.Interactive.ButtonReply.Title
		}
		if m.Interactive.ListReply != nil && m.Interactive.ListReply.Title != "" {
			return m.Interactive.ListReply.Title
		}
	}
	return ""
}

// MapStatus normalizes the provider's raw status string. Unrecognized values
// fall back to "sent".
func MapStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sent":
		return "sent"
	case "delivered":
		return "delivered"
	case "read":
		return "read"
	case "failed":
		return "failed"
	default:
		return "sent"
	}
}
