// Package rules holds the consent / service-window policy and inbound intent
// interpretation. Everything here is pure: no I/O, no shared state.
package rules

import (
	"strings"
	"time"
)

// Decision reasons returned by EvaluateAutomation.
const (
	ReasonAutomationBlocked = "automation-blocked-missing-consent"
	ReasonTemplateAllowed   = "template-allowed"
	ReasonFreeformDisabled  = "freeform-feature-disabled"
	ReasonOutsideWindow     = "freeform-outside-24h-window"
	ReasonFreeformAllowed   = "freeform-allowed-within-window"
)

// Message types the policy distinguishes.
const (
	MessageTypeTemplate = "template"
	MessageTypeFreeform = "freeform"
)

// Inbound intents produced by InterpretInbound.
const (
	IntentConfirmPericia      = "confirm_pericia"
	IntentRequestReschedule   = "request_reschedule"
	IntentTriageInboxLinked   = "triage_inbox_linked"
	IntentTriageInboxUnlinked = "triage_inbox_unlinked"
)

// ServiceWindowHours is the provider policy: freeform replies are only allowed
// within this many hours of the contact's last inbound message.
const ServiceWindowHours = 24

type EvaluationInput struct {
	ConsentStatus     string
	IsAutomation      bool
	MessageType       string
	LastInboundAt     *time.Time
	FreeformEnabled   bool
	ConsentExceptions []string
	ContactID         string
	Now               time.Time
}

type Evaluation struct {
	Allowed            bool     `json:"allowed"`
	Reason             string   `json:"reason"`
	ServiceWindowOpen  bool     `json:"service_window_open"`
	ServiceWindowHours *float64 `json:"service_window_hours"`
}

// EvaluateAutomation decides whether an outbound message is permitted under
// consent and service-window policy. Window fields are populated regardless of
// the decision so callers can surface "expires in N hours" independently.
func EvaluateAutomation(in EvaluationInput) Evaluation {
	var hours *float64
	windowOpen := false

	if in.LastInboundAt != nil {
		h := in.Now.Sub(*in.LastInboundAt).Hours()
		if h < 0 {
			// lastInboundAt in the future must never yield a negative window
			h = 0
		}
		hours = &h
		windowOpen = h <= ServiceWindowHours
	}

	out := Evaluation{
		ServiceWindowOpen:  windowOpen,
		ServiceWindowHours: hours,
	}

	if in.IsAutomation && in.ConsentStatus != "granted" && !contains(in.ConsentExceptions, in.ContactID) {
		out.Reason = ReasonAutomationBlocked
		return out
	}

	if in.MessageType == MessageTypeTemplate {
		out.Allowed = true
		out.Reason = ReasonTemplateAllowed
		return out
	}
	if !in.FreeformEnabled {
		out.Reason = ReasonFreeformDisabled
		return out
	}
	if !windowOpen {
		out.Reason = ReasonOutsideWindow
		return out
	}
	out.Allowed = true
	out.Reason = ReasonFreeformAllowed
	return out
}

type Interpretation struct {
	Type           string `json:"type"`
	NormalizedBody string `json:"normalized_body"`
}

// InterpretInbound classifies a free-text reply into an intent. "1" confirms
// the appointment, "2" asks for a reschedule, anything else goes to triage.
func InterpretInbound(body string, hasLinkedInboxItem bool) Interpretation {
	normalized := strings.TrimSpace(body)

	switch normalized {
	case "1":
		return Interpretation{Type: IntentConfirmPericia, NormalizedBody: normalized}
	case "2":
		return Interpretation{Type: IntentRequestReschedule, NormalizedBody: normalized}
	}
	if hasLinkedInboxItem {
		return Interpretation{Type: IntentTriageInboxLinked, NormalizedBody: normalized}
	}
	return Interpretation{Type: IntentTriageInboxUnlinked, NormalizedBody: normalized}
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
