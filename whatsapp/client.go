// Package whatsapp talks to the WhatsApp Cloud API: outbound text sends,
// webhook signature validation and boundary parsing of webhook payloads.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const DefaultBaseURL = "https://graph.facebook.com/v19.0"

// DefaultTimeout bounds the outbound round trip; the in-flight request is
// canceled when it elapses.
const DefaultTimeout = 10 * time.Second

// Error kinds callers branch on (e.g. differentiated retry policy).
const (
	KindTimeout    = "gateway_timeout"
	KindBadGateway = "bad_gateway"
	KindProvider   = "provider_error"
)

// APIError is the normalized send failure. Timeouts are distinguishable from
// provider rejections and transport failures via Kind.
type APIError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
	Type    string `json:"type,omitempty"`
	Details string `json:"details,omitempty"`
	Tag     string `json:"tag,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp: %s: %s", e.Kind, e.Message)
}

// IsTimeout reports whether err is a gateway timeout (safe to retry).
func IsTimeout(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Kind == KindTimeout
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger.With("provider", "whatsapp"),
	}
}

type sendTextRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

type sendTextResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type providerErrorResponse struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		ErrorData struct {
			Details string `json:"details"`
		} `json:"error_data"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// SendResult captures the provider-assigned message id plus the raw response
// body for the message log.
type SendResult struct {
	ProviderMsgID string
	Raw           json.RawMessage
}

// SendText posts a one-way text message to `to` through the given sender id.
func (c *Client) SendText(ctx context.Context, token, senderID, to, message string) (*SendResult, error) {
	reqBody, err := json.Marshal(sendTextRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: message},
	})
	if err != nil {
		return nil, &APIError{Kind: KindBadGateway, Message: "failed to marshal request: " + err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, senderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, &APIError{Kind: KindBadGateway, Message: "failed to build request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			c.logger.Warn("send timed out", "to", to, "timeout", c.timeout.String())
			return nil, &APIError{Kind: KindTimeout, Message: "provider did not answer within " + c.timeout.String()}
		}
		return nil, &APIError{Kind: KindBadGateway, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.normalizeError(resp.StatusCode, body)
	}

	var sr sendTextResponse
	providerMsgID := ""
	if err := json.Unmarshal(body, &sr); err == nil && len(sr.Messages) > 0 {
		providerMsgID = sr.Messages[0].ID
	}

	c.logger.Info("message sent", "to", to, "provider_msg_id", providerMsgID)
	return &SendResult{ProviderMsgID: providerMsgID, Raw: json.RawMessage(body)}, nil
}

// normalizeError turns a non-2xx provider response into an APIError, keeping
// the provider's code/type/details when the body parses, else a generic bad
// gateway.
func (c *Client) normalizeError(status int, body []byte) *APIError {
	var pe providerErrorResponse
	if err := json.Unmarshal(body, &pe); err == nil && pe.Error.Message != "" {
		c.logger.Warn("provider rejected send", "status", status, "code", pe.Error.Code, "type", pe.Error.Type)
		return &APIError{
			Kind:    KindProvider,
			Message: pe.Error.Message,
			Code:    pe.Error.Code,
			Type:    pe.Error.Type,
			Details: pe.Error.ErrorData.Details,
			Tag:     pe.Error.FBTraceID,
		}
	}
	c.logger.Warn("provider returned unparsable error body", "status", status)
	return &APIError{Kind: KindBadGateway, Message: fmt.Sprintf("unexpected status code: %d", status)}
}
