package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"pericias-backend/models"
	"pericias-backend/rules"
	"pericias-backend/whatsapp"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes

type fakeSettings struct {
	byTenant map[string]*models.WhatsAppSettings
	bySender map[string]*models.WhatsAppSettings
	tokens   map[string]bool
}

func (f *fakeSettings) ForTenant(_ context.Context, tenantSchema string) (*models.WhatsAppSettings, error) {
	return f.byTenant[tenantSchema], nil
}

func (f *fakeSettings) BySenderID(_ context.Context, senderID string) (*models.WhatsAppSettings, error) {
	return f.bySender[senderID], nil
}

func (f *fakeSettings) VerifyTokenMatches(_ context.Context, token string) (bool, error) {
	return f.tokens[token], nil
}

type sentCall struct {
	Token    string
	SenderID string
	To       string
	Message  string
}

type fakeSender struct {
	calls  []sentCall
	result *whatsapp.SendResult
	err    error
}

func (f *fakeSender) SendText(_ context.Context, token, senderID, to, message string) (*whatsapp.SendResult, error) {
	f.calls = append(f.calls, sentCall{token, senderID, to, message})
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type statusUpdate struct {
	ProviderMsgID string
	Status        string
	ErrorText     *string
}

type fakeSink struct {
	created     []*models.MessageLog
	updates     []statusUpdate
	inboundFrom map[string]bool
}

func (f *fakeSink) Create(_ context.Context, msg *models.MessageLog) error {
	f.created = append(f.created, msg)
	return nil
}

func (f *fakeSink) UpdateOutboundStatus(_ context.Context, providerMsgID, status string, errorText *string) (int64, error) {
	f.updates = append(f.updates, statusUpdate{providerMsgID, status, errorText})
	return 1, nil
}

func (f *fakeSink) HasInboundFrom(_ context.Context, phone string) (bool, error) {
	return f.inboundFrom[phone], nil
}

func newService(settings *fakeSettings, sender *fakeSender, sink *fakeSink) *MessageService {
	return NewMessageService(settings, sender, func(string) (MessageSink, error) {
		return sink, nil
	}, nil)
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func configuredSettings(tenant, senderID, secret string) *models.WhatsAppSettings {
	return &models.WhatsAppSettings{
		TenantSchema:  tenant,
		AccessToken:   "tok",
		SenderID:      senderID,
		SigningSecret: secret,
		Active:        true,
	}
}

// ---- SendTenantMessage

func TestSendTenantMessage_Success(t *testing.T) {
	settings := &fakeSettings{byTenant: map[string]*models.WhatsAppSettings{
		"tenant_a": configuredSettings("tenant_a", "5511999", ""),
	}}
	sender := &fakeSender{result: &whatsapp.SendResult{
		ProviderMsgID: "wamid.OUT1",
		Raw:           []byte(`{"messages":[{"id":"wamid.OUT1"}]}`),
	}}
	sink := &fakeSink{}
	svc := newService(settings, sender, sink)

	apptID := uint(7)
	got, err := svc.SendTenantMessage(context.Background(), "tenant_a", "+5511988887777", "lembrete", &apptID)
	require.NoError(t, err)
	assert.Equal(t, "wamid.OUT1", got.ProviderMsgID)

	require.Len(t, sender.calls, 1)
	assert.Equal(t, sentCall{"tok", "5511999", "+5511988887777", "lembrete"}, sender.calls[0])

	require.Len(t, sink.created, 1)
	row := sink.created[0]
	assert.Equal(t, models.DirectionOutbound, row.Direction)
	assert.Equal(t, models.MessageStatusSent, row.Status)
	assert.Equal(t, "+5511988887777", row.Phone)
	require.NotNil(t, row.ProviderMsgID)
	assert.Equal(t, "wamid.OUT1", *row.ProviderMsgID)
	require.NotNil(t, row.AppointmentID)
	assert.Equal(t, uint(7), *row.AppointmentID)
}

func TestSendTenantMessage_NotConfigured(t *testing.T) {
	settings := &fakeSettings{byTenant: map[string]*models.WhatsAppSettings{
		// record exists but has no access token
		"tenant_b": {TenantSchema: "tenant_b", SenderID: "123"},
	}}
	sender := &fakeSender{}
	sink := &fakeSink{}
	svc := newService(settings, sender, sink)

	for _, tenant := range []string{"tenant_a", "tenant_b"} {
		_, err := svc.SendTenantMessage(context.Background(), tenant, "+55", "oi", nil)
		require.Error(t, err)
		var fe *fiber.Error
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, fiber.StatusPreconditionFailed, fe.Code)
	}
	assert.Empty(t, sender.calls)
	assert.Empty(t, sink.created)
}

func TestSendTenantMessage_GatewayErrorNotLogged(t *testing.T) {
	settings := &fakeSettings{byTenant: map[string]*models.WhatsAppSettings{
		"tenant_a": configuredSettings("tenant_a", "1", ""),
	}}
	sender := &fakeSender{err: &whatsapp.APIError{Kind: whatsapp.KindTimeout, Message: "deadline exceeded"}}
	sink := &fakeSink{}
	svc := newService(settings, sender, sink)

	_, err := svc.SendTenantMessage(context.Background(), "tenant_a", "+55", "oi", nil)
	require.Error(t, err)
	assert.True(t, whatsapp.IsTimeout(err))
	assert.Empty(t, sink.created)
}

// ---- ProcessWebhook

func inboundBody(senderID, from, text string) []byte {
	return []byte(`{"entry":[{"changes":[{"value":{
		"metadata":{"phone_number_id":"` + senderID + `"},
		"messages":[{"id":"wamid.IN1","from":"` + from + `","type":"text","text":{"body":"` + text + `"}}]
	}}]}]}`)
}

func TestProcessWebhook_TenantNotFound(t *testing.T) {
	settings := &fakeSettings{bySender: map[string]*models.WhatsAppSettings{}}
	sink := &fakeSink{}
	svc := newService(settings, &fakeSender{}, sink)

	got, err := svc.ProcessWebhook(context.Background(), inboundBody("999", "+55", "oi"), "")
	require.NoError(t, err)
	assert.True(t, got.OK)
	assert.True(t, got.Ignored)
	assert.Equal(t, "tenant-not-found", got.Reason)
	assert.Empty(t, sink.created)
}

func TestProcessWebhook_SignatureEnforcedOnlyWithSecret(t *testing.T) {
	body := inboundBody("5511999", "+5511988887777", "oi")

	t.Run("no secret configured accepts unsigned", func(t *testing.T) {
		settings := &fakeSettings{bySender: map[string]*models.WhatsAppSettings{
			"5511999": configuredSettings("tenant_a", "5511999", ""),
		}}
		sink := &fakeSink{}
		svc := newService(settings, &fakeSender{}, sink)

		got, err := svc.ProcessWebhook(context.Background(), body, "")
		require.NoError(t, err)
		assert.True(t, got.OK)
		assert.Len(t, sink.created, 1)
	})

	t.Run("bad signature rejected when secret set", func(t *testing.T) {
		settings := &fakeSettings{bySender: map[string]*models.WhatsAppSettings{
			"5511999": configuredSettings("tenant_a", "5511999", "app-secret"),
		}}
		sink := &fakeSink{}
		svc := newService(settings, &fakeSender{}, sink)

		_, err := svc.ProcessWebhook(context.Background(), body, "sha256=deadbeef")
		require.Error(t, err)
		var fe *fiber.Error
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, fiber.StatusUnauthorized, fe.Code)
		assert.Empty(t, sink.created)
	})

	t.Run("valid signature accepted", func(t *testing.T) {
		settings := &fakeSettings{bySender: map[string]*models.WhatsAppSettings{
			"5511999": configuredSettings("tenant_a", "5511999", "app-secret"),
		}}
		sink := &fakeSink{}
		svc := newService(settings, &fakeSender{}, sink)

		got, err := svc.ProcessWebhook(context.Background(), body, signBody(body, "app-secret"))
		require.NoError(t, err)
		assert.True(t, got.OK)
		assert.Len(t, sink.created, 1)
	})
}

func TestProcessWebhook_InboundIntentRows(t *testing.T) {
	settings := &fakeSettings{bySender: map[string]*models.WhatsAppSettings{
		"5511999": configuredSettings("tenant_a", "5511999", ""),
	}}
	sink := &fakeSink{inboundFrom: map[string]bool{"+5511988887777": true}}
	svc := newService(settings, &fakeSender{}, sink)

	tests := []struct {
		from string
		text string
		want string
	}{
		{"+5511988887777", "1", rules.IntentConfirmPericia},
		{"+5511988887777", "2", rules.IntentRequestReschedule},
		{"+5511988887777", "preciso remarcar", rules.IntentTriageInboxLinked},
		{"+5511900000000", "oi", rules.IntentTriageInboxUnlinked},
	}
	for _, tt := range tests {
		sink.created = nil
		_, err := svc.ProcessWebhook(context.Background(), inboundBody("5511999", tt.from, tt.text), "")
		require.NoError(t, err)
		require.Len(t, sink.created, 1)
		row := sink.created[0]
		assert.Equal(t, models.DirectionInbound, row.Direction)
		assert.Equal(t, tt.want, row.Kind, "text=%q", tt.text)
		assert.Equal(t, tt.from, row.Phone)
		assert.Equal(t, "received", row.Status)
		require.NotNil(t, row.ProviderMsgID)
	}
}

func TestProcessWebhook_StatusEvents(t *testing.T) {
	settings := &fakeSettings{bySender: map[string]*models.WhatsAppSettings{
		"5511999": configuredSettings("tenant_a", "5511999", ""),
	}}
	sink := &fakeSink{}
	svc := newService(settings, &fakeSender{}, sink)

	body := []byte(`{"entry":[{"changes":[{"value":{
		"metadata":{"phone_number_id":"5511999"},
		"statuses":[
			{"id":"wamid.OUT1","status":"delivered"},
			{"id":"wamid.OUT2","status":"failed","errors":[{"title":"Message undeliverable"}]}
		]
	}}]}]}`)

	got, err := svc.ProcessWebhook(context.Background(), body, "")
	require.NoError(t, err)
	assert.True(t, got.OK)

	// One status-direction log row per event, plus the outbound row mutation.
	require.Len(t, sink.created, 2)
	assert.Equal(t, models.DirectionStatus, sink.created[0].Direction)
	assert.Equal(t, "delivered", sink.created[0].Status)

	require.Len(t, sink.updates, 2)
	assert.Equal(t, statusUpdate{ProviderMsgID: "wamid.OUT1", Status: "delivered"}, sink.updates[0])
	assert.Equal(t, "wamid.OUT2", sink.updates[1].ProviderMsgID)
	assert.Equal(t, "failed", sink.updates[1].Status)
	require.NotNil(t, sink.updates[1].ErrorText)
	assert.Equal(t, "Message undeliverable", *sink.updates[1].ErrorText)
}

// ---- VerifyChallenge

func TestVerifyChallenge(t *testing.T) {
	settings := &fakeSettings{tokens: map[string]bool{"known-token": true}}
	svc := newService(settings, &fakeSender{}, &fakeSink{})
	ctx := context.Background()

	t.Run("echoes the challenge for a known token", func(t *testing.T) {
		got, err := svc.VerifyChallenge(ctx, "subscribe", "known-token", "challenge-123")
		require.NoError(t, err)
		assert.Equal(t, "challenge-123", got)
	})

	t.Run("rejects unknown tokens", func(t *testing.T) {
		_, err := svc.VerifyChallenge(ctx, "subscribe", "wrong", "challenge-123")
		var fe *fiber.Error
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, fiber.StatusForbidden, fe.Code)
	})

	t.Run("rejects wrong mode and empty token", func(t *testing.T) {
		for _, tc := range [][2]string{{"unsubscribe", "known-token"}, {"subscribe", ""}} {
			_, err := svc.VerifyChallenge(ctx, tc[0], tc[1], "challenge-123")
			var fe *fiber.Error
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, fiber.StatusBadRequest, fe.Code)
		}
	})
}
