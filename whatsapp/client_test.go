package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendText_Success(t *testing.T) {
	var captured struct {
		Path string
		Auth string
		Body []byte
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		captured.Auth = r.Header.Get("Authorization")
		captured.Body, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.ABC"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)

	result, err := c.SendText(context.Background(), "tok-123", "5511999", "+5511988887777", "lembrete da perícia")
	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC", result.ProviderMsgID)

	assert.Equal(t, "/5511999/messages", captured.Path)
	assert.Equal(t, "Bearer tok-123", captured.Auth)

	var req map[string]any
	require.NoError(t, json.Unmarshal(captured.Body, &req))
	assert.Equal(t, "whatsapp", req["messaging_product"])
	assert.Equal(t, "individual", req["recipient_type"])
	assert.Equal(t, "+5511988887777", req["to"])
	assert.Equal(t, "text", req["type"])
}

func TestClient_SendText_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Recipient not in allowed list","type":"OAuthException","code":131030,"error_data":{"details":"sandbox"},"fbtrace_id":"tr-1"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)

	_, err := c.SendText(context.Background(), "tok", "1", "+55", "oi")
	require.Error(t, err)

	ae, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, KindProvider, ae.Kind)
	assert.Equal(t, "Recipient not in allowed list", ae.Message)
	assert.Equal(t, 131030, ae.Code)
	assert.Equal(t, "OAuthException", ae.Type)
	assert.Equal(t, "sandbox", ae.Details)
	assert.Equal(t, "tr-1", ae.Tag)
	assert.False(t, IsTimeout(err))
}

func TestClient_SendText_UnparsableErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)

	_, err := c.SendText(context.Background(), "tok", "1", "+55", "oi")
	require.Error(t, err)

	ae, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, KindBadGateway, ae.Kind)
}

func TestClient_SendText_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"messages":[{"id":"late"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20*time.Millisecond, nil)

	_, err := c.SendText(context.Background(), "tok", "1", "+55", "oi")
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "timeout must be distinguishable: %v", err)
}

func TestClient_SendText_SuccessWithoutMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"contacts":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)

	result, err := c.SendText(context.Background(), "tok", "1", "+55", "oi")
	require.NoError(t, err)
	assert.Empty(t, result.ProviderMsgID)
	assert.NotEmpty(t, result.Raw)
}
