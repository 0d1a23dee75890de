package webhook

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

type captured struct {
	body      []byte
	userAgent string
	signature string
}

func newTarget(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	cap := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		cap.body = body
		cap.userAgent = r.Header.Get("User-Agent")
		cap.signature = r.Header.Get("X-PixEdge-Signature")
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, cap
}

func testService() *Service {
	return &Service{client: &http.Client{Timeout: time.Second}}
}

func TestDeliverPayloadAndSignature(t *testing.T) {
	srv, cap := newTarget(t, http.StatusOK)
	secret := "hook-secret"

	wh := &Webhook{
		ID:       "wh1",
		URL:      srv.URL,
		Events:   []string{EventUpload},
		Secret:   &secret,
		IsActive: true,
	}

	data := map[string]interface{}{"id": "abc12345", "size": float64(42)}
	err := testService().deliver(context.Background(), wh, EventUpload, data)
	require.NoError(t, err)

	assert.Equal(t, "PixEdge-Webhook/1.0", cap.userAgent)
	assert.Equal(t, Sign(cap.body, secret), cap.signature)

	var p payload
	require.NoError(t, json.Unmarshal(cap.body, &p))
	assert.Equal(t, EventUpload, p.Event)
	assert.Equal(t, data, p.Data)
	assert.InDelta(t, time.Now().UnixMilli(), p.Timestamp, float64(5*time.Second.Milliseconds()))
}

func TestDeliverNoSecretNoSignature(t *testing.T) {
	srv, cap := newTarget(t, http.StatusOK)

	wh := &Webhook{ID: "wh1", URL: srv.URL, Events: []string{EventUpload}, IsActive: true}
	require.NoError(t, testService().deliver(context.Background(), wh, EventUpload, nil))
	assert.Empty(t, cap.signature)
}

func TestDeliverSkipsInactive(t *testing.T) {
	srv, cap := newTarget(t, http.StatusOK)

	wh := &Webhook{ID: "wh1", URL: srv.URL, Events: []string{EventUpload}, IsActive: false}
	require.NoError(t, testService().deliver(context.Background(), wh, EventUpload, nil))
	assert.Nil(t, cap.body, "inactive webhook must not be called")
}

func TestDeliverSkipsUnsubscribedEvent(t *testing.T) {
	srv, cap := newTarget(t, http.StatusOK)

	wh := &Webhook{ID: "wh1", URL: srv.URL, Events: []string{EventDelete}, IsActive: true}
	require.NoError(t, testService().deliver(context.Background(), wh, EventUpload, nil))
	assert.Nil(t, cap.body)
}

func TestDeliverTargetFailure(t *testing.T) {
	srv, _ := newTarget(t, http.StatusInternalServerError)

	wh := &Webhook{ID: "wh1", URL: srv.URL, Events: []string{EventUpload}, IsActive: true}
	err := testService().deliver(context.Background(), wh, EventUpload, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSignDeterministic(t *testing.T) {
	body := []byte(`{"event":"upload"}`)
	assert.Equal(t, Sign(body, "s"), Sign(body, "s"))
	assert.NotEqual(t, Sign(body, "s"), Sign(body, "other"))
	assert.Len(t, Sign(body, "s"), 64)
}

func TestFilterEvents(t *testing.T) {
	assert.Equal(t, []string{EventUpload}, filterEvents(nil))
	assert.Equal(t, []string{EventUpload}, filterEvents([]string{}))
	assert.Equal(t, []string{EventUpload, EventDelete}, filterEvents([]string{"upload", "bogus", "delete"}))
	assert.Empty(t, filterEvents([]string{"bogus", "nope"}))
}
