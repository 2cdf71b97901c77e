package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/config"
	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"

	"github.com/go-playground/assert/v2"
	"github.com/google/go-cmp/cmp"
)

func init() {
	logger.InitLogger()
}

type recordedRequest struct {
	path string
	body map[string]interface{}
}

type backendRecorder struct {
	sync.Mutex
	requests []recordedRequest
	status   int
}

func (br *backendRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	json.NewDecoder(r.Body).Decode(&body)

	br.Lock()
	br.requests = append(br.requests, recordedRequest{path: r.URL.Path, body: body})
	br.Unlock()

	if r.Header.Get(requestIDHeader) == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.WriteHeader(br.status)
}

func newTestNotifier(t *testing.T, status int) (*HttpNotifier, *backendRecorder) {
	recorder := &backendRecorder{status: status}
	server := httptest.NewServer(recorder)
	t.Cleanup(server.Close)

	cfg := &config.Config{BackendUrl: server.URL, BackendTimeout: time.Second}
	return NewHttpNotifier(cfg), recorder
}

func TestHttpNotifierPayloads(t *testing.T) {
	hn, recorder := newTestNotifier(t, http.StatusOK)
	ctx := context.Background()

	hn.Notify(ctx, "conn-1", domain.QRCodeEvent, map[string]interface{}{"qr": "2@abc"})
	hn.UpdateConnectionStatus(ctx, "conn-1", domain.ConnectedStatus)
	hn.SaveIncomingMessage(ctx, domain.InboundMessage{
		ConnectionID: "conn-1",
		From:         "5511@s.whatsapp.net",
		MessageID:    "ABC",
		MessageType:  "imageMessage",
		Content:      "look",
		Timestamp:    1700000000,
	})
	hn.UpdateMessageStatus(ctx, "ABC", domain.DeliveredMessageStatus)
	hn.UpdateJobStatus(ctx, JobStatusUpdate{CorrelationID: "LOG-1", Status: domain.SentMessageStatus, MessageID: "XYZ"})
	hn.UpdateJobStatus(ctx, JobStatusUpdate{CorrelationID: "LOG-2", Status: domain.FailedMessageStatus, ErrorMessage: "boom"})

	expected := []recordedRequest{
		{handleEventPath, map[string]interface{}{"connection_id": "conn-1", "event": "qr_code", "data": map[string]interface{}{"qr": "2@abc"}}},
		{updateConnectionStatusPath, map[string]interface{}{"connection_id": "conn-1", "status": "Connected"}},
		{saveIncomingMessagePath, map[string]interface{}{
			"connection_id": "conn-1",
			"from_number":   "5511@s.whatsapp.net",
			"message_id":    "ABC",
			"message_type":  "imageMessage",
			"content":       "look",
			"timestamp":     float64(1700000000),
		}},
		{updateMessageStatusPath, map[string]interface{}{"message_id": "ABC", "status": "Delivered"}},
		{updateMessageStatusPath, map[string]interface{}{"message_log_id": "LOG-1", "message_id": "XYZ", "status": "Sent"}},
		{updateMessageStatusPath, map[string]interface{}{"message_log_id": "LOG-2", "error_message": "boom", "status": "Failed"}},
	}

	if diff := cmp.Diff(expected, recorder.requests, cmp.AllowUnexported(recordedRequest{})); diff != "" {
		t.Fatalf("backend requests mismatch (-want +got):\n%s", diff)
	}
}

func TestHttpNotifierSwallowsBackendErrors(t *testing.T) {
	hn, recorder := newTestNotifier(t, http.StatusInternalServerError)

	hn.UpdateConnectionStatus(context.Background(), "conn-1", domain.FailedStatus)

	assert.Equal(t, len(recorder.requests), 1)
}

func TestHttpNotifierSurvivesCancelledContext(t *testing.T) {
	hn, recorder := newTestNotifier(t, http.StatusOK)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	hn.UpdateConnectionStatus(ctx, "conn-1", domain.DisconnectedStatus)

	assert.Equal(t, len(recorder.requests), 1)
}

func TestHttpNotifierUnreachableBackend(t *testing.T) {
	cfg := &config.Config{BackendUrl: "http://127.0.0.1:1", BackendTimeout: 100 * time.Millisecond}
	hn := NewHttpNotifier(cfg)

	// must return without panicking or propagating the error
	hn.Notify(context.Background(), "conn-1", domain.PairingCodeEvent, map[string]interface{}{"code": "ABCD-1234"})
}
