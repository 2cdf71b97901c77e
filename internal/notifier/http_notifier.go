package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/config"
	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	handleEventPath            = "/api/method/whatsapp.api.webhook_handler.handle_event"
	updateConnectionStatusPath = "/api/method/whatsapp.api.webhook_handler.update_connection_status"
	saveIncomingMessagePath    = "/api/method/whatsapp.api.webhook_handler.save_incoming_message"
	updateMessageStatusPath    = "/api/method/whatsapp.whatsapp.doctype.whatsapp_message_log.whatsapp_message_log.update_message_status"

	requestIDHeader = "X-Request-Id"
)

type HttpNotifier struct {
	baseUrl    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewHttpNotifier(cfg *config.Config) *HttpNotifier {
	return &HttpNotifier{
		baseUrl:    cfg.BackendUrl,
		timeout:    cfg.BackendTimeout,
		httpClient: &http.Client{},
	}
}

type handleEventRequest struct {
	ConnectionID domain.ConnectionID    `json:"connection_id"`
	Event        domain.EventKind       `json:"event"`
	Data         map[string]interface{} `json:"data"`
}

type updateConnectionStatusRequest struct {
	ConnectionID domain.ConnectionID     `json:"connection_id"`
	Status       domain.ConnectionStatus `json:"status"`
}

type saveIncomingMessageRequest struct {
	ConnectionID domain.ConnectionID `json:"connection_id"`
	FromNumber   string              `json:"from_number"`
	MessageID    string              `json:"message_id"`
	MessageType  string              `json:"message_type"`
	Content      string              `json:"content"`
	Timestamp    int64               `json:"timestamp"`
}

type updateMessageStatusRequest struct {
	MessageLogID string               `json:"message_log_id,omitempty"`
	MessageID    string               `json:"message_id,omitempty"`
	Status       domain.MessageStatus `json:"status"`
	ErrorMessage string               `json:"error_message,omitempty"`
}

func (hn *HttpNotifier) Notify(ctx context.Context, connectionID domain.ConnectionID, event domain.EventKind, data map[string]interface{}) {
	log := logger.Log.WithFields(logrus.Fields{"connection_id": connectionID, "event": event})
	hn.post(ctx, log, "handle_event", handleEventPath, handleEventRequest{
		ConnectionID: connectionID,
		Event:        event,
		Data:         data,
	})
}

func (hn *HttpNotifier) UpdateConnectionStatus(ctx context.Context, connectionID domain.ConnectionID, status domain.ConnectionStatus) {
	log := logger.Log.WithFields(logrus.Fields{"connection_id": connectionID, "status": status})
	hn.post(ctx, log, "update_connection_status", updateConnectionStatusPath, updateConnectionStatusRequest{
		ConnectionID: connectionID,
		Status:       status,
	})
}

func (hn *HttpNotifier) SaveIncomingMessage(ctx context.Context, msg domain.InboundMessage) {
	log := logger.Log.WithFields(logrus.Fields{"connection_id": msg.ConnectionID, "message_id": msg.MessageID})
	hn.post(ctx, log, "save_incoming_message", saveIncomingMessagePath, saveIncomingMessageRequest{
		ConnectionID: msg.ConnectionID,
		FromNumber:   msg.From,
		MessageID:    msg.MessageID,
		MessageType:  msg.MessageType,
		Content:      msg.Content,
		Timestamp:    msg.Timestamp,
	})
}

func (hn *HttpNotifier) UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus) {
	log := logger.Log.WithFields(logrus.Fields{"message_id": messageID, "status": status})
	hn.post(ctx, log, "update_message_status", updateMessageStatusPath, updateMessageStatusRequest{
		MessageID: messageID,
		Status:    status,
	})
}

func (hn *HttpNotifier) UpdateJobStatus(ctx context.Context, update JobStatusUpdate) {
	log := logger.Log.WithFields(logrus.Fields{"message_log_id": update.CorrelationID, "status": update.Status})
	hn.post(ctx, log, "update_job_status", updateMessageStatusPath, updateMessageStatusRequest{
		MessageLogID: update.CorrelationID,
		MessageID:    update.MessageID,
		Status:       update.Status,
		ErrorMessage: update.ErrorMessage,
	})
}

func (hn *HttpNotifier) post(ctx context.Context, log *logrus.Entry, endpoint string, path string, payload interface{}) {
	callDurationTimer := prometheus.NewTimer(metrics.requestDuration.WithLabelValues(endpoint))
	defer callDurationTimer.ObserveDuration()

	requestID := uuid.NewString()
	log = log.WithFields(logrus.Fields{"request_id": requestID, "endpoint": endpoint})

	ctx, cancel := detached(ctx, hn.timeout)
	defer cancel()

	err := hn.doPost(ctx, requestID, path, payload)
	if err != nil {
		metrics.requestCounter.WithLabelValues(endpoint, "failure").Inc()
		log.WithFields(logrus.Fields{"error": err}).Error("Unable to notify the backend")
		return
	}

	metrics.requestCounter.WithLabelValues(endpoint, "success").Inc()
	log.Debug("Notified the backend")
}

func (hn *HttpNotifier) doPost(ctx context.Context, requestID string, path string, payload interface{}) error {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hn.baseUrl+path, bytes.NewReader(jsonBytes))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, requestID)

	resp, err := hn.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, body)
	}

	io.Copy(io.Discard, resp.Body)

	return nil
}

// detached returns a context that survives cancellation of the caller's
// context while still bounding the request
func detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
