package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/RedHatInsights/messaging-connector/internal/config"
	"github.com/RedHatInsights/messaging-connector/internal/dispatcher"
	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/middlewares"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	"github.com/RedHatInsights/messaging-connector/internal/protocol"
	"github.com/RedHatInsights/messaging-connector/internal/session"

	"github.com/gorilla/mux"
	"github.com/redhatinsights/platform-go-middlewares/v2/request_id"
	"github.com/sirupsen/logrus"
)

type ConnectionManager interface {
	Connect(ctx context.Context, connectionID domain.ConnectionID, config domain.ConnectionConfig) (*session.ConnectResult, error)
	Disconnect(ctx context.Context, connectionID domain.ConnectionID) error
	Send(ctx context.Context, connectionID domain.ConnectionID, recipient string, message protocol.OutboundMessage) (*protocol.Receipt, error)
	ActiveConnections() int
}

type JobDispatcher interface {
	Enqueue(ctx context.Context, job domain.OutboundJob) error
	Counters() dispatcher.Counters
}

type ManagementServer struct {
	connectionMgr ConnectionManager
	dispatcher    JobDispatcher
	liveUpdates   http.Handler
	router        *mux.Router
	urlPrefix     string
	config        *config.Config
}

func NewManagementServer(cm ConnectionManager, jd JobDispatcher, liveUpdates http.Handler, r *mux.Router, urlPrefix string, cfg *config.Config) *ManagementServer {
	return &ManagementServer{
		connectionMgr: cm,
		dispatcher:    jd,
		liveUpdates:   liveUpdates,
		router:        r,
		urlPrefix:     urlPrefix,
		config:        cfg,
	}
}

func (s *ManagementServer) Routes() {
	mmw := &middlewares.MetricsMiddleware{}
	amw := &middlewares.AuthMiddleware{Secrets: s.config.ServiceToServiceCredentials}

	securedSubRouter := s.router.PathPrefix(s.urlPrefix).Subrouter()
	securedSubRouter.Use(logger.AccessLoggerMiddleware,
		mmw.RecordHTTPMetrics,
		amw.Authenticate)

	securedSubRouter.HandleFunc("/connect", s.handleConnect()).Methods(http.MethodPost)
	securedSubRouter.HandleFunc("/disconnect", s.handleDisconnect()).Methods(http.MethodPost)
	securedSubRouter.HandleFunc("/queue-message", s.handleQueueMessage()).Methods(http.MethodPost)
	securedSubRouter.HandleFunc("/send-message", s.handleSendMessage()).Methods(http.MethodPost)
	securedSubRouter.HandleFunc("/status", s.handleStatus()).Methods(http.MethodGet)

	if s.liveUpdates != nil {
		securedSubRouter.Handle("/live", s.liveUpdates).Methods(http.MethodGet)
	}
}

type connectRequest struct {
	ConnectionID        string `json:"connection_id" validate:"required"`
	PhoneNumber         string `json:"phone_number"`
	ConnectionMethod    string `json:"connection_method" validate:"omitempty,oneof='QR Code' 'Pairing Code'"`
	BrowserName         string `json:"browser_name"`
	BrowserVersion      string `json:"browser_version"`
	MarkOnlineOnConnect bool   `json:"mark_online_on_connect"`
	SyncFullHistory     *bool  `json:"sync_full_history"`
}

func (cr *connectRequest) connectionConfig() domain.ConnectionConfig {
	syncFullHistory := true
	if cr.SyncFullHistory != nil {
		syncFullHistory = *cr.SyncFullHistory
	}

	return domain.ConnectionConfig{
		ConnectionMethod:    domain.ConnectionMethod(cr.ConnectionMethod),
		PhoneNumber:         cr.PhoneNumber,
		BrowserName:         cr.BrowserName,
		BrowserVersion:      cr.BrowserVersion,
		MarkOnlineOnConnect: cr.MarkOnlineOnConnect,
		SyncFullHistory:     syncFullHistory,
	}
}

type connectionRequest struct {
	ConnectionID string `json:"connection_id" validate:"required"`
}

type queueMessageRequest struct {
	ConnectionID string                 `json:"connection_id" validate:"required"`
	MessageLogID string                 `json:"message_log_id" validate:"required"`
	Recipient    string                 `json:"recipient" validate:"required"`
	Message      map[string]interface{} `json:"message" validate:"required"`
	CampaignID   string                 `json:"campaign_id"`
}

type sendMessageRequest struct {
	ConnectionID string                 `json:"connection_id" validate:"required"`
	Recipient    string                 `json:"recipient" validate:"required"`
	Message      map[string]interface{} `json:"message" validate:"required"`
}

type successResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
}

type statusResponse struct {
	ActiveConnections int   `json:"active_connections"`
	QueueWaiting      int64 `json:"queue_waiting"`
	QueueActive       int64 `json:"queue_active"`
}

var errPhoneNumberRequired = errors.New("phone_number is required for the Pairing Code connection method")

func statusCodeForError(err error) int {
	var notFoundErr *session.NotFoundError
	if errors.As(err, &notFoundErr) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func requestLogger(req *http.Request, connectionID string) *logrus.Entry {
	principal, _ := middlewares.GetPrincipal(req.Context())
	return logger.Log.WithFields(logrus.Fields{
		"client_id":     principal.GetClientID(),
		"request_id":    request_id.GetReqID(req.Context()),
		"connection_id": connectionID})
}

func (s *ManagementServer) handleConnect() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		body := http.MaxBytesReader(w, req.Body, maxRequestBodySize)

		var connReq connectRequest

		if err := decodeJSON(body, &connReq); err != nil {
			writeErrorResponse(w, "Unable to process json input", http.StatusBadRequest, err)
			return
		}

		if domain.ConnectionMethod(connReq.ConnectionMethod) == domain.PairingCodeConnectionMethod && connReq.PhoneNumber == "" {
			writeErrorResponse(w, "Unable to process json input", http.StatusBadRequest, errPhoneNumberRequired)
			return
		}

		log := requestLogger(req, connReq.ConnectionID)

		log.Info("Attempting to connect")

		result, err := s.connectionMgr.Connect(req.Context(), domain.ConnectionID(connReq.ConnectionID), connReq.connectionConfig())
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to connect")
			writeErrorResponse(w, "Unable to connect", statusCodeForError(err), err)
			return
		}

		writeJSONResponse(w, http.StatusOK, result)
	}
}

func (s *ManagementServer) handleDisconnect() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		body := http.MaxBytesReader(w, req.Body, maxRequestBodySize)

		var connReq connectionRequest

		if err := decodeJSON(body, &connReq); err != nil {
			writeErrorResponse(w, "Unable to process json input", http.StatusBadRequest, err)
			return
		}

		log := requestLogger(req, connReq.ConnectionID)

		log.Info("Attempting to disconnect")

		if err := s.connectionMgr.Disconnect(req.Context(), domain.ConnectionID(connReq.ConnectionID)); err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to disconnect")
			writeErrorResponse(w, "Unable to disconnect", statusCodeForError(err), err)
			return
		}

		writeJSONResponse(w, http.StatusOK, successResponse{Success: true})
	}
}

func (s *ManagementServer) handleQueueMessage() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		body := http.MaxBytesReader(w, req.Body, maxRequestBodySize)

		var msgReq queueMessageRequest

		if err := decodeJSON(body, &msgReq); err != nil {
			writeErrorResponse(w, "Unable to process json input", http.StatusBadRequest, err)
			return
		}

		log := requestLogger(req, msgReq.ConnectionID).WithFields(logrus.Fields{"message_log_id": msgReq.MessageLogID})

		job := domain.OutboundJob{
			ConnectionID:  domain.ConnectionID(msgReq.ConnectionID),
			CorrelationID: msgReq.MessageLogID,
			Recipient:     msgReq.Recipient,
			Message:       msgReq.Message,
			CampaignID:    msgReq.CampaignID,
		}

		if err := s.dispatcher.Enqueue(req.Context(), job); err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to queue message")
			writeErrorResponse(w, "Unable to queue message", http.StatusInternalServerError, err)
			return
		}

		log.Debug("Queued message")

		writeJSONResponse(w, http.StatusOK, successResponse{Success: true})
	}
}

func (s *ManagementServer) handleSendMessage() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		body := http.MaxBytesReader(w, req.Body, maxRequestBodySize)

		var msgReq sendMessageRequest

		if err := decodeJSON(body, &msgReq); err != nil {
			writeErrorResponse(w, "Unable to process json input", http.StatusBadRequest, err)
			return
		}

		log := requestLogger(req, msgReq.ConnectionID)

		receipt, err := s.connectionMgr.Send(req.Context(), domain.ConnectionID(msgReq.ConnectionID), msgReq.Recipient, protocol.OutboundMessage(msgReq.Message))
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to send message")
			writeErrorResponse(w, "Unable to send message", statusCodeForError(err), err)
			return
		}

		response := successResponse{Success: true}
		if receipt != nil {
			response.MessageID = receipt.Key.ID
		}

		writeJSONResponse(w, http.StatusOK, response)
	}
}

func (s *ManagementServer) handleStatus() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {

		counters := s.dispatcher.Counters()

		writeJSONResponse(w, http.StatusOK, statusResponse{
			ActiveConnections: s.connectionMgr.ActiveConnections(),
			QueueWaiting:      counters.Waiting,
			QueueActive:       counters.Active,
		})
	}
}
