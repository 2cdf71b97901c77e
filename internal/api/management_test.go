package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/RedHatInsights/messaging-connector/internal/config"
	"github.com/RedHatInsights/messaging-connector/internal/dispatcher"
	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/middlewares"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"

	"github.com/gorilla/mux"
	"github.com/redhatinsights/platform-go-middlewares/v2/request_id"
)

const (
	URL_BASE_PATH          = "/api"
	CONNECT_ENDPOINT       = URL_BASE_PATH + "/connect"
	DISCONNECT_ENDPOINT    = URL_BASE_PATH + "/disconnect"
	QUEUE_MESSAGE_ENDPOINT = URL_BASE_PATH + "/queue-message"
	SEND_MESSAGE_ENDPOINT  = URL_BASE_PATH + "/send-message"
	STATUS_ENDPOINT        = URL_BASE_PATH + "/status"
	LIVE_ENDPOINT          = URL_BASE_PATH + "/live"

	TEST_CLIENT_ID = "test_client_1"
	TEST_PSK       = "12345"
)

func postBody(body string) io.Reader {
	return strings.NewReader(body)
}

func decodeBody(rr *httptest.ResponseRecorder) map[string]interface{} {
	var m map[string]interface{}
	err := json.Unmarshal(rr.Body.Bytes(), &m)
	Expect(err).NotTo(HaveOccurred())
	return m
}

var _ = Describe("Management", func() {

	var (
		ms                *ManagementServer
		connectionManager *mockConnectionManager
		jobDispatcher     *mockDispatcher
		liveHits          int
	)

	send := func(method string, endpoint string, body io.Reader, authenticated bool) *httptest.ResponseRecorder {
		req, err := http.NewRequest(method, endpoint, body)
		Expect(err).NotTo(HaveOccurred())

		if authenticated {
			req.Header.Add(middlewares.PSKClientIdHeader, TEST_CLIENT_ID)
			req.Header.Add(middlewares.PSKHeader, TEST_PSK)
		}

		rr := httptest.NewRecorder()
		ms.router.ServeHTTP(rr, req)
		return rr
	}

	BeforeEach(func() {
		apiMux := mux.NewRouter()
		cfg := config.GetConfig()
		cfg.ServiceToServiceCredentials = map[string]interface{}{TEST_CLIENT_ID: TEST_PSK}

		connectionManager = newMockConnectionManager()
		connectionManager.pairingCode = "ABCD-1234"
		jobDispatcher = &mockDispatcher{}
		liveHits = 0

		live := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			liveHits++
			w.WriteHeader(http.StatusSwitchingProtocols)
		})

		ms = NewManagementServer(connectionManager, jobDispatcher, live, apiMux, URL_BASE_PATH, cfg)
		ms.Routes()
	})

	Describe("Authentication", func() {
		It("Should reject requests without the pre-shared key", func() {
			rr := send("GET", STATUS_ENDPOINT, nil, false)

			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		})

		It("Should reject live update clients without the pre-shared key", func() {
			rr := send("GET", LIVE_ENDPOINT, nil, false)

			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
			Expect(liveHits).To(Equal(0))
		})
	})

	Describe("Connecting to the connect endpoint", func() {
		It("Should connect with the QR code method and apply defaults", func() {
			rr := send("POST", CONNECT_ENDPOINT, postBody(`{"connection_id": "c1", "connection_method": "QR Code"}`), true)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(rr)).To(Equal(map[string]interface{}{"success": true}))

			Expect(connectionManager.connectCalls).To(HaveLen(1))
			Expect(connectionManager.connectCalls[0].ConnectionID).To(Equal(domain.ConnectionID("c1")))
			Expect(connectionManager.connectCalls[0].Config.SyncFullHistory).To(BeTrue())
		})

		It("Should honour an explicit sync_full_history of false", func() {
			rr := send("POST", CONNECT_ENDPOINT, postBody(`{"connection_id": "c1", "sync_full_history": false, "browser_name": "Firefox"}`), true)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(connectionManager.connectCalls[0].Config.SyncFullHistory).To(BeFalse())
			Expect(connectionManager.connectCalls[0].Config.BrowserName).To(Equal("Firefox"))
		})

		It("Should return the pairing code", func() {
			rr := send("POST", CONNECT_ENDPOINT, postBody(`{"connection_id": "c2", "connection_method": "Pairing Code", "phone_number": "15551234567"}`), true)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(rr)).To(Equal(map[string]interface{}{"pairing_code": "ABCD-1234"}))
		})

		DescribeTable("Should reject invalid connect requests",
			func(body string) {
				rr := send("POST", CONNECT_ENDPOINT, postBody(body), true)

				Expect(rr.Code).To(Equal(http.StatusBadRequest))
				Expect(decodeBody(rr)).To(HaveKey("error"))
				Expect(connectionManager.connectCalls).To(BeEmpty())
			},
			Entry("missing connection id", `{"connection_method": "QR Code"}`),
			Entry("unknown connection method", `{"connection_id": "c1", "connection_method": "Carrier Pigeon"}`),
			Entry("pairing code without phone number", `{"connection_id": "c1", "connection_method": "Pairing Code"}`),
			Entry("malformed json", `{"connection_id": `),
			Entry("more than one object", `{"connection_id": "c1"}{"connection_id": "c2"}`),
		)

		It("Should surface a connect failure", func() {
			rr := send("POST", CONNECT_ENDPOINT, postBody(`{"connection_id": "broken"}`), true)

			Expect(rr.Code).To(Equal(http.StatusInternalServerError))

			m := decodeBody(rr)
			Expect(m["error"]).To(ContainSubstring("credential store unavailable"))
			Expect(m["status"]).To(BeNumerically("==", http.StatusInternalServerError))
		})
	})

	Describe("Connecting to the disconnect endpoint", func() {
		It("Should disconnect", func() {
			connectionManager.connected["c1"] = true

			rr := send("POST", DISCONNECT_ENDPOINT, postBody(`{"connection_id": "c1"}`), true)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(rr)).To(Equal(map[string]interface{}{"success": true}))
			Expect(connectionManager.ActiveConnections()).To(Equal(0))
		})

		It("Should succeed for an unknown connection", func() {
			rr := send("POST", DISCONNECT_ENDPOINT, postBody(`{"connection_id": "nope"}`), true)

			Expect(rr.Code).To(Equal(http.StatusOK))
		})

		It("Should surface a logout failure", func() {
			connectionManager.disconnectErr = errors.New("logout failed")

			rr := send("POST", DISCONNECT_ENDPOINT, postBody(`{"connection_id": "c1"}`), true)

			Expect(rr.Code).To(Equal(http.StatusInternalServerError))
			Expect(decodeBody(rr)).To(HaveKeyWithValue("error", "logout failed"))
		})
	})

	Describe("Connecting to the queue-message endpoint", func() {
		It("Should enqueue the job", func() {
			rr := send("POST", QUEUE_MESSAGE_ENDPOINT, postBody(`{"connection_id": "c1", "message_log_id": "log-1", "recipient": "123", "message": {"text": "hi"}, "campaign_id": "camp-9"}`), true)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(rr)).To(Equal(map[string]interface{}{"success": true}))

			Expect(jobDispatcher.jobs).To(Equal([]domain.OutboundJob{{
				ConnectionID:  "c1",
				CorrelationID: "log-1",
				Recipient:     "123",
				Message:       map[string]interface{}{"text": "hi"},
				CampaignID:    "camp-9",
			}}))
		})

		It("Should accept jobs for connections that are not active", func() {
			rr := send("POST", QUEUE_MESSAGE_ENDPOINT, postBody(`{"connection_id": "unknown", "message_log_id": "log-1", "recipient": "123", "message": {"text": "hi"}}`), true)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(jobDispatcher.jobs).To(HaveLen(1))
		})

		It("Should reject a job without a message", func() {
			rr := send("POST", QUEUE_MESSAGE_ENDPOINT, postBody(`{"connection_id": "c1", "message_log_id": "log-1", "recipient": "123"}`), true)

			Expect(rr.Code).To(Equal(http.StatusBadRequest))
			Expect(jobDispatcher.jobs).To(BeEmpty())
		})

		It("Should surface a queue failure", func() {
			jobDispatcher.enqueueErr = dispatcher.ErrQueueClosed

			rr := send("POST", QUEUE_MESSAGE_ENDPOINT, postBody(`{"connection_id": "c1", "message_log_id": "log-1", "recipient": "123", "message": {"text": "hi"}}`), true)

			Expect(rr.Code).To(Equal(http.StatusInternalServerError))
			Expect(decodeBody(rr)).To(HaveKeyWithValue("error", dispatcher.ErrQueueClosed.Error()))
		})
	})

	Describe("Connecting to the send-message endpoint", func() {
		It("Should send through an active connection", func() {
			connectionManager.connected["c1"] = true

			rr := send("POST", SEND_MESSAGE_ENDPOINT, postBody(`{"connection_id": "c1", "recipient": "123", "message": {"text": "hi"}}`), true)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(rr)).To(Equal(map[string]interface{}{"success": true, "message_id": "MSG-1"}))
		})

		It("Should return not found for an unknown connection", func() {
			rr := send("POST", SEND_MESSAGE_ENDPOINT, postBody(`{"connection_id": "c9", "recipient": "123", "message": {"text": "hi"}}`), true)

			Expect(rr.Code).To(Equal(http.StatusNotFound))
			Expect(decodeBody(rr)["error"]).To(ContainSubstring("c9"))
		})
	})

	Describe("Connecting to the status endpoint", func() {
		It("Should report connection and queue counters", func() {
			connectionManager.connected["c1"] = true
			connectionManager.connected["c2"] = true
			jobDispatcher.counters = dispatcher.Counters{Waiting: 4, Active: 1}

			rr := send("GET", STATUS_ENDPOINT, nil, true)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(rr)).To(Equal(map[string]interface{}{
				"active_connections": float64(2),
				"queue_waiting":      float64(4),
				"queue_active":       float64(1),
			}))
		})

		It("Should not allow POST", func() {
			rr := send("POST", STATUS_ENDPOINT, nil, true)

			Expect(rr.Code).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Describe("Connecting to the live endpoint", func() {
		It("Should hand the request to the live update hub", func() {
			rr := send("GET", LIVE_ENDPOINT, nil, true)

			Expect(rr.Code).To(Equal(http.StatusSwitchingProtocols))
			Expect(liveHits).To(Equal(1))
		})
	})
})

var _ = Describe("Request logging", func() {

	var (
		router  *mux.Router
		entryID interface{}
	)

	BeforeEach(func() {
		entryID = nil
		router = mux.NewRouter()
		router.Use(request_id.ConfiguredRequestID(logger.RequestIDHeader))
		router.HandleFunc("/logged", func(w http.ResponseWriter, req *http.Request) {
			entryID = requestLogger(req, "A").Data["request_id"]
		})
	})

	It("logs the caller's request id", func() {
		req, err := http.NewRequest(http.MethodGet, "/logged", nil)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set(logger.RequestIDHeader, "req-123")

		router.ServeHTTP(httptest.NewRecorder(), req)

		Expect(entryID).To(Equal("req-123"))
	})

	It("logs a generated request id when the caller sends none", func() {
		req, err := http.NewRequest(http.MethodGet, "/logged", nil)
		Expect(err).NotTo(HaveOccurred())

		router.ServeHTTP(httptest.NewRecorder(), req)

		Expect(entryID).NotTo(BeEmpty())
	})
})
