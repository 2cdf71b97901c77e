package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/RedHatInsights/messaging-connector/internal/api"
	"github.com/RedHatInsights/messaging-connector/internal/config"
	"github.com/RedHatInsights/messaging-connector/internal/credentials"
	"github.com/RedHatInsights/messaging-connector/internal/dispatcher"
	"github.com/RedHatInsights/messaging-connector/internal/group_cache"
	"github.com/RedHatInsights/messaging-connector/internal/live"
	"github.com/RedHatInsights/messaging-connector/internal/mqtt"
	"github.com/RedHatInsights/messaging-connector/internal/notifier"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	"github.com/RedHatInsights/messaging-connector/internal/platform/utils"
	"github.com/RedHatInsights/messaging-connector/internal/platform/utils/jwt_utils"
	"github.com/RedHatInsights/messaging-connector/internal/platform/utils/tls_utils"
	"github.com/RedHatInsights/messaging-connector/internal/session"

	"github.com/gorilla/mux"
	"github.com/redhatinsights/platform-go-middlewares/v2/request_id"
	"github.com/sirupsen/logrus"
)

func buildBrokerTlsConfigFuncList(cfg *config.Config) ([]tls_utils.TlsConfigFunc, error) {

	tlsConfigFuncs := []tls_utils.TlsConfigFunc{}

	if cfg.MqttBrokerTlsCertFile != "" && cfg.MqttBrokerTlsKeyFile != "" {
		tlsConfigFuncs = append(tlsConfigFuncs, tls_utils.WithCert(cfg.MqttBrokerTlsCertFile, cfg.MqttBrokerTlsKeyFile))
	} else if cfg.MqttBrokerTlsCertFile != "" || cfg.MqttBrokerTlsKeyFile != "" {
		return tlsConfigFuncs, errors.New("Cert or key file specified without the other")
	}

	if cfg.MqttBrokerTlsCACertFile != "" {
		tlsConfigFuncs = append(tlsConfigFuncs, tls_utils.WithCACerts(cfg.MqttBrokerTlsCACertFile))
	}

	if cfg.MqttBrokerTlsSkipVerify {
		tlsConfigFuncs = append(tlsConfigFuncs, tls_utils.WithSkipVerify())
	}

	return tlsConfigFuncs, nil
}

// The per-connection client ids are set by the gateway opener.  The options
// built here are shared by every gateway link.
func buildGatewayBrokerConfigFuncList(cfg *config.Config, tlsConfig *tls.Config) ([]mqtt.MqttClientOptionsFunc, error) {

	u, err := url.Parse(cfg.MqttBrokerAddress)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to determine protocol for the gateway broker connection")
		return nil, err
	}

	brokerConfigFuncs := []mqtt.MqttClientOptionsFunc{}

	if tlsConfig != nil {
		brokerConfigFuncs = append(brokerConfigFuncs, mqtt.WithTlsConfig(tlsConfig))
	}

	if u.Scheme == "wss" {
		jwtClientID := cfg.MqttClientIdPrefix + utils.GetHostname()

		jwtGenerator, err := jwt_utils.NewJwtGenerator(cfg.MqttBrokerJwtGeneratorImpl, jwtClientID, cfg)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to instantiate a JWT generator for the gateway broker connection")
			return nil, err
		}

		brokerConfigFuncs = append(brokerConfigFuncs, mqtt.WithJwtAsHttpHeader(jwtGenerator))
		brokerConfigFuncs = append(brokerConfigFuncs, mqtt.WithJwtReconnectingHandler(jwtGenerator))
	}

	return brokerConfigFuncs, nil
}

func startMessagingConnectorApiServer(listenAddr string) {

	logger.InitLogger()
	defer logger.FlushLogger()

	logger.Log.Info("Starting Messaging-Connector service")

	cfg := config.GetConfig()
	logger.Log.Info("Messaging-Connector configuration:\n", cfg)

	credentialStore, err := credentials.NewStore(cfg)
	if err != nil {
		logger.LogFatalError("Unable to create credential store", err)
	}

	tlsConfigFuncs, err := buildBrokerTlsConfigFuncList(cfg)
	if err != nil {
		logger.LogFatalError("TLS configuration error for gateway broker connection", err)
	}

	tlsConfig, err := tls_utils.NewTlsConfig(tlsConfigFuncs...)
	if err != nil {
		logger.LogFatalError("Unable to configure TLS for gateway broker connection", err)
	}

	brokerOptions, err := buildGatewayBrokerConfigFuncList(cfg, tlsConfig)
	if err != nil {
		logger.LogFatalError("Unable to configure gateway broker connection", err)
	}

	liveHub := live.NewHub(cfg.LiveUpdatesAllowedOrigins)

	backendNotifier := live.NewNotifierTee(notifier.NewHttpNotifier(cfg), liveHub)

	groupCache := group_cache.New(cfg.GroupMetadataCacheTTL)

	gatewayOpener := mqtt.NewGatewayOpener(cfg, brokerOptions...)

	sessionManager := session.NewManager(
		session.NewRegistry(),
		gatewayOpener,
		credentialStore,
		backendNotifier,
		groupCache,
		session.WithReconnectDelay(cfg.ReconnectDelay),
	)

	jobQueue, err := dispatcher.NewJobQueue(cfg)
	if err != nil {
		logger.LogFatalError("Unable to create outbound job queue", err)
	}

	jobDispatcher := dispatcher.NewDispatcherFromConfig(cfg, jobQueue, sessionManager, backendNotifier)

	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		if err := jobDispatcher.Run(dispatcherCtx); err != nil {
			logger.LogError("Outbound dispatcher stopped", err)
		}
	}()

	apiMux := mux.NewRouter()
	apiMux.Use(request_id.ConfiguredRequestID(logger.RequestIDHeader))

	monitoringServer := api.NewMonitoringServer(apiMux, cfg)
	if pinger, ok := credentialStore.(interface{ Ping(context.Context) error }); ok {
		monitoringServer.AddReadinessCheck("credential_store", pinger.Ping)
	}
	monitoringServer.Routes()

	mgmtServer := api.NewManagementServer(sessionManager, jobDispatcher, liveHub, apiMux, cfg.UrlBasePath, cfg)
	mgmtServer.Routes()

	apiSrv := utils.StartHTTPServer(listenAddr, "management", apiMux)

	signalChan := make(chan os.Signal, 1)

	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	logger.Log.Info("Received signal to shutdown: ", sig)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HttpShutdownTimeout)
	defer cancel()

	utils.ShutdownHTTPServer(ctx, "management", apiSrv)

	liveHub.Close()

	stopDispatcher()
	if err := jobQueue.Close(); err != nil {
		logger.LogError("Unable to close outbound job queue", err)
	}

	select {
	case <-dispatcherDone:
	case <-ctx.Done():
		logger.Log.Warn("Timed out waiting for the outbound dispatcher to stop")
	}

	sessionManager.Shutdown(ctx)

	logger.Log.Info("Messaging-Connector shutting down")
}
