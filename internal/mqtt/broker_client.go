package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

var (
	ErrTLSHandshake = errors.New("gateway broker tls handshake failed")

	ErrBrokerConnect     = errors.New("gateway broker connection failed")
	ErrConnectionLost    = errors.New("gateway broker connection lost")
	ErrConnectionRefused = errors.New("gateway broker connection refused")
	ErrHostUnreachable   = errors.New("gateway broker host unreachable")
	ErrTimeout           = errors.New("gateway broker connection timeout")
	ErrEOF               = errors.New("gateway broker connection closed unexpectedly")
	ErrBrokenPipe        = errors.New("gateway broker broken pipe")

	ErrProtocolVersion       = errors.New("gateway broker unacceptable protocol version")
	ErrIdentifierRejected    = errors.New("gateway broker client identifier rejected")
	ErrServerUnavailable     = errors.New("gateway broker server unavailable")
	ErrBadUsernameOrPassword = errors.New("gateway broker bad username or password")
	ErrNotAuthorized         = errors.New("gateway broker not authorized")
)

const (
	CodeTLSHandshake = 495

	CodeConnectionLost    = 104 // ECONNRESET
	CodeConnectionRefused = 111 // ECONNREFUSED
	CodeHostUnreachable   = 113 // EHOSTUNREACH
	CodeBrokerConnect     = 520
	CodeTimeout           = 408
	CodeEOF               = 499
	CodeBrokenPipe        = 532

	// CONNACK return codes
	CodeProtocolVersion       = 0x01
	CodeIdentifierRejected    = 0x02
	CodeServerUnavailable     = 0x03
	CodeBadUsernameOrPassword = 0x04
	CodeNotAuthorized         = 0x05
)

const (
	CategoryTLS      = "tls"
	CategoryNetwork  = "network"
	CategoryProtocol = "protocol"
	CategoryRuntime  = "runtime"
	CategoryUnknown  = "unknown"
)

// ConnectError describes why the broker link for a session could not be
// established or was lost.  None of its codes collide with the protocol's
// logged-out status, so a broker failure is always treated as transient.
type ConnectError struct {
	Code     int
	Kind     error
	Cause    error
	Category string
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
}

func (e *ConnectError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.Kind
}

func (e *ConnectError) Is(target error) bool {
	return target == e.Kind
}

func newConnectError(code int, category string, kind error, cause error) *ConnectError {
	return &ConnectError{
		Code:     code,
		Kind:     kind,
		Cause:    cause,
		Category: category,
	}
}

type errorHint struct {
	text string
	code int
	kind error
}

var connectHints = []errorHint{
	{"connection lost", CodeConnectionLost, ErrConnectionLost},
	{"connection refused", CodeConnectionRefused, ErrConnectionRefused},
	{"host unreachable", CodeHostUnreachable, ErrHostUnreachable},
	{"timeout", CodeTimeout, ErrTimeout},
	{"eof", CodeEOF, ErrEOF},
	{"broken pipe", CodeBrokenPipe, ErrBrokenPipe},
}

var connectionLostHints = []errorHint{
	{"timeout", CodeTimeout, ErrTimeout},
	{"keepalive", CodeConnectionLost, ErrConnectionLost},
	{"ping", CodeConnectionLost, ErrConnectionLost},
	{"broken pipe", CodeBrokenPipe, ErrBrokenPipe},
	{"connection lost", CodeConnectionLost, ErrConnectionLost},
}

func matchHint(err error, category string, hints []errorHint) *ConnectError {
	lowerMsg := strings.ToLower(err.Error())
	for _, hint := range hints {
		if strings.Contains(lowerMsg, hint.text) {
			return newConnectError(hint.code, category, hint.kind, err)
		}
	}
	return nil
}

func isTLSError(err error) bool {
	var tlsHeaderErr *tls.RecordHeaderError
	var unknownAuthErr x509.UnknownAuthorityError
	var certInvalidErr x509.CertificateInvalidError
	var hostErr x509.HostnameError
	return errors.As(err, &tlsHeaderErr) || errors.As(err, &unknownAuthErr) || errors.As(err, &certInvalidErr) || errors.As(err, &hostErr)
}

func classifyConnectError(err error) *ConnectError {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return newConnectError(CodeTimeout, CategoryNetwork, ErrTimeout, err)
	}

	if isTLSError(err) {
		return newConnectError(CodeTLSHandshake, CategoryTLS, ErrTLSHandshake, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(err, syscall.ECONNREFUSED):
			return newConnectError(CodeConnectionRefused, CategoryNetwork, ErrConnectionRefused, err)
		case errors.Is(err, syscall.ECONNRESET):
			return newConnectError(CodeConnectionLost, CategoryNetwork, ErrConnectionLost, err)
		case errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH):
			return newConnectError(CodeHostUnreachable, CategoryNetwork, ErrHostUnreachable, err)
		}
		return newConnectError(CodeBrokerConnect, CategoryNetwork, ErrBrokerConnect, err)
	}

	if errors.Is(err, io.EOF) {
		return newConnectError(CodeEOF, CategoryNetwork, ErrEOF, err)
	}
	if errors.Is(err, syscall.EPIPE) {
		return newConnectError(CodeBrokenPipe, CategoryNetwork, ErrBrokenPipe, err)
	}

	if hinted := matchHint(err, CategoryNetwork, connectHints); hinted != nil {
		return hinted
	}

	return newConnectError(CodeBrokerConnect, CategoryUnknown, ErrBrokerConnect, err)
}

func classifyProtocolReturnCode(rc byte) *ConnectError {
	var kind error
	switch rc {
	case 0x00:
		return nil
	case CodeProtocolVersion:
		kind = ErrProtocolVersion
	case CodeIdentifierRejected:
		kind = ErrIdentifierRejected
	case CodeServerUnavailable:
		kind = ErrServerUnavailable
	case CodeBadUsernameOrPassword:
		kind = ErrBadUsernameOrPassword
	case CodeNotAuthorized:
		kind = ErrNotAuthorized
	default:
		kind = ErrBrokerConnect
	}
	return newConnectError(int(rc), CategoryProtocol, kind, fmt.Errorf("connack=%d", rc))
}

// ClassifyConnectionLostError classifies the error handed to the paho
// connection-lost callback
func ClassifyConnectionLostError(err error) *ConnectError {
	if err == nil {
		return newConnectError(CodeBrokerConnect, CategoryRuntime, ErrConnectionLost, errors.New("connection lost"))
	}

	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce
	}

	var nerr net.Error
	switch {
	case errors.As(err, &nerr) && nerr.Timeout():
		return newConnectError(CodeTimeout, CategoryRuntime, ErrTimeout, err)
	case errors.Is(err, io.EOF):
		return newConnectError(CodeEOF, CategoryRuntime, ErrEOF, err)
	case errors.Is(err, syscall.EPIPE):
		return newConnectError(CodeBrokenPipe, CategoryRuntime, ErrBrokenPipe, err)
	case errors.Is(err, syscall.ECONNRESET):
		return newConnectError(CodeConnectionLost, CategoryRuntime, ErrConnectionLost, err)
	}

	if hinted := matchHint(err, CategoryRuntime, connectionLostHints); hinted != nil {
		return hinted
	}

	return newConnectError(CodeBrokerConnect, CategoryRuntime, ErrConnectionLost, err)
}

func CreateBrokerConnection(brokerUrl string, establishTimeout time.Duration, brokerConfigFuncs ...MqttClientOptionsFunc) (MQTT.Client, error) {

	connOpts, err := NewBrokerOptions(brokerUrl, brokerConfigFuncs...)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to build MQTT ClientOptions")
		return nil, err
	}

	mqttClient := MQTT.NewClient(connOpts)

	token := mqttClient.Connect()
	if !token.WaitTimeout(establishTimeout) {
		connectErr := newConnectError(CodeTimeout, CategoryNetwork, ErrTimeout, fmt.Errorf("no connack after %s", establishTimeout))
		logger.Log.WithFields(logrus.Fields{"error": connectErr}).Error("Timed out connecting to MQTT broker")
		return nil, connectErr
	}

	if ct, ok := token.(*MQTT.ConnectToken); ok {
		rc := ct.ReturnCode()
		if protoErr := classifyProtocolReturnCode(rc); protoErr != nil {
			logger.Log.WithFields(logrus.Fields{"error": protoErr, "connack_code": rc}).Error("MQTT CONNACK not accepted")
			return nil, protoErr
		}
	}

	if token.Error() != nil {
		connectErr := classifyConnectError(token.Error())
		logger.Log.WithFields(logrus.Fields{"error": connectErr}).Error("Unable to connect to MQTT broker")
		return nil, connectErr
	}

	logger.Log.Debug("Connected to MQTT broker: ", brokerUrl)

	return mqttClient, nil
}
