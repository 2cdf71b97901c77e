package logger

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/redhatinsights/platform-go-middlewares/v2/request_id"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-Id"

func AccessLoggerMiddleware(next http.Handler) http.Handler {
	return handlers.CustomLoggingHandler(io.Discard, next, logrusAccessLogAdapter)
}

// The formatter is handed an io.Writer, but writing there loses the logrus
// fields, so the entry is emitted through the global logger instead.
func logrusAccessLogAdapter(w io.Writer, params handlers.LogFormatterParams) {
	request := fmt.Sprintf("%s %s %s", params.Request.Method, params.URL.Path, params.Request.Proto)
	Log.WithFields(logrus.Fields{
		"remote_addr": params.Request.RemoteAddr,
		"request":     request,
		"request_id":  request_id.GetReqID(params.Request.Context()),
		"status":      params.StatusCode,
		"size":        params.Size},
	).Info("access")
}
