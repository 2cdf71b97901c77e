package middlewares

import (
	"context"
	"net/http"

	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	"github.com/sirupsen/logrus"
)

const (
	authErrorMessage   = "Authentication failed"
	authErrorLogHeader = "Authentication error: "
	PSKClientIdHeader  = "x-messaging-connector-client-id"
	PSKHeader          = "x-messaging-connector-psk"
)

// Principal identifies the caller of the admin API
type Principal interface {
	GetClientID() string
}

type key int

var principalKey key

type serviceToServicePrincipal struct {
	clientID string
}

func (sp serviceToServicePrincipal) GetClientID() string {
	return sp.clientID
}

type anonymousPrincipal struct{}

func (ap anonymousPrincipal) GetClientID() string {
	return ""
}

func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(serviceToServicePrincipal)
	if !ok {
		return anonymousPrincipal{}, false
	}
	return p, ok
}

// AuthMiddleware checks the pre-shared key headers against Secrets.  With no
// secrets configured the API is open, which is how the service runs behind a
// private network.
type AuthMiddleware struct {
	Secrets map[string]interface{}
}

func (amw *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(amw.Secrets) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		sc, err := newServiceCredentials(
			r.Header.Get(PSKClientIdHeader),
			r.Header.Get(PSKHeader),
		)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err}).Debug("Authentication failure")
			http.Error(w, authErrorMessage, http.StatusUnauthorized)
			return
		}

		validator := serviceCredentialsValidator{knownServiceCredentials: amw.Secrets}
		if err := validator.validate(sc); err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err}).Debug("Authentication failure")
			http.Error(w, authErrorMessage, http.StatusUnauthorized)
			return
		}

		logger.Log.Debugf("Received service to service request from %v", sc.clientID)

		principal := serviceToServicePrincipal{clientID: sc.clientID}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
