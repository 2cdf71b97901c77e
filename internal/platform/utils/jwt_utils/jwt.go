package jwt_utils

import (
	"context"
	"crypto/rsa"
	"errors"
	"os"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/config"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"

	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"
)

type clientInfo struct {
	ClientID           string `json:"client-id"`
	AuthorizationGroup string `json:"auth-group"`
}
type customClaims struct {
	*jwt.StandardClaims
	clientInfo
}

const (
	RsaTokenGenerator  = "jwt_rsa_generator"
	FileTokenGenerator = "jwt_file_reader"

	keyID = "messaging-connector"
)

var ErrInvalidGeneratorImpl = errors.New("invalid jwt generator impl requested")

func createRsaToken(client string, group string, exp time.Time, signKey *rsa.PrivateKey) (string, error) {
	t := jwt.New(jwt.GetSigningMethod("RS256"))
	t.Claims = &customClaims{
		&jwt.StandardClaims{
			ExpiresAt: exp.UTC().Unix(),
		},
		clientInfo{client, group},
	}
	t.Header["kid"] = keyID
	return t.SignedString(signKey)
}

// JwtGenerator produces the password presented to the gateway broker
type JwtGenerator func(c context.Context) (string, error)

func NewJwtGenerator(implName string, clientID string, cfg *config.Config) (JwtGenerator, error) {

	switch implName {
	case FileTokenGenerator:
		return NewFileBasedJwtGenerator(cfg.MqttBrokerJwtFile)
	case RsaTokenGenerator:
		return NewRSABasedJwtGenerator(cfg.JwtPrivateKeyFile, clientID, cfg.JwtTokenExpiry)
	default:
		return nil, ErrInvalidGeneratorImpl
	}
}

func NewFileBasedJwtGenerator(filename string) (JwtGenerator, error) {
	logger.Log.Debug("Loading JWT from a file: ", filename)

	jwtBytes, err := os.ReadFile(filename)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Could not read jwt from file")
		return nil, err
	}

	jwtText := string(jwtBytes)

	return func(context.Context) (string, error) {
		return jwtText, nil
	}, nil
}

func NewRSABasedJwtGenerator(privateKeyFile string, clientID string, expiryMinutes int) (JwtGenerator, error) {
	signBytes, err := os.ReadFile(privateKeyFile)
	if err != nil {
		return nil, err
	}
	signKey, err := jwt.ParseRSAPrivateKeyFromPEM(signBytes)
	if err != nil {
		return nil, err
	}
	return func(context.Context) (string, error) {
		expiryDate := time.Now().Add(time.Minute * time.Duration(expiryMinutes))
		logger.Log.Debug("Generating an RSA JWT token with expiry : ", expiryDate)
		return createRsaToken(clientID, "admin", expiryDate, signKey)
	}, nil
}
