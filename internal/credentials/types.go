package credentials

import (
	"context"
	"errors"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/protocol"
)

var (
	ErrInvalidConnectionID = errors.New("invalid connection id")
	ErrStoreNotMigrated    = errors.New("credential store schema is missing, run the migrate_db upgrade command")
)

// Store persists the authentication state of each connection.  Load returns
// fresh default credentials when nothing has been stored yet.
type Store interface {
	Load(ctx context.Context, connectionID domain.ConnectionID) (*protocol.Credentials, error)
	Save(ctx context.Context, connectionID domain.ConnectionID, creds *protocol.Credentials) error
	Delete(ctx context.Context, connectionID domain.ConnectionID) error
}
