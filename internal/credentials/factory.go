package credentials

import (
	"fmt"

	"github.com/RedHatInsights/messaging-connector/internal/config"
	"github.com/RedHatInsights/messaging-connector/internal/platform/db"
)

func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.CredentialStoreImpl {
	case "file":
		return NewFileStore(cfg.CredentialStoreDirectory)
	case "postgres":
		database, err := db.InitializeDatabaseConnection(cfg)
		if err != nil {
			return nil, err
		}
		return NewSqlStore(database), nil
	default:
		return nil, fmt.Errorf("invalid credential store impl requested: %s", cfg.CredentialStoreImpl)
	}
}
