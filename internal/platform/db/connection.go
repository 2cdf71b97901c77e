package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/RedHatInsights/messaging-connector/internal/config"

	_ "github.com/lib/pq"
)

var ErrInvalidSslMode = errors.New("invalid SSL configuration for database connection")

func BuildPostgresConnectionString(cfg *config.Config) (string, error) {
	psqlConnectionInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s TimeZone=UTC",
		cfg.ConnectionDatabaseHost,
		cfg.ConnectionDatabasePort,
		cfg.ConnectionDatabaseUser,
		cfg.ConnectionDatabasePassword,
		cfg.ConnectionDatabaseName)

	sslSettings, err := buildPostgresSslConfigString(cfg)
	if err != nil {
		return "", err
	}

	return psqlConnectionInfo + " " + sslSettings, nil
}

func buildPostgresSslConfigString(cfg *config.Config) (string, error) {
	switch cfg.ConnectionDatabaseSslMode {
	case "disable":
		return "sslmode=disable", nil
	case "verify-full":
		return "sslmode=verify-full sslrootcert=" + cfg.ConnectionDatabaseSslRootCert, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidSslMode, cfg.ConnectionDatabaseSslMode)
	}
}

func InitializeDatabaseConnection(cfg *config.Config) (*sql.DB, error) {
	psqlConnectionInfo, err := BuildPostgresConnectionString(cfg)
	if err != nil {
		return nil, err
	}

	database, err := sql.Open("postgres", psqlConnectionInfo)
	if err != nil {
		return nil, err
	}

	return database, nil
}
