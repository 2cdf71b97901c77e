package credentials

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	"github.com/RedHatInsights/messaging-connector/internal/protocol"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const sqlStoreLabel = "sql"

type SqlStore struct {
	database *sql.DB
}

func NewSqlStore(database *sql.DB) *SqlStore {
	return &SqlStore{database: database}
}

// Ping is used as a readiness check
func (scs *SqlStore) Ping(ctx context.Context) error {
	return scs.database.PingContext(ctx)
}

func (scs *SqlStore) Load(ctx context.Context, connectionID domain.ConnectionID) (*protocol.Credentials, error) {
	callDurationTimer := prometheus.NewTimer(metrics.loadDuration.WithLabelValues(sqlStoreLabel))
	defer callDurationTimer.ObserveDuration()

	var registered bool
	var data []byte

	err := scs.database.QueryRowContext(ctx,
		"SELECT registered, data FROM connection_credentials WHERE connection_id = $1",
		string(connectionID)).Scan(&registered, &data)

	if errors.Is(err, sql.ErrNoRows) {
		logger.Log.WithFields(logrus.Fields{"connection_id": connectionID}).Debug("No stored credentials, using fresh credentials")
		return protocol.NewCredentials(), nil
	} else if err != nil {
		return nil, translateSqlError(err)
	}

	creds := protocol.NewCredentials()
	creds.Registered = registered
	if len(data) > 0 {
		creds.Data = json.RawMessage(data)
	}

	return creds, nil
}

func (scs *SqlStore) Save(ctx context.Context, connectionID domain.ConnectionID, creds *protocol.Credentials) error {
	callDurationTimer := prometheus.NewTimer(metrics.saveDuration.WithLabelValues(sqlStoreLabel))
	defer callDurationTimer.ObserveDuration()

	var data []byte
	if len(creds.Data) > 0 {
		data = creds.Data
	}

	_, err := scs.database.ExecContext(ctx,
		`INSERT INTO connection_credentials (connection_id, registered, data, updated_at)
		    VALUES ($1, $2, $3, NOW())
		    ON CONFLICT (connection_id)
		    DO UPDATE SET registered = EXCLUDED.registered, data = EXCLUDED.data, updated_at = NOW()`,
		string(connectionID), creds.Registered, data)

	return translateSqlError(err)
}

func (scs *SqlStore) Delete(ctx context.Context, connectionID domain.ConnectionID) error {
	callDurationTimer := prometheus.NewTimer(metrics.deleteDuration.WithLabelValues(sqlStoreLabel))
	defer callDurationTimer.ObserveDuration()

	_, err := scs.database.ExecContext(ctx,
		"DELETE FROM connection_credentials WHERE connection_id = $1",
		string(connectionID))

	return translateSqlError(err)
}

func translateSqlError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UndefinedTable {
		return errors.Join(ErrStoreNotMigrated, err)
	}

	return err
}
