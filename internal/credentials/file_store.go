package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"
	"github.com/RedHatInsights/messaging-connector/internal/protocol"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	fileStoreLabel  = "file"
	credentialsFile = "creds.json"
)

// FileStore keeps one directory per connection under a root directory
type FileStore struct {
	rootDir string
}

func NewFileStore(rootDir string) (*FileStore, error) {
	if err := os.MkdirAll(rootDir, 0700); err != nil {
		return nil, err
	}

	return &FileStore{rootDir: rootDir}, nil
}

func (store *FileStore) connectionDir(connectionID domain.ConnectionID) (string, error) {
	id := string(connectionID)
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", ErrInvalidConnectionID
	}
	return filepath.Join(store.rootDir, id), nil
}

func (store *FileStore) Load(ctx context.Context, connectionID domain.ConnectionID) (*protocol.Credentials, error) {
	callDurationTimer := prometheus.NewTimer(metrics.loadDuration.WithLabelValues(fileStoreLabel))
	defer callDurationTimer.ObserveDuration()

	dir, err := store.connectionDir(connectionID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, credentialsFile))
	if errors.Is(err, os.ErrNotExist) {
		logger.Log.WithFields(logrus.Fields{"connection_id": connectionID}).Debug("No stored credentials, using fresh credentials")
		return protocol.NewCredentials(), nil
	} else if err != nil {
		return nil, err
	}

	creds := protocol.NewCredentials()
	if err := json.Unmarshal(data, creds); err != nil {
		return nil, err
	}

	return creds, nil
}

func (store *FileStore) Save(ctx context.Context, connectionID domain.ConnectionID, creds *protocol.Credentials) error {
	callDurationTimer := prometheus.NewTimer(metrics.saveDuration.WithLabelValues(fileStoreLabel))
	defer callDurationTimer.ObserveDuration()

	dir, err := store.connectionDir(connectionID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, credentialsFile+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(dir, credentialsFile))
}

func (store *FileStore) Delete(ctx context.Context, connectionID domain.ConnectionID) error {
	callDurationTimer := prometheus.NewTimer(metrics.deleteDuration.WithLabelValues(fileStoreLabel))
	defer callDurationTimer.ObserveDuration()

	dir, err := store.connectionDir(connectionID)
	if err != nil {
		return err
	}

	return os.RemoveAll(dir)
}
