package badger

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
)

// Manager bundles the per-profile stores behind one lifecycle.
type Manager struct {
	db     *BadgerDB
	jobs   interfaces.JobStore
	runlog interfaces.RunLogStore
	kv     interfaces.KeyValueStore
	logger arbor.ILogger
}

// OpenProfileStore opens the store directory for one profile and verifies
// its schema version.
func OpenProfileStore(logger arbor.ILogger, path string, syncWrites bool) (*Manager, error) {
	db, err := NewBadgerDB(logger, path, syncWrites)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		db:     db,
		jobs:   NewJobStore(db, logger),
		runlog: NewRunLogStorage(db, logger),
		kv:     NewKVStorage(db, logger),
		logger: logger,
	}

	if err := EnsureSchema(context.Background(), m.kv, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) Jobs() interfaces.JobStore {
	return m.jobs
}

func (m *Manager) RunLog() interfaces.RunLogStore {
	return m.runlog
}

func (m *Manager) KV() interfaces.KeyValueStore {
	return m.kv
}

func (m *Manager) Close() error {
	return m.db.Close()
}
