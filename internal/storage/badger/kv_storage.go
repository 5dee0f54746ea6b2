package badger

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
)

// kvEntry is the stored key/value pair.
type kvEntry struct {
	Key   string `badgerhold:"key"`
	Value string
}

// KVStorage implements the KeyValueStore interface for Badger. It holds the
// schema version marker and the stage2 analysis cache.
type KVStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewKVStorage creates a new KVStorage instance
func NewKVStorage(db *BadgerDB, logger arbor.ILogger) interfaces.KeyValueStore {
	return &KVStorage{
		db:     db,
		logger: logger,
	}
}

func (s *KVStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var entry kvEntry
	if err := s.db.Store().Get(key, &entry); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return "", false, nil
		}
		return "", false, common.E(common.KindTransient, "kv.get", err)
	}
	return entry.Value, true, nil
}

func (s *KVStorage) Set(ctx context.Context, key, value string) error {
	entry := kvEntry{Key: key, Value: value}
	if err := s.db.Store().Upsert(key, &entry); err != nil {
		return common.E(common.KindTransient, "kv.set", err)
	}
	return nil
}

func (s *KVStorage) Delete(ctx context.Context, key string) error {
	if err := s.db.Store().Delete(key, &kvEntry{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return common.E(common.KindTransient, "kv.delete", err)
	}
	return nil
}
