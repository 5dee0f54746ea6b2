package badger

import (
	"context"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// RunLogStorage implements the append-only run log for Badger.
type RunLogStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunLogStorage creates a new RunLogStorage instance
func NewRunLogStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunLogStore {
	return &RunLogStorage{
		db:     db,
		logger: logger,
	}
}

// Append writes one run entry. Entries are never updated or deleted.
func (s *RunLogStorage) Append(ctx context.Context, entry *models.RunLogEntry) error {
	const op = "runlog.append"

	if entry.ID == "" {
		entry.ID = common.NewRunID()
	}
	if err := s.db.Store().Insert(entry.ID, entry); err != nil {
		return common.E(common.KindTransient, op, err)
	}
	return nil
}

// List returns the most recent entries for a profile, newest first.
func (s *RunLogStorage) List(ctx context.Context, profile string, limit int) ([]*models.RunLogEntry, error) {
	const op = "runlog.list"

	var entries []models.RunLogEntry
	if err := s.db.Store().Find(&entries, badgerhold.Where("Profile").Eq(profile).Index("Profile")); err != nil {
		return nil, common.E(common.KindTransient, op, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartedAt.After(entries[j].StartedAt)
	})

	out := make([]*models.RunLogEntry, 0, len(entries))
	for i := range entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, &entries[i])
	}
	return out, nil
}
