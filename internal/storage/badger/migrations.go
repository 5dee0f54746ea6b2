package badger

import (
	"context"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// schemaVersionKey is the KV key holding the store's schema version.
const schemaVersionKey = "schema_version"

// EnsureSchema checks the persisted schema version against the current
// build. Upgrades are forward-only: a newer store refuses to open under an
// older core, an older store is marked current and its records read-migrate
// lazily on first access.
func EnsureSchema(ctx context.Context, kv interfaces.KeyValueStore, logger arbor.ILogger) error {
	const op = "storage.ensure_schema"

	raw, found, err := kv.Get(ctx, schemaVersionKey)
	if err != nil {
		return err
	}
	if !found {
		return kv.Set(ctx, schemaVersionKey, strconv.Itoa(models.CurrentSchemaVersion))
	}

	version, err := strconv.Atoi(raw)
	if err != nil {
		return common.Ef(common.KindInvalid, op, "corrupt schema version %q", raw)
	}
	if version > models.CurrentSchemaVersion {
		return common.Ef(common.KindInvalid, op,
			"store schema version %d is newer than this build supports (%d)",
			version, models.CurrentSchemaVersion)
	}
	if version < models.CurrentSchemaVersion {
		logger.Info().
			Int("from", version).
			Int("to", models.CurrentSchemaVersion).
			Msg("Store schema behind; records migrate on first access")
		return kv.Set(ctx, schemaVersionKey, strconv.Itoa(models.CurrentSchemaVersion))
	}
	return nil
}

// migrateRecord upgrades a record read under an older schema. Returns true
// when the record changed and should be rewritten.
func migrateRecord(r *models.JobRecord) bool {
	if r.SchemaVersion >= models.CurrentSchemaVersion {
		return false
	}
	// Version 0 predates the explicit schema marker; fields are
	// compatible, only the version stamp is missing.
	if r.Status == "" {
		r.Status = models.StatusScraped
	}
	r.SchemaVersion = models.CurrentSchemaVersion
	return true
}
