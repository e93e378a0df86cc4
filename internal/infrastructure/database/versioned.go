package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleObject is returned when a row changed between read and conditional write.
var ErrStaleObject = errors.New("row was modified concurrently")

const maxVersionedAttempts = 3

// UpdateVersioned writes updates to the row identified by id only if its lock_version still
// equals version, bumping lock_version in the same statement.
func UpdateVersioned(tx *gorm.DB, table string, id uuid.UUID, version int, updates map[string]any) error {
	updates["lock_version"] = version + 1
	updates["updated_at"] = time.Now().UTC()
	res := tx.Table(table).Where("id = ? AND lock_version = ?", id, version).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleObject
	}
	return nil
}

// RetryStale re-runs fn, which must re-read the row it writes, while it fails with ErrStaleObject.
func RetryStale(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxVersionedAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn()
		if !errors.Is(err, ErrStaleObject) {
			return err
		}
	}
	return err
}
