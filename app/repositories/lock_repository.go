package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/catalogsync/app/models"
)

// LockRepository hands out named leases stored in the catalog database, so
// processes that share a store also share the lock.
type LockRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLockRepository(db *gorm.DB) *LockRepository {
	return &LockRepository{db: db, now: time.Now}
}

// Acquire claims name for owner until ttl elapses. It reports false when a
// live lease is held by anyone, owner included. An expired lease is taken
// over.
func (r *LockRepository) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	if r.db == nil {
		return false, unavailable("lock acquire", errors.New("no database handle"))
	}
	db := r.db.WithContext(ctx)
	if err := db.AutoMigrate(&models.SyncLock{}); err != nil {
		return false, unavailable("lock schema", err)
	}

	now := r.now()
	err := db.Where("name = ? AND expires_at <= ?", name, now.UnixMilli()).
		Delete(&models.SyncLock{}).Error
	if err != nil {
		return false, unavailable("lock expire", err)
	}

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.SyncLock{
		Name:      name,
		Owner:     owner,
		ExpiresAt: now.Add(ttl).UnixMilli(),
	})
	if res.Error != nil {
		return false, unavailable("lock acquire", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Release drops the lease if owner still holds it. Releasing a lease that
// expired and was taken over is a no-op.
func (r *LockRepository) Release(ctx context.Context, name, owner string) error {
	if r.db == nil {
		return unavailable("lock release", errors.New("no database handle"))
	}
	err := r.db.WithContext(ctx).
		Where("name = ? AND owner = ?", name, owner).
		Delete(&models.SyncLock{}).Error
	if err != nil {
		return unavailable("lock release", err)
	}
	return nil
}
