package models

// SyncLock is a named lease shared by every process using the same store.
// ExpiresAt is unix milliseconds so the comparison is plain integer math on
// every driver.
type SyncLock struct {
	Name      string `gorm:"primaryKey;size:64"`
	Owner     string `gorm:"size:64;not null"`
	ExpiresAt int64  `gorm:"not null;index"`
}

func (SyncLock) TableName() string { return "catalogsync_locks" }
