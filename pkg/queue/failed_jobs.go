package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// FailedJobRecord is a queue failure persisted through gorm.
type FailedJobRecord struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	JobType  string    `gorm:"size:255;not null;index"`
	Payload  string    `gorm:"type:text;not null"`
	Error    string    `gorm:"type:text"`
	Attempts int       `gorm:"not null;default:0"`
	FailedAt time.Time `gorm:"autoCreateTime"`
}

func (FailedJobRecord) TableName() string { return "catalogsync_failed_jobs" }

// UseDB makes the manager persist exhausted jobs to db, creating the table
// if needed.
func (m *Manager) UseDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&FailedJobRecord{}); err != nil {
		return fmt.Errorf("queue: migrate failed jobs: %w", err)
	}
	m.mu.Lock()
	m.db = db
	m.mu.Unlock()
	return nil
}

// StoredFailedJobs returns the most recent persisted failures, newest first.
func (m *Manager) StoredFailedJobs(limit int) ([]FailedJobRecord, error) {
	m.mu.RLock()
	db := m.db
	m.mu.RUnlock()
	if db == nil {
		return nil, nil
	}
	var out []FailedJobRecord
	if err := db.Order("id desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("queue: list failed jobs: %w", err)
	}
	return out, nil
}

// persistFailed records the failure in memory and, when UseDB was called,
// in the failed jobs table.
func (m *Manager) persistFailed(job Job, typeName string, lastErr error, attempts int) {
	now := time.Now()
	m.mu.Lock()
	m.failed = append(m.failed, FailedJob{
		Type: typeName, Job: job, Err: lastErr, FailedAt: now, Attempts: attempts,
	})
	db := m.db
	m.mu.Unlock()

	if db == nil {
		return
	}

	payload, err := json.Marshal(job)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error": "could not marshal: %v"}`, err))
	}
	errText := ""
	if lastErr != nil {
		errText = lastErr.Error()
	}

	record := FailedJobRecord{
		JobType:  typeName,
		Payload:  string(payload),
		Error:    errText,
		Attempts: attempts,
		FailedAt: now,
	}
	if err := db.Create(&record).Error; err != nil {
		m.log.Error("queue: persist failed job", "type", typeName, "error", err)
	}
}
