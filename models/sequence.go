package models

import "gorm.io/gorm"

// SequenceCounter backs human-readable document numbers (RFP0001, ...).
// Allocation goes through a single atomic upsert so two concurrent
// generations can never read the same value.
type SequenceCounter struct {
	Name  string `gorm:"primaryKey;size:50" json:"name"`
	Value int64  `gorm:"not null;default:0" json:"value"`
}

// NextSequence atomically increments and returns the named counter,
// creating it at 1 on first use. The ON CONFLICT upsert makes this safe
// under concurrent callers without an application-side lock.
func NextSequence(db *gorm.DB, name string) (int64, error) {
	var value int64
	err := db.Raw(`INSERT INTO sequence_counters (name, value) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequence_counters.value + 1
		RETURNING value`, name).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}
