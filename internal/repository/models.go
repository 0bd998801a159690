// Package repository persists a history of solve attempts.
package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Outcome values for RunRecord.Outcome.
const (
	OutcomePending  = "pending"
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// RunRecord represents the run_record table: one row per solve attempt,
// inserted at the start of a run and updated with its outcome at the
// end, independent of the per-problem file dump storage writes.
type RunRecord struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Problem      string     `gorm:"column:problem;type:varchar(64);index"`
	Backend      string     `gorm:"column:backend;type:varchar(16)"`
	Outcome      string     `gorm:"column:outcome;type:varchar(16);index"`
	ProbeCount   int        `gorm:"column:probe_count"`
	FinalCost    *int       `gorm:"column:final_cost"`
	GuessMap     JSONField  `gorm:"column:guess_map;type:json"`
	ErrorMessage string     `gorm:"column:error_message;type:text"`
	StartedAt    time.Time  `gorm:"column:started_at"`
	EndedAt      *time.Time `gorm:"column:ended_at"`
}

// TableName returns the table name for RunRecord.
func (RunRecord) TableName() string {
	return "run_record"
}

// JSONField is a custom type for handling JSON columns in GORM.
type JSONField []byte

// Value implements driver.Valuer.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

var _ json.Marshaler = JSONField(nil)
