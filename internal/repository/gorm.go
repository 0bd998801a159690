package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// GormHistoryRepository implements HistoryRepository using GORM.
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository creates a new GormHistoryRepository.
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

// Insert creates a new pending RunRecord and sets its ID.
func (r *GormHistoryRepository) Insert(ctx context.Context, record *RunRecord) error {
	if record.Outcome == "" {
		record.Outcome = OutcomePending
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to insert run record: %w", err)
	}
	return nil
}

// UpdateOutcome finalizes a RunRecord with its outcome, guess map and
// error message.
func (r *GormHistoryRepository) UpdateOutcome(ctx context.Context, id int64, outcome string, guessMap []byte, errMsg string) error {
	updates := map[string]interface{}{
		"outcome":       outcome,
		"error_message": errMsg,
	}
	if guessMap != nil {
		updates["guess_map"] = JSONField(guessMap)
	}

	result := r.db.WithContext(ctx).
		Model(&RunRecord{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update run record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run record not found: %d", id)
	}
	return nil
}

// ListByProblem returns every RunRecord for a problem, most recent first.
func (r *GormHistoryRepository) ListByProblem(ctx context.Context, problem string) ([]*RunRecord, error) {
	var records []*RunRecord
	err := r.db.WithContext(ctx).
		Where("problem = ?", problem).
		Order("started_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query run records: %w", err)
	}
	return records, nil
}

// ListPending returns up to limit RunRecords with outcome=pending.
func (r *GormHistoryRepository) ListPending(ctx context.Context, limit int) ([]*RunRecord, error) {
	var records []*RunRecord
	err := r.db.WithContext(ctx).
		Where("outcome = ?", OutcomePending).
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query pending run records: %w", err)
	}
	return records, nil
}

// getRunRecord reads a single RunRecord by id.
func (r *GormHistoryRepository) getRunRecord(ctx context.Context, id int64) (*RunRecord, error) {
	var record RunRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run record not found: %d", id)
		}
		return nil, err
	}
	return &record, nil
}
