package repository

import (
	"context"
	"errors"
	"time"

	"talentpay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrDisbursementNotFound = errors.New("发放单不存在")
	ErrDisbursementExecuted = errors.New("发放单已执行")
)

type DisbursementRepository struct {
	db *gorm.DB
}

func NewDisbursementRepository(db *gorm.DB) *DisbursementRepository {
	return &DisbursementRepository{db: db}
}

func (r *DisbursementRepository) Create(ctx context.Context, tx *gorm.DB, record *model.DisbursementRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(record).Error
}

func (r *DisbursementRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.DisbursementRecord, error) {
	if tx == nil {
		tx = r.db
	}
	var record model.DisbursementRecord
	err := tx.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDisbursementNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *DisbursementRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id string) (*model.DisbursementRecord, error) {
	var record model.DisbursementRecord
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDisbursementNotFound
		}
		return nil, err
	}
	return &record, nil
}

// RefreshComputed 重新计算未执行的发放单（负责人变更等），已执行的发放单不可修改
func (r *DisbursementRepository) RefreshComputed(ctx context.Context, tx *gorm.DB, record *model.DisbursementRecord) error {
	result := tx.WithContext(ctx).
		Model(&model.DisbursementRecord{}).
		Where("id = ? AND executed_at IS NULL", record.ID).
		Updates(map[string]interface{}{
			"total_amount":     record.TotalAmount,
			"system_fee":       record.SystemFee,
			"mentor_share":     record.MentorShare,
			"team_share":       record.TeamShare,
			"mentor_leader_id": record.MentorLeaderID,
			"talent_leader_id": record.TalentLeaderID,
			"computed_at":      record.ComputedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDisbursementExecuted
	}
	return nil
}

// MarkExecuted CAS：executed_at IS NULL 才能标记，保证同一发放单只执行一次
func (r *DisbursementRepository) MarkExecuted(ctx context.Context, tx *gorm.DB, id string, executedAt time.Time) error {
	result := tx.WithContext(ctx).
		Model(&model.DisbursementRecord{}).
		Where("id = ? AND executed_at IS NULL", id).
		Update("executed_at", executedAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDisbursementExecuted
	}
	return nil
}

func (r *DisbursementRepository) ListByMilestone(ctx context.Context, milestoneID string) ([]*model.DisbursementRecord, error) {
	var records []*model.DisbursementRecord
	err := r.db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		Order("computed_at DESC").
		Find(&records).Error
	return records, err
}
