package repository

import (
	"context"
	"errors"

	"talentpay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMilestoneNotFound      = errors.New("里程碑不存在")
	ErrMilestoneStatusInvalid = errors.New("里程碑付款状态不合法")
)

type MilestoneRepository struct {
	db *gorm.DB
}

func NewMilestoneRepository(db *gorm.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

func (r *MilestoneRepository) Create(ctx context.Context, tx *gorm.DB, milestone *model.Milestone) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(milestone).Error
}

func (r *MilestoneRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.Milestone, error) {
	if tx == nil {
		tx = r.db
	}
	var milestone model.Milestone
	err := tx.WithContext(ctx).Where("id = ?", id).First(&milestone).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		return nil, err
	}
	return &milestone, nil
}

func (r *MilestoneRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id string) (*model.Milestone, error) {
	var milestone model.Milestone
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&milestone).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		return nil, err
	}
	return &milestone, nil
}

// UpdateStatus 条件更新付款状态：WHERE status = fromStatus，并发下只有一个请求能成功
func (r *MilestoneRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, fromStatus, toStatus string, extra map[string]interface{}) error {
	if !model.CanPaymentTransitionTo(fromStatus, toStatus) {
		return ErrMilestoneStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"payment_status": toStatus,
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := tx.WithContext(ctx).
		Model(&model.Milestone{}).
		Where("id = ? AND payment_status = ?", id, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrMilestoneStatusInvalid
	}

	return nil
}

// UpdateLeaders 同步负责人（只允许在发放前修改）
func (r *MilestoneRepository) UpdateLeaders(ctx context.Context, tx *gorm.DB, id, mentorLeaderID, talentLeaderID string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.Milestone{}).
		Where("id = ? AND payment_status <> ?", id, model.PaymentStatusReleased).
		Updates(map[string]interface{}{
			"mentor_leader_id": mentorLeaderID,
			"talent_leader_id": talentLeaderID,
		}).Error
}

func (r *MilestoneRepository) ListByProject(ctx context.Context, projectID string) ([]*model.Milestone, error) {
	var milestones []*model.Milestone
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&milestones).Error
	return milestones, err
}
