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
	ErrWithdrawalNotFound      = errors.New("提现申请不存在")
	ErrWithdrawalStatusInvalid = errors.New("提现申请状态不合法")
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, tx *gorm.DB, req *model.WithdrawalRequest) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(req).Error
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.WithdrawalRequest, error) {
	if tx == nil {
		tx = r.db
	}
	var req model.WithdrawalRequest
	err := tx.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *WithdrawalRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id string) (*model.WithdrawalRequest, error) {
	var req model.WithdrawalRequest
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &req, nil
}

// UpdateStatus 条件更新状态，不允许自迁移和跳过中间状态
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, fromStatus, toStatus string, extra map[string]interface{}) error {
	if !model.CanWithdrawalTransitionTo(fromStatus, toStatus) {
		return ErrWithdrawalStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := tx.WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrWithdrawalStatusInvalid
	}

	return nil
}

func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	return listWithdrawals(r.db.WithContext(ctx).Model(&model.WithdrawalRequest{}).Where("user_id = ?", userID), page, pageSize)
}

func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status string, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.WithdrawalRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	return listWithdrawals(query, page, pageSize)
}

func listWithdrawals(query *gorm.DB, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	var requests []*model.WithdrawalRequest
	var total int64

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&requests).Error

	return requests, total, err
}

// GetDueApproved 已审批且到达计划打款时间的提现申请
func (r *WithdrawalRepository) GetDueApproved(ctx context.Context, now time.Time, limit int) ([]*model.WithdrawalRequest, error) {
	var requests []*model.WithdrawalRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND (scheduled_at IS NULL OR scheduled_at <= ?)", model.WithdrawalStatusApproved, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&requests).Error
	return requests, err
}
