package repository

import (
	"context"
	"errors"

	"talentpay/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrFeeConfigNotFound = errors.New("分账配置不存在")

type FeeConfigRepository struct {
	db *gorm.DB
}

func NewFeeConfigRepository(db *gorm.DB) *FeeConfigRepository {
	return &FeeConfigRepository{db: db}
}

func (r *FeeConfigRepository) Create(ctx context.Context, tx *gorm.DB, cfg *model.FeeDistributionConfig) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(cfg).Error
}

func (r *FeeConfigRepository) List(ctx context.Context) ([]*model.FeeDistributionConfig, error) {
	var configs []*model.FeeDistributionConfig
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&configs).Error
	return configs, err
}

func (r *FeeConfigRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.FeeDistributionConfig{}).Count(&n).Error
	return n, err
}

func (r *FeeConfigRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.FeeDistributionConfig, error) {
	if tx == nil {
		tx = r.db
	}
	var cfg model.FeeDistributionConfig
	err := tx.WithContext(ctx).Where("id = ?", id).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeeConfigNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *FeeConfigRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id string) (*model.FeeDistributionConfig, error) {
	var cfg model.FeeDistributionConfig
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeeConfigNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

// GetActive 当前生效的分账策略
func (r *FeeConfigRepository) GetActive(ctx context.Context, tx *gorm.DB) (*model.FeeDistributionConfig, error) {
	if tx == nil {
		tx = r.db
	}
	var cfg model.FeeDistributionConfig
	err := tx.WithContext(ctx).
		Where("active = ?", true).
		Order("updated_at DESC").
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeeConfigNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

// UpdateRates 修改费率并递增版本号（CAS on version）
func (r *FeeConfigRepository) UpdateRates(ctx context.Context, tx *gorm.DB, id string, version int, systemFee, mentorShare, talentShare decimal.Decimal, updatedBy string) error {
	result := tx.WithContext(ctx).
		Model(&model.FeeDistributionConfig{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"system_fee_rate":   systemFee,
			"mentor_share_rate": mentorShare,
			"talent_share_rate": talentShare,
			"updated_by":        updatedBy,
			"version":           gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

// Activate 切换生效策略：先全部置为未生效，再激活指定策略
// 调用方需先用 GetForUpdate 确认策略存在
func (r *FeeConfigRepository) Activate(ctx context.Context, tx *gorm.DB, id string) error {
	if err := tx.WithContext(ctx).
		Model(&model.FeeDistributionConfig{}).
		Where("active = ? AND id <> ?", true, id).
		Update("active", false).Error; err != nil {
		return err
	}

	return tx.WithContext(ctx).
		Model(&model.FeeDistributionConfig{}).
		Where("id = ?", id).
		Update("active", true).Error
}
