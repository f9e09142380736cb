package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"talentpay/internal/apperr"
	"talentpay/internal/config"
	"talentpay/internal/model"
	"talentpay/internal/repository"

	"gorm.io/gorm"
)

// FeeConfigService 分账策略管理
//
// 任何时刻只有一条策略处于生效状态；每次修改费率版本号 +1，
// 已计算的发放单按 (策略ID, 版本) 快照费率，之后的修改不影响它们
type FeeConfigService struct {
	db            *gorm.DB
	feeConfigRepo *repository.FeeConfigRepository
}

func NewFeeConfigService(db *gorm.DB) *FeeConfigService {
	return &FeeConfigService{
		db:            db,
		feeConfigRepo: repository.NewFeeConfigRepository(db),
	}
}

type CreateFeeConfigRequest struct {
	FeeRates
	Name      string `json:"name" binding:"required"`
	Activate  bool   `json:"activate"`
	CreatedBy string `json:"-"`
}

func (s *FeeConfigService) List(ctx context.Context) ([]*model.FeeDistributionConfig, error) {
	return s.feeConfigRepo.List(ctx)
}

func (s *FeeConfigService) GetActive(ctx context.Context) (*model.FeeDistributionConfig, error) {
	cfg, err := s.feeConfigRepo.GetActive(ctx, nil)
	if err != nil {
		return nil, feeConfigError(err)
	}
	return cfg, nil
}

func (s *FeeConfigService) Create(ctx context.Context, req *CreateFeeConfigRequest) (*model.FeeDistributionConfig, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: 策略名称不能为空", apperr.ErrInvalidInput)
	}
	if err := ValidatePolicy(req.FeeRates); err != nil {
		return nil, err
	}

	cfg := &model.FeeDistributionConfig{
		Name:            name,
		Version:         1,
		SystemFeeRate:   req.FeeRates.SystemFeeRate,
		MentorShareRate: req.FeeRates.MentorShareRate,
		TalentShareRate: req.FeeRates.TalentShareRate,
		UpdatedBy:       req.CreatedBy,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.feeConfigRepo.Create(ctx, tx, cfg); err != nil {
			return fmt.Errorf("创建分账配置失败: %w", err)
		}
		if req.Activate {
			if err := s.feeConfigRepo.Activate(ctx, tx, cfg.ID); err != nil {
				return fmt.Errorf("激活分账配置失败: %w", err)
			}
			cfg.Active = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("创建分账配置", "id", cfg.ID, "name", cfg.Name, "active", cfg.Active)
	return cfg, nil
}

// Update 修改费率，版本号 +1
func (s *FeeConfigService) Update(ctx context.Context, id string, rates FeeRates, updatedBy string) (*model.FeeDistributionConfig, error) {
	if err := ValidatePolicy(rates); err != nil {
		return nil, err
	}

	var updated *model.FeeDistributionConfig
	err := s.db.Transaction(func(tx *gorm.DB) error {
		cfg, err := s.feeConfigRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return feeConfigError(err)
		}

		err = s.feeConfigRepo.UpdateRates(ctx, tx, id, cfg.Version,
			rates.SystemFeeRate, rates.MentorShareRate, rates.TalentShareRate, updatedBy)
		if err != nil {
			if errors.Is(err, repository.ErrOptimisticLock) {
				return apperr.ErrConcurrentUpdate
			}
			return fmt.Errorf("更新分账配置失败: %w", err)
		}

		updated, err = s.feeConfigRepo.GetByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("更新分账配置", "id", id, "version", updated.Version, "updated_by", updatedBy)
	return updated, nil
}

// Activate 激活指定策略，其余策略全部失效
func (s *FeeConfigService) Activate(ctx context.Context, id string) (*model.FeeDistributionConfig, error) {
	var activated *model.FeeDistributionConfig
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.feeConfigRepo.GetForUpdate(ctx, tx, id); err != nil {
			return feeConfigError(err)
		}
		if err := s.feeConfigRepo.Activate(ctx, tx, id); err != nil {
			return fmt.Errorf("激活分账配置失败: %w", err)
		}
		var err error
		activated, err = s.feeConfigRepo.GetByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("激活分账配置", "id", id, "name", activated.Name)
	return activated, nil
}

// EnsureDefault 数据库里还没有任何策略时，写入配置文件中的默认策略并激活
func (s *FeeConfigService) EnsureDefault(ctx context.Context, policy config.FeePolicyConfig) error {
	n, err := s.feeConfigRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("查询分账配置失败: %w", err)
	}
	if n > 0 {
		return nil
	}

	rates, err := ParseRates(policy.SystemFeeRate, policy.MentorShareRate, policy.TalentShareRate)
	if err != nil {
		return err
	}
	_, err = s.Create(ctx, &CreateFeeConfigRequest{
		Name:      policy.Name,
		FeeRates:  rates,
		Activate:  true,
		CreatedBy: "system",
	})
	return err
}

func feeConfigError(err error) error {
	if errors.Is(err, repository.ErrFeeConfigNotFound) {
		return apperr.ErrPolicyNotFound
	}
	return fmt.Errorf("查询分账配置失败: %w", err)
}
