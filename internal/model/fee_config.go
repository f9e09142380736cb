package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FeeDistributionConfig 分账策略表
//
// 每次修改费率 Version+1；发放单会快照当时的 (ID, Version, 费率)，
// 之后再改策略也不会回溯影响已计算/已执行的发放单。
// 同一时刻只有一个 Active 策略。
type FeeDistributionConfig struct {
	ID              string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name            string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	Version         int             `gorm:"not null;default:1" json:"version"`
	SystemFeeRate   decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"system_fee_rate"`
	MentorShareRate decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"mentor_share_rate"`
	TalentShareRate decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"talent_share_rate"`
	Active          bool            `gorm:"index;not null;default:false" json:"active"`
	UpdatedBy       string          `gorm:"type:varchar(64)" json:"updated_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FeeDistributionConfig) TableName() string {
	return "fee_distribution_config"
}

func (c *FeeDistributionConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
