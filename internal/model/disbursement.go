package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DisbursementRecord 里程碑发放单
//
// ID 由 (里程碑ID, 策略ID, 策略版本) 确定性生成，预览、计算、执行三步共用同一个ID。
// ExecutedAt 为空表示"已计算未执行"；执行时用 executed_at IS NULL 做 CAS，保证只执行一次。
// 不变量：SystemFee + MentorShare + TeamShare == TotalAmount
type DisbursementRecord struct {
	ID              string          `gorm:"type:varchar(36);primaryKey" json:"disbursement_id"`
	MilestoneID     string          `gorm:"type:varchar(36);index;not null" json:"milestone_id"`
	ProjectID       string          `gorm:"type:varchar(36);index;not null" json:"project_id"`
	PolicyID        string          `gorm:"type:varchar(36);not null" json:"policy_id"`
	PolicyVersion   int             `gorm:"not null" json:"policy_version"`
	SystemFeeRate   decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"system_fee_rate"`
	MentorShareRate decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"mentor_share_rate"`
	TalentShareRate decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"talent_share_rate"`
	TotalAmount     int64           `gorm:"not null" json:"total_amount"`
	SystemFee       int64           `gorm:"not null" json:"system_fee"`
	MentorShare     int64           `gorm:"not null" json:"mentor_share"`
	TeamShare       int64           `gorm:"not null" json:"team_share"`
	MentorLeaderID  string          `gorm:"type:varchar(64);not null" json:"mentor_leader_id"`
	TalentLeaderID  string          `gorm:"type:varchar(64);not null" json:"talent_leader_id"`
	ComputedAt      time.Time       `gorm:"not null" json:"computed_at"`
	ExecutedAt      *time.Time      `gorm:"index" json:"executed_at,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DisbursementRecord) TableName() string {
	return "disbursement_record"
}

func (d *DisbursementRecord) Executed() bool {
	return d.ExecutedAt != nil
}
