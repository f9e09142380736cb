package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TeamFundEntryReceived    = "RECEIVED"    // 里程碑发放，团队份额进入组长代持账户
	TeamFundEntryDistributed = "DISTRIBUTED" // 组长分配给成员
)

// TeamFundEntry 团队资金台账
//
// 只追加。组长持有金额 = sum(RECEIVED) - sum(DISTRIBUTED)，
// 每次都从台账实时聚合，不单独存一个可变计数器，避免漂移。
type TeamFundEntry struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProjectID      string    `gorm:"type:varchar(36);index;not null" json:"project_id"`
	LeaderID       string    `gorm:"type:varchar(64);not null" json:"leader_id"`
	EntryType      string    `gorm:"type:varchar(20);not null" json:"entry_type"`
	Amount         int64     `gorm:"not null" json:"amount"`
	RecipientID    *string   `gorm:"type:varchar(64)" json:"recipient_id,omitempty"`
	DisbursementID *string   `gorm:"type:varchar(36)" json:"disbursement_id,omitempty"`
	TransactionID  *string   `gorm:"type:varchar(36)" json:"transaction_id,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (TeamFundEntry) TableName() string {
	return "team_fund_entry"
}

func (e *TeamFundEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
