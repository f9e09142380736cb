package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ============================================================================
// 交易类型 / 状态常量
// ============================================================================

const (
	TransactionTypeDeposit              = "DEPOSIT"               // 企业入账到托管
	TransactionTypeMilestoneRelease     = "MILESTONE_RELEASE"     // 里程碑发放
	TransactionTypeInternalDistribution = "INTERNAL_DISTRIBUTION" // 组长分配给成员
	TransactionTypeWithdrawal           = "WITHDRAWAL"            // 提现
	TransactionTypeRefund               = "REFUND"                // 冲正（提现驳回/取消/失败退回）
)

const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
)

// ============================================================================
// 账本流水实体
// ============================================================================

// Transaction 账本流水表
//
// 【重要】流水表设计原则：
// 1. 只追加：COMPLETED 的流水永不修改、永不删除，更正一律追加冲正流水
// 2. 只有 PENDING 的流水允许迁移到 COMPLETED / FAILED（提现等待打款结果）
// 3. 外部入账 source 为空，外部出账 destination 为空
// 4. IdempotencyKey 唯一，数据库层面兜底防止重复记账
type Transaction struct {
	ID                  string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	TransactionNo       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（对账用）
	Type                string    `gorm:"type:varchar(32);index;not null" json:"type"`
	SourceWalletID      *string   `gorm:"type:varchar(36);index" json:"source_wallet_id"`
	DestinationWalletID *string   `gorm:"type:varchar(36);index" json:"destination_wallet_id"`
	Amount              int64     `gorm:"not null" json:"amount"` // 恒为正数，方向由 source/destination 决定
	Status              string    `gorm:"type:varchar(20);not null" json:"status"`
	MilestoneID         *string   `gorm:"type:varchar(36);index" json:"milestone_id,omitempty"`
	DisbursementID      *string   `gorm:"type:varchar(36);index" json:"disbursement_id,omitempty"`
	WithdrawalID        *string   `gorm:"type:varchar(36);index" json:"withdrawal_id,omitempty"`
	IdempotencyKey      string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"idempotency_key"`
	Remark              string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt           time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "ledger_transaction"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// StringPtr 便于给可空外键赋值
func StringPtr(s string) *string {
	return &s
}
