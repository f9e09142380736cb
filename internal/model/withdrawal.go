package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	WithdrawalStatusPending    = "PENDING"
	WithdrawalStatusApproved   = "APPROVED"
	WithdrawalStatusRejected   = "REJECTED"
	WithdrawalStatusProcessing = "PROCESSING"
	WithdrawalStatusCompleted  = "COMPLETED"
	WithdrawalStatusCancelled  = "CANCELLED"
	WithdrawalStatusFailed     = "FAILED" // 打款渠道回调失败，资金退回
)

// ValidWithdrawalTransitions 提现状态机
//
//	PENDING -> APPROVED -> PROCESSING -> COMPLETED
//	                                  -> FAILED
//	        -> REJECTED
//	        -> CANCELLED
var ValidWithdrawalTransitions = map[string][]string{
	WithdrawalStatusPending:    {WithdrawalStatusApproved, WithdrawalStatusRejected, WithdrawalStatusCancelled},
	WithdrawalStatusApproved:   {WithdrawalStatusProcessing},
	WithdrawalStatusProcessing: {WithdrawalStatusCompleted, WithdrawalStatusFailed},
}

func CanWithdrawalTransitionTo(currentStatus, targetStatus string) bool {
	return canTransition(ValidWithdrawalTransitions, currentStatus, targetStatus)
}

// WithdrawalRequest 提现申请表
// 申请时即扣减余额（预留），驳回/取消/打款失败时追加 REFUND 流水退回
type WithdrawalRequest struct {
	ID                string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID            string     `gorm:"type:varchar(64);index;not null" json:"user_id"`
	WalletID          string     `gorm:"type:varchar(36);index;not null" json:"wallet_id"`
	Amount            int64      `gorm:"not null" json:"amount"`
	Status            string     `gorm:"type:varchar(20);index;not null" json:"status"`
	BankName          string     `gorm:"type:varchar(64);not null" json:"bank_name"`
	BankAccountNumber string     `gorm:"type:varchar(64);not null" json:"bank_account_number"`
	BankAccountHolder string     `gorm:"type:varchar(128);not null" json:"bank_account_holder"`
	AdminNote         string     `gorm:"type:varchar(512)" json:"admin_note"`
	ReviewedBy        string     `gorm:"type:varchar(64)" json:"reviewed_by"`
	PayoutReference   string     `gorm:"type:varchar(128)" json:"payout_reference"`
	TransactionID     string     `gorm:"type:varchar(36);not null" json:"transaction_id"` // 预留时创建的 WITHDRAWAL 流水
	ScheduledAt       *time.Time `gorm:"index" json:"scheduled_at,omitempty"`
	ProcessedAt       *time.Time `json:"processed_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_request"
}

func (w *WithdrawalRequest) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}
