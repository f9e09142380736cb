package model

import (
	"time"
)

const (
	PaymentStatusPendingDeposit = "PENDING_DEPOSIT"
	PaymentStatusDeposited      = "DEPOSITED"
	PaymentStatusReleased       = "RELEASED"
)

// ValidPaymentTransitions 里程碑付款状态只能前进，不能回退，也不能跳过
var ValidPaymentTransitions = map[string][]string{
	PaymentStatusPendingDeposit: {PaymentStatusDeposited},
	PaymentStatusDeposited:      {PaymentStatusReleased},
}

func CanPaymentTransitionTo(currentStatus, targetStatus string) bool {
	return canTransition(ValidPaymentTransitions, currentStatus, targetStatus)
}

func canTransition(table map[string][]string, currentStatus, targetStatus string) bool {
	allowedStatuses, exists := table[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Milestone 里程碑付款表
// 项目/里程碑的增删改由外部系统负责，这里只保存引擎需要的身份和付款状态
type Milestone struct {
	ID                    string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProjectID             string     `gorm:"type:varchar(36);index;not null" json:"project_id"`
	Title                 string     `gorm:"type:varchar(128)" json:"title"`
	Budget                int64      `gorm:"not null" json:"budget"`
	PaymentStatus         string     `gorm:"type:varchar(20);index;not null" json:"payment_status"`
	MentorLeaderID        string     `gorm:"type:varchar(64)" json:"mentor_leader_id"`
	TalentLeaderID        string     `gorm:"type:varchar(64)" json:"talent_leader_id"`
	DepositConfirmationID *string    `gorm:"type:varchar(128);uniqueIndex" json:"deposit_confirmation_id,omitempty"`
	DepositTransactionID  *string    `gorm:"type:varchar(36)" json:"deposit_transaction_id,omitempty"`
	DepositedAt           *time.Time `json:"deposited_at,omitempty"`
	ReleasedAt            *time.Time `json:"released_at,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Milestone) TableName() string {
	return "milestone"
}
