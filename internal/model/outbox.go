package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 状态迁移事件类型，供通知/展示等外部协作方消费
const (
	EventMilestoneDeposited   = "milestone.deposited"
	EventMilestoneReleased    = "milestone.released"
	EventTeamFundDistributed  = "team_fund.distributed"
	EventWithdrawalRequested  = "withdrawal.requested"
	EventWithdrawalApproved   = "withdrawal.approved"
	EventWithdrawalRejected   = "withdrawal.rejected"
	EventWithdrawalCancelled  = "withdrawal.cancelled"
	EventWithdrawalProcessing = "withdrawal.processing"
	EventWithdrawalCompleted  = "withdrawal.completed"
	EventWithdrawalFailed     = "withdrawal.failed"
)

// OutboxMessage 本地消息表
// 与业务数据在同一个数据库事务内写入，由 OutboxSender 异步投递到 Kafka
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	EventType  string    `gorm:"type:varchar(64);not null" json:"event_type"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
