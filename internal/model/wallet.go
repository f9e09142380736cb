package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ============================================================================
// 钱包归属类型
// ============================================================================

const (
	WalletOwnerCompanyEscrow = "COMPANY_ESCROW" // 项目托管账户，owner_id = 项目ID
	WalletOwnerSystem        = "SYSTEM"         // 平台系统账户，owner_id = SystemOwnerID
	WalletOwnerMentor        = "MENTOR"         // 导师钱包，owner_id = 用户ID
	WalletOwnerTalentHolding = "TALENT_HOLDING" // 组长代持账户，owner_id = 项目ID
	WalletOwnerMember        = "MEMBER"         // 成员钱包，owner_id = 用户ID
)

// SystemOwnerID 平台系统账户唯一的 owner_id
const SystemOwnerID = "platform"

// IsWithdrawable 只有个人钱包可以申请提现，托管/代持/系统账户不行
func IsWithdrawable(ownerType string) bool {
	return ownerType == WalletOwnerMentor || ownerType == WalletOwnerMember
}

// Wallet 钱包表
// 余额以最小货币单位存储，永远不为负；每次变动都必须有反向的另一笔变动（复式记账）
type Wallet struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerType string    `gorm:"type:varchar(20);not null;uniqueIndex:uk_wallet_owner" json:"owner_type"`
	OwnerID   string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_wallet_owner" json:"owner_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	Version   int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallet"
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}
