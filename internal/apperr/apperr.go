package apperr

import (
	"errors"
)

// ============================================================================
// 引擎错误分类
// ============================================================================
//
// 所有业务失败都以 *Error 返回给调用方，Kind 决定调用方如何处理：
//   VALIDATION         入参不合法（金额<=0、字段缺失）
//   STATE_CONFLICT     状态机不允许的迁移（重复入账、重复发放、非法迁移）
//   INSUFFICIENT_FUNDS 余额不足（托管余额、钱包余额、组长持有额度）
//   AUTHORIZATION      越权（非组长分配、非本人钱包）
//   POLICY             费率策略不合法、缺少负责人
//   NOT_FOUND          记录不存在
//   UNAVAILABLE        分布式锁获取失败，可重试
//
// 哨兵错误按指针比较，用 fmt.Errorf("...: %w", ErrX) 包装后 errors.Is 仍然有效。
// ============================================================================

type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindStateConflict     Kind = "STATE_CONFLICT"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindAuthorization     Kind = "AUTHORIZATION"
	KindPolicy            Kind = "POLICY"
	KindNotFound          Kind = "NOT_FOUND"
	KindUnavailable       Kind = "UNAVAILABLE"
)

// Error 引擎的类型化错误
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidAmount = newError(KindValidation, "INVALID_AMOUNT", "金额必须为正整数")
	ErrInvalidInput  = newError(KindValidation, "INVALID_INPUT", "参数不合法")

	ErrAlreadyDeposited  = newError(KindStateConflict, "ALREADY_DEPOSITED", "里程碑已入账")
	ErrAlreadyExecuted   = newError(KindStateConflict, "ALREADY_EXECUTED", "发放单已执行")
	ErrInvalidTransition = newError(KindStateConflict, "INVALID_TRANSITION", "状态迁移不合法")
	ErrConcurrentUpdate  = newError(KindStateConflict, "CONCURRENT_UPDATE", "记录已被并发修改，请重试")

	ErrIdempotencyConflict = newError(KindStateConflict, "IDEMPOTENCY_CONFLICT", "幂等键已被参数不同的请求使用")

	ErrInsufficientEscrowBalance = newError(KindInsufficientFunds, "INSUFFICIENT_ESCROW_BALANCE", "托管账户余额不足")
	ErrInsufficientBalance       = newError(KindInsufficientFunds, "INSUFFICIENT_BALANCE", "钱包余额不足")
	ErrExceedsHeldAmount         = newError(KindInsufficientFunds, "EXCEEDS_HELD_AMOUNT", "分配金额超过组长持有金额")

	ErrNotLeader      = newError(KindAuthorization, "NOT_LEADER", "调用方不是该项目的团队组长")
	ErrNotWalletOwner = newError(KindAuthorization, "NOT_WALLET_OWNER", "钱包不属于当前用户")
	ErrForbidden      = newError(KindAuthorization, "FORBIDDEN", "当前角色无权执行该操作")

	ErrInvalidPolicy = newError(KindPolicy, "INVALID_POLICY", "费率必须在 [0,1] 之间且三者之和为 1")
	ErrMissingLeader = newError(KindPolicy, "MISSING_LEADER", "导师组长和人才组长均不能为空")

	ErrMilestoneNotFound    = newError(KindNotFound, "MILESTONE_NOT_FOUND", "里程碑不存在")
	ErrWalletNotFound       = newError(KindNotFound, "WALLET_NOT_FOUND", "钱包不存在")
	ErrDisbursementNotFound = newError(KindNotFound, "DISBURSEMENT_NOT_FOUND", "发放单不存在")
	ErrWithdrawalNotFound   = newError(KindNotFound, "WITHDRAWAL_NOT_FOUND", "提现申请不存在")
	ErrPolicyNotFound       = newError(KindNotFound, "POLICY_NOT_FOUND", "分账配置不存在")

	ErrBusy = newError(KindUnavailable, "BUSY", "系统繁忙，请稍后重试")
)

// As 从错误链中取出类型化错误
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf 返回错误分类，未分类的内部错误返回空串
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}
