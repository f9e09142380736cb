package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"talentpay/internal/apperr"
	"talentpay/internal/config"
	"talentpay/internal/infrastructure/lock"
	"talentpay/internal/model"
	"talentpay/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ============================================================================
// 提现流程
// ============================================================================
//
//   PENDING -> APPROVED -> PROCESSING -> COMPLETED
//                                     -> FAILED     (退回)
//           -> REJECTED                             (退回)
//           -> CANCELLED                            (退回)
//
// 申请时立即扣减钱包余额并记一条 PENDING 的 WITHDRAWAL 流水（预留），
// 这样同一笔钱不可能被两次提现。
// 驳回/取消/打款失败：WITHDRAWAL 流水置为 FAILED，再追加一条 REFUND 流水把钱退回。
// 打款成功：WITHDRAWAL 流水置为 COMPLETED。
// ============================================================================

type WithdrawalService struct {
	db             *gorm.DB
	locker         *lock.Locker
	cfg            *config.Config
	withdrawalRepo *repository.WithdrawalRepository
	outboxRepo     *repository.OutboxRepository
	ledger         ledger
	now            func() time.Time
}

func NewWithdrawalService(db *gorm.DB, locker *lock.Locker, cfg *config.Config) *WithdrawalService {
	return &WithdrawalService{
		db:             db,
		locker:         locker,
		cfg:            cfg,
		withdrawalRepo: repository.NewWithdrawalRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db, cfg.Kafka.Topic.PaymentEvents),
		ledger:         newLedger(db),
		now:            time.Now,
	}
}

type BankInfo struct {
	BankName          string `json:"bank_name"`
	BankAccountNumber string `json:"bank_account_number"`
	BankAccountHolder string `json:"bank_account_holder"`
}

func (b BankInfo) complete() bool {
	return strings.TrimSpace(b.BankName) != "" &&
		strings.TrimSpace(b.BankAccountNumber) != "" &&
		strings.TrimSpace(b.BankAccountHolder) != ""
}

type WithdrawRequest struct {
	WalletID string   `json:"wallet_id" binding:"required"`
	Amount   int64    `json:"amount" binding:"required"`
	BankInfo BankInfo `json:"bank_info"`
}

type PayoutConfirmation struct {
	PayoutReference string `json:"payout_reference"`
	Success         bool   `json:"success"`
	Note            string `json:"note"`
}

type WithdrawalListResponse struct {
	Total       int64                      `json:"total"`
	Page        int                        `json:"page"`
	PageSize    int                        `json:"page_size"`
	Withdrawals []*model.WithdrawalRequest `json:"withdrawals"`
}

// RequestWithdrawal 用户申请提现，申请成功即预留资金
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, userID string, req *WithdrawRequest) (*model.WithdrawalRequest, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(req.WalletID) == "" {
		return nil, fmt.Errorf("%w: 用户和钱包不能为空", apperr.ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return nil, apperr.ErrInvalidAmount
	}
	if !req.BankInfo.complete() {
		return nil, fmt.Errorf("%w: 银行信息不完整", apperr.ErrInvalidInput)
	}

	withdrawal := &model.WithdrawalRequest{
		ID:                uuid.NewString(),
		UserID:            userID,
		WalletID:          req.WalletID,
		Amount:            req.Amount,
		Status:            model.WithdrawalStatusPending,
		BankName:          strings.TrimSpace(req.BankInfo.BankName),
		BankAccountNumber: strings.TrimSpace(req.BankInfo.BankAccountNumber),
		BankAccountHolder: strings.TrimSpace(req.BankInfo.BankAccountHolder),
	}

	err := s.locker.WithLock(ctx, lock.WalletKey(req.WalletID), func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			wallet, err := s.ledger.walletRepo.GetByID(ctx, tx, req.WalletID)
			if err != nil {
				return walletError(err)
			}
			if wallet.OwnerID != userID {
				return apperr.ErrNotWalletOwner
			}
			if !model.IsWithdrawable(wallet.OwnerType) {
				return fmt.Errorf("%w: %s 钱包不能提现", apperr.ErrForbidden, wallet.OwnerType)
			}
			// 余额不足优先于最低金额校验
			if wallet.Balance < req.Amount {
				return fmt.Errorf("%w: 余额 %d，申请提现 %d", apperr.ErrInsufficientBalance, wallet.Balance, req.Amount)
			}
			if req.Amount < s.cfg.Business.MinWithdrawalAmount {
				return fmt.Errorf("%w: 单笔提现不能低于 %d", apperr.ErrInvalidAmount, s.cfg.Business.MinWithdrawalAmount)
			}

			if _, err := s.ledger.debit(ctx, tx, wallet.ID, req.Amount, apperr.ErrInsufficientBalance); err != nil {
				return err
			}

			trans := &model.Transaction{
				Type:           model.TransactionTypeWithdrawal,
				SourceWalletID: model.StringPtr(wallet.ID),
				Amount:         req.Amount,
				Status:         model.TransactionStatusPending,
				WithdrawalID:   model.StringPtr(withdrawal.ID),
				IdempotencyKey: "withdrawal:" + withdrawal.ID,
				Remark:         fmt.Sprintf("提现-%s", withdrawal.ID),
			}
			if err := s.ledger.record(ctx, tx, trans); err != nil {
				return err
			}

			withdrawal.TransactionID = trans.ID
			if err := s.withdrawalRepo.Create(ctx, tx, withdrawal); err != nil {
				return fmt.Errorf("创建提现申请失败: %w", err)
			}

			return s.enqueue(ctx, tx, model.EventWithdrawalRequested, withdrawal)
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("提现申请成功", "withdrawal_id", withdrawal.ID, "user_id", userID, "amount", req.Amount)
	return s.Get(ctx, withdrawal.ID)
}

// Approve 管理员审批通过，scheduledAt 为空表示立即打款
func (s *WithdrawalService) Approve(ctx context.Context, id, adminID string, scheduledAt *time.Time) (*model.WithdrawalRequest, error) {
	at := s.now().UTC()
	if scheduledAt != nil {
		at = scheduledAt.UTC()
	}
	req, _, err := s.transition(ctx, id, model.WithdrawalStatusApproved, model.EventWithdrawalApproved,
		func(tx *gorm.DB, w *model.WithdrawalRequest) (map[string]interface{}, error) {
			return map[string]interface{}{
				"reviewed_by":  adminID,
				"scheduled_at": at,
			}, nil
		})
	return req, err
}

// Reject 管理员驳回，必须填写原因，资金退回钱包
func (s *WithdrawalService) Reject(ctx context.Context, id, adminID, note string) (*model.WithdrawalRequest, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, fmt.Errorf("%w: 驳回原因不能为空", apperr.ErrInvalidInput)
	}
	req, _, err := s.transition(ctx, id, model.WithdrawalStatusRejected, model.EventWithdrawalRejected,
		func(tx *gorm.DB, w *model.WithdrawalRequest) (map[string]interface{}, error) {
			if err := s.reverse(ctx, tx, w, "提现驳回"); err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"reviewed_by": adminID,
				"admin_note":  note,
			}, nil
		})
	return req, err
}

// Cancel 用户撤销自己尚未审核的提现申请
func (s *WithdrawalService) Cancel(ctx context.Context, id, userID string) (*model.WithdrawalRequest, error) {
	req, _, err := s.transition(ctx, id, model.WithdrawalStatusCancelled, model.EventWithdrawalCancelled,
		func(tx *gorm.DB, w *model.WithdrawalRequest) (map[string]interface{}, error) {
			if w.UserID != userID {
				return nil, apperr.ErrNotWalletOwner
			}
			if err := s.reverse(ctx, tx, w, "提现撤销"); err != nil {
				return nil, err
			}
			return nil, nil
		})
	return req, err
}

// MarkProcessing 已提交打款渠道
func (s *WithdrawalService) MarkProcessing(ctx context.Context, id string) (*model.WithdrawalRequest, error) {
	req, _, err := s.transition(ctx, id, model.WithdrawalStatusProcessing, model.EventWithdrawalProcessing,
		func(tx *gorm.DB, w *model.WithdrawalRequest) (map[string]interface{}, error) {
			return nil, nil
		})
	return req, err
}

// ConfirmPayout 打款渠道回调
// 回调可能重复投递：已经是同一终态时直接返回，不报错
func (s *WithdrawalService) ConfirmPayout(ctx context.Context, id string, confirmation *PayoutConfirmation) (*model.WithdrawalRequest, bool, error) {
	target, event := model.WithdrawalStatusCompleted, model.EventWithdrawalCompleted
	if !confirmation.Success {
		target, event = model.WithdrawalStatusFailed, model.EventWithdrawalFailed
	}

	return s.transition(ctx, id, target, event,
		func(tx *gorm.DB, w *model.WithdrawalRequest) (map[string]interface{}, error) {
			if confirmation.Success {
				if err := s.ledger.transactionRepo.UpdateStatus(ctx, tx, w.TransactionID, model.TransactionStatusCompleted); err != nil {
					return nil, fmt.Errorf("更新提现流水失败: %w", err)
				}
			} else if err := s.reverse(ctx, tx, w, "打款失败退回"); err != nil {
				return nil, err
			}

			extra := map[string]interface{}{
				"payout_reference": confirmation.PayoutReference,
				"processed_at":     s.now().UTC(),
			}
			if confirmation.Note != "" {
				extra["admin_note"] = confirmation.Note
			}
			return extra, nil
		})
}

// transition 锁定提现申请并迁移到 target；apply 在同一事务内执行附带的资金动作
// 当前状态已经是 target 且属于回调类终态时视为重放，返回 replayed = true
func (s *WithdrawalService) transition(
	ctx context.Context,
	id, target, event string,
	apply func(tx *gorm.DB, w *model.WithdrawalRequest) (map[string]interface{}, error),
) (*model.WithdrawalRequest, bool, error) {
	replayed := false

	err := s.locker.WithLock(ctx, lock.WithdrawalKey(id), func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			w, err := s.withdrawalRepo.GetForUpdate(ctx, tx, id)
			if err != nil {
				return withdrawalError(err)
			}

			if w.Status == target && isPayoutOutcome(target) {
				replayed = true
				return nil
			}
			if !model.CanWithdrawalTransitionTo(w.Status, target) {
				return fmt.Errorf("%w: 提现申请当前状态 %s，不能变更为 %s", apperr.ErrInvalidTransition, w.Status, target)
			}

			extra, err := apply(tx, w)
			if err != nil {
				return err
			}

			if err := s.withdrawalRepo.UpdateStatus(ctx, tx, id, w.Status, target, extra); err != nil {
				if errors.Is(err, repository.ErrWithdrawalStatusInvalid) {
					return apperr.ErrInvalidTransition
				}
				return fmt.Errorf("更新提现状态失败: %w", err)
			}

			w.Status = target
			return s.enqueue(ctx, tx, event, w)
		})
	})
	if err != nil {
		return nil, false, err
	}

	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !replayed {
		slog.Info("提现状态变更", "withdrawal_id", id, "status", target)
	}
	return req, replayed, nil
}

func isPayoutOutcome(status string) bool {
	return status == model.WithdrawalStatusCompleted || status == model.WithdrawalStatusFailed
}

// reverse 冲正：原 WITHDRAWAL 流水置为 FAILED，追加 REFUND 流水把钱退回钱包
func (s *WithdrawalService) reverse(ctx context.Context, tx *gorm.DB, w *model.WithdrawalRequest, reason string) error {
	if err := s.ledger.transactionRepo.UpdateStatus(ctx, tx, w.TransactionID, model.TransactionStatusFailed); err != nil {
		return fmt.Errorf("更新提现流水失败: %w", err)
	}
	if err := s.ledger.credit(ctx, tx, w.WalletID, w.Amount); err != nil {
		return err
	}
	return s.ledger.record(ctx, tx, &model.Transaction{
		Type:                model.TransactionTypeRefund,
		DestinationWalletID: model.StringPtr(w.WalletID),
		Amount:              w.Amount,
		Status:              model.TransactionStatusCompleted,
		WithdrawalID:        model.StringPtr(w.ID),
		IdempotencyKey:      "withdrawal-refund:" + w.ID,
		Remark:              fmt.Sprintf("%s-%s", reason, w.ID),
	})
}

func (s *WithdrawalService) enqueue(ctx context.Context, tx *gorm.DB, event string, w *model.WithdrawalRequest) error {
	err := s.outboxRepo.Enqueue(ctx, tx, event, w.ID, map[string]interface{}{
		"withdrawal_id": w.ID,
		"user_id":       w.UserID,
		"wallet_id":     w.WalletID,
		"amount":        w.Amount,
		"status":        w.Status,
	})
	if err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}

func (s *WithdrawalService) Get(ctx context.Context, id string) (*model.WithdrawalRequest, error) {
	w, err := s.withdrawalRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, withdrawalError(err)
	}
	return w, nil
}

// ListTransactions 提现申请关联的全部流水：预留的 WITHDRAWAL 以及退回时的 REFUND
func (s *WithdrawalService) ListTransactions(ctx context.Context, id string) ([]*model.Transaction, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	list, err := s.ledger.transactionRepo.ListByWithdrawal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("查询提现流水失败: %w", err)
	}
	return list, nil
}

func (s *WithdrawalService) ListByUser(ctx context.Context, userID string, page, pageSize int) (*WithdrawalListResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	list, total, err := s.withdrawalRepo.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("查询提现申请失败: %w", err)
	}
	return &WithdrawalListResponse{Total: total, Page: page, PageSize: pageSize, Withdrawals: list}, nil
}

func (s *WithdrawalService) ListByStatus(ctx context.Context, status string, page, pageSize int) (*WithdrawalListResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	list, total, err := s.withdrawalRepo.ListByStatus(ctx, status, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("查询提现申请失败: %w", err)
	}
	return &WithdrawalListResponse{Total: total, Page: page, PageSize: pageSize, Withdrawals: list}, nil
}

// DueForPayout 已审批且到达计划打款时间的提现申请
func (s *WithdrawalService) DueForPayout(ctx context.Context, limit int) ([]*model.WithdrawalRequest, error) {
	return s.withdrawalRepo.GetDueApproved(ctx, s.now().UTC(), limit)
}

func withdrawalError(err error) error {
	if errors.Is(err, repository.ErrWithdrawalNotFound) {
		return apperr.ErrWithdrawalNotFound
	}
	return fmt.Errorf("查询提现申请失败: %w", err)
}
