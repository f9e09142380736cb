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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================================
// 里程碑付款状态机
// ============================================================================
//
//   PENDING_DEPOSIT --入账--> DEPOSITED --执行发放--> RELEASED
//
// 入账：企业付款确认后，预算进入项目托管账户
// 预览：按当前生效策略试算，不落库
// 计算：落库一张发放单（已计算未执行），ID 由 (里程碑, 策略, 版本) 确定
// 执行：托管账户扣款，系统/导师组长/人才组长代持账户入账，一个数据库事务完成
//
// 执行发放的防重：
//   1. Redis 锁（发放单维度）  挡住绝大部分并发
//   2. 发放单 FOR UPDATE      已执行直接返回原结果
//   3. executed_at IS NULL CAS + 流水幂等键唯一索引  最终兜底
// ============================================================================

// disbursementNamespace 生成发放单ID的 uuid v5 命名空间
var disbursementNamespace = uuid.MustParse("6f1c2a9e-3b5d-4c8e-9a7f-2d4b6e8c0a13")

// DisbursementID 同一里程碑在同一策略版本下的发放单ID固定
func DisbursementID(milestoneID, policyID string, policyVersion int) string {
	name := fmt.Sprintf("%s:%s:%d", milestoneID, policyID, policyVersion)
	return uuid.NewSHA1(disbursementNamespace, []byte(name)).String()
}

type MilestoneService struct {
	db               *gorm.DB
	locker           *lock.Locker
	milestoneRepo    *repository.MilestoneRepository
	disbursementRepo *repository.DisbursementRepository
	feeConfigRepo    *repository.FeeConfigRepository
	teamFundRepo     *repository.TeamFundRepository
	outboxRepo       *repository.OutboxRepository
	ledger           ledger
	now              func() time.Time
}

func NewMilestoneService(db *gorm.DB, locker *lock.Locker, cfg *config.Config) *MilestoneService {
	return &MilestoneService{
		db:               db,
		locker:           locker,
		milestoneRepo:    repository.NewMilestoneRepository(db),
		disbursementRepo: repository.NewDisbursementRepository(db),
		feeConfigRepo:    repository.NewFeeConfigRepository(db),
		teamFundRepo:     repository.NewTeamFundRepository(db),
		outboxRepo:       repository.NewOutboxRepository(db, cfg.Kafka.Topic.PaymentEvents),
		ledger:           newLedger(db),
		now:              time.Now,
	}
}

// ============================================================================
// 里程碑同步
// ============================================================================

type RegisterMilestoneRequest struct {
	ID             string `json:"id" binding:"required"`
	ProjectID      string `json:"project_id" binding:"required"`
	Title          string `json:"title"`
	Budget         int64  `json:"budget" binding:"required"`
	MentorLeaderID string `json:"mentor_leader_id"`
	TalentLeaderID string `json:"talent_leader_id"`
}

// RegisterMilestone 项目系统同步里程碑，按 ID 幂等
// 已存在时只同步负责人（发放后不再变更），项目和预算不允许修改
func (s *MilestoneService) RegisterMilestone(ctx context.Context, req *RegisterMilestoneRequest) (*model.Milestone, error) {
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.ProjectID) == "" {
		return nil, fmt.Errorf("%w: 里程碑ID和项目ID不能为空", apperr.ErrInvalidInput)
	}
	if req.Budget <= 0 {
		return nil, apperr.ErrInvalidAmount
	}

	existing, err := s.milestoneRepo.GetByID(ctx, nil, req.ID)
	if err == nil {
		return s.syncExisting(ctx, existing, req)
	}
	if !errors.Is(err, repository.ErrMilestoneNotFound) {
		return nil, fmt.Errorf("查询里程碑失败: %w", err)
	}

	milestone := &model.Milestone{
		ID:             req.ID,
		ProjectID:      req.ProjectID,
		Title:          req.Title,
		Budget:         req.Budget,
		PaymentStatus:  model.PaymentStatusPendingDeposit,
		MentorLeaderID: req.MentorLeaderID,
		TalentLeaderID: req.TalentLeaderID,
	}
	if err := s.milestoneRepo.Create(ctx, nil, milestone); err != nil {
		// 并发同步同一里程碑，主键冲突后按已存在处理
		if existing, getErr := s.milestoneRepo.GetByID(ctx, nil, req.ID); getErr == nil {
			return s.syncExisting(ctx, existing, req)
		}
		return nil, fmt.Errorf("创建里程碑失败: %w", err)
	}

	slog.Info("同步里程碑", "milestone_id", milestone.ID, "project_id", milestone.ProjectID, "budget", milestone.Budget)
	return milestone, nil
}

func (s *MilestoneService) syncExisting(ctx context.Context, m *model.Milestone, req *RegisterMilestoneRequest) (*model.Milestone, error) {
	if m.ProjectID != req.ProjectID || m.Budget != req.Budget {
		return nil, fmt.Errorf("%w: 里程碑 %s 已存在且项目或预算不一致", apperr.ErrInvalidInput, m.ID)
	}
	if m.PaymentStatus == model.PaymentStatusReleased {
		return m, nil
	}
	if m.MentorLeaderID == req.MentorLeaderID && m.TalentLeaderID == req.TalentLeaderID {
		return m, nil
	}
	if err := s.milestoneRepo.UpdateLeaders(ctx, nil, m.ID, req.MentorLeaderID, req.TalentLeaderID); err != nil {
		return nil, fmt.Errorf("更新负责人失败: %w", err)
	}
	return s.GetMilestone(ctx, m.ID)
}

func (s *MilestoneService) GetMilestone(ctx context.Context, milestoneID string) (*model.Milestone, error) {
	m, err := s.milestoneRepo.GetByID(ctx, nil, milestoneID)
	if err != nil {
		return nil, milestoneError(err)
	}
	return m, nil
}

// ListProjectMilestones 项目下全部里程碑，按创建时间排序
func (s *MilestoneService) ListProjectMilestones(ctx context.Context, projectID string) ([]*model.Milestone, error) {
	milestones, err := s.milestoneRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("查询里程碑失败: %w", err)
	}
	return milestones, nil
}

// ============================================================================
// 入账
// ============================================================================

type DepositRequest struct {
	ConfirmationID string `json:"confirmation_id" binding:"required"`
	Amount         int64  `json:"amount" binding:"required"`
}

type DepositResponse struct {
	Milestone      *model.Milestone   `json:"milestone"`
	Transaction    *model.Transaction `json:"transaction"`
	EscrowWalletID string             `json:"escrow_wallet_id"`
	Replayed       bool               `json:"replayed"`
}

// Deposit 企业付款确认后入账到项目托管账户
// 同一确认号重复调用返回原结果；已入账后换确认号再入账返回 ErrAlreadyDeposited
func (s *MilestoneService) Deposit(ctx context.Context, milestoneID string, req *DepositRequest) (*DepositResponse, error) {
	confirmationID := strings.TrimSpace(req.ConfirmationID)
	if confirmationID == "" {
		return nil, fmt.Errorf("%w: 付款确认号不能为空", apperr.ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return nil, apperr.ErrInvalidAmount
	}

	idempotencyKey := "deposit:" + confirmationID
	resp := &DepositResponse{}

	err := s.locker.WithLock(ctx, lock.MilestoneKey(milestoneID), func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			m, err := s.milestoneRepo.GetForUpdate(ctx, tx, milestoneID)
			if err != nil {
				return milestoneError(err)
			}

			if m.PaymentStatus != model.PaymentStatusPendingDeposit {
				if m.DepositConfirmationID == nil || *m.DepositConfirmationID != confirmationID {
					return apperr.ErrAlreadyDeposited
				}
				trans, err := s.ledger.transactionRepo.GetByIdempotencyKey(ctx, tx, idempotencyKey)
				if err != nil {
					return fmt.Errorf("查询入账流水失败: %w", err)
				}
				resp.Transaction = trans
				if trans != nil && trans.DestinationWalletID != nil {
					resp.EscrowWalletID = *trans.DestinationWalletID
				}
				resp.Replayed = true
				return nil
			}

			if req.Amount != m.Budget {
				return fmt.Errorf("%w: 入账金额 %d 与里程碑预算 %d 不一致", apperr.ErrInvalidInput, req.Amount, m.Budget)
			}

			// 确认号已被其他里程碑使用
			used, err := s.ledger.transactionRepo.GetByIdempotencyKey(ctx, tx, idempotencyKey)
			if err != nil {
				return fmt.Errorf("查询入账流水失败: %w", err)
			}
			if used != nil {
				return fmt.Errorf("%w: 付款确认号 %s 已被使用", apperr.ErrInvalidInput, confirmationID)
			}

			escrow, err := s.ledger.walletRepo.GetOrCreate(ctx, tx, model.WalletOwnerCompanyEscrow, m.ProjectID)
			if err != nil {
				return fmt.Errorf("获取托管账户失败: %w", err)
			}
			if err := s.ledger.credit(ctx, tx, escrow.ID, req.Amount); err != nil {
				return err
			}

			trans := &model.Transaction{
				Type:                model.TransactionTypeDeposit,
				DestinationWalletID: model.StringPtr(escrow.ID),
				Amount:              req.Amount,
				Status:              model.TransactionStatusCompleted,
				MilestoneID:         model.StringPtr(m.ID),
				IdempotencyKey:      idempotencyKey,
				Remark:              fmt.Sprintf("里程碑入账-%s", m.ID),
			}
			if err := s.ledger.record(ctx, tx, trans); err != nil {
				return err
			}

			now := s.now()
			err = s.milestoneRepo.UpdateStatus(ctx, tx, m.ID, model.PaymentStatusPendingDeposit, model.PaymentStatusDeposited,
				map[string]interface{}{
					"deposit_confirmation_id": confirmationID,
					"deposit_transaction_id":  trans.ID,
					"deposited_at":            now,
				})
			if err != nil {
				if errors.Is(err, repository.ErrMilestoneStatusInvalid) {
					return apperr.ErrAlreadyDeposited
				}
				return fmt.Errorf("更新里程碑状态失败: %w", err)
			}

			err = s.outboxRepo.Enqueue(ctx, tx, model.EventMilestoneDeposited, m.ID, map[string]interface{}{
				"milestone_id":     m.ID,
				"project_id":       m.ProjectID,
				"amount":           req.Amount,
				"confirmation_id":  confirmationID,
				"escrow_wallet_id": escrow.ID,
				"transaction_id":   trans.ID,
				"deposited_at":     now.Format(time.RFC3339),
			})
			if err != nil {
				return fmt.Errorf("写入消息失败: %w", err)
			}

			resp.Transaction = trans
			resp.EscrowWalletID = escrow.ID
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	resp.Milestone, err = s.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}

	if !resp.Replayed {
		slog.Info("里程碑入账成功", "milestone_id", milestoneID, "amount", req.Amount, "confirmation_id", confirmationID)
	}
	return resp, nil
}

// ============================================================================
// 预览 / 计算
// ============================================================================

type DisbursementPreview struct {
	DisbursementID  string          `json:"disbursement_id"`
	MilestoneID     string          `json:"milestone_id"`
	ProjectID       string          `json:"project_id"`
	TotalAmount     int64           `json:"total_amount"`
	SystemFee       int64           `json:"system_fee"`
	MentorShare     int64           `json:"mentor_share"`
	TeamShare       int64           `json:"team_share"`
	PolicyID        string          `json:"policy_id"`
	PolicyVersion   int             `json:"policy_version"`
	SystemFeeRate   decimal.Decimal `json:"system_fee_rate"`
	MentorShareRate decimal.Decimal `json:"mentor_share_rate"`
	TalentShareRate decimal.Decimal `json:"talent_share_rate"`
	MentorLeaderID  string          `json:"mentor_leader_id"`
	TalentLeaderID  string          `json:"talent_leader_id"`
}

// PreviewDisbursement 按当前生效策略试算，不落库
func (s *MilestoneService) PreviewDisbursement(ctx context.Context, milestoneID string) (*DisbursementPreview, error) {
	m, err := s.milestoneRepo.GetByID(ctx, nil, milestoneID)
	if err != nil {
		return nil, milestoneError(err)
	}
	if m.PaymentStatus != model.PaymentStatusDeposited {
		return nil, fmt.Errorf("%w: 里程碑状态为 %s，只有 DEPOSITED 可以预览发放", apperr.ErrInvalidTransition, m.PaymentStatus)
	}

	policy, err := s.feeConfigRepo.GetActive(ctx, nil)
	if err != nil {
		return nil, feeConfigError(err)
	}
	split, err := ComputeSplit(m.Budget, RatesOf(policy))
	if err != nil {
		return nil, err
	}

	return &DisbursementPreview{
		DisbursementID:  DisbursementID(m.ID, policy.ID, policy.Version),
		MilestoneID:     m.ID,
		ProjectID:       m.ProjectID,
		TotalAmount:     m.Budget,
		SystemFee:       split.SystemFee,
		MentorShare:     split.MentorShare,
		TeamShare:       split.TeamShare,
		PolicyID:        policy.ID,
		PolicyVersion:   policy.Version,
		SystemFeeRate:   policy.SystemFeeRate,
		MentorShareRate: policy.MentorShareRate,
		TalentShareRate: policy.TalentShareRate,
		MentorLeaderID:  m.MentorLeaderID,
		TalentLeaderID:  m.TalentLeaderID,
	}, nil
}

type CalculateDisbursementRequest struct {
	MentorLeaderID string `json:"mentor_leader_id"`
	TalentLeaderID string `json:"talent_leader_id"`
	TotalAmount    int64  `json:"total_amount"`
}

// CalculateDisbursement 生成发放单（已计算未执行）
// 同一策略版本下重复计算返回同一张发放单，未执行时按最新参数刷新
func (s *MilestoneService) CalculateDisbursement(ctx context.Context, milestoneID string, req *CalculateDisbursementRequest) (*model.DisbursementRecord, error) {
	mentorLeaderID := strings.TrimSpace(req.MentorLeaderID)
	talentLeaderID := strings.TrimSpace(req.TalentLeaderID)
	if mentorLeaderID == "" || talentLeaderID == "" {
		return nil, apperr.ErrMissingLeader
	}
	if req.TotalAmount <= 0 {
		return nil, apperr.ErrInvalidAmount
	}

	var record *model.DisbursementRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		m, err := s.milestoneRepo.GetForUpdate(ctx, tx, milestoneID)
		if err != nil {
			return milestoneError(err)
		}
		if m.PaymentStatus != model.PaymentStatusDeposited {
			return fmt.Errorf("%w: 里程碑状态为 %s，只有 DEPOSITED 可以计算发放", apperr.ErrInvalidTransition, m.PaymentStatus)
		}
		if req.TotalAmount != m.Budget {
			return fmt.Errorf("%w: 发放总额 %d 与已入账预算 %d 不一致", apperr.ErrInvalidInput, req.TotalAmount, m.Budget)
		}

		policy, err := s.feeConfigRepo.GetActive(ctx, tx)
		if err != nil {
			return feeConfigError(err)
		}
		split, err := ComputeSplit(req.TotalAmount, RatesOf(policy))
		if err != nil {
			return err
		}

		computed := &model.DisbursementRecord{
			ID:              DisbursementID(m.ID, policy.ID, policy.Version),
			MilestoneID:     m.ID,
			ProjectID:       m.ProjectID,
			PolicyID:        policy.ID,
			PolicyVersion:   policy.Version,
			SystemFeeRate:   policy.SystemFeeRate,
			MentorShareRate: policy.MentorShareRate,
			TalentShareRate: policy.TalentShareRate,
			TotalAmount:     req.TotalAmount,
			SystemFee:       split.SystemFee,
			MentorShare:     split.MentorShare,
			TeamShare:       split.TeamShare,
			MentorLeaderID:  mentorLeaderID,
			TalentLeaderID:  talentLeaderID,
			ComputedAt:      s.now(),
		}

		existing, err := s.disbursementRepo.GetByID(ctx, tx, computed.ID)
		switch {
		case err == nil:
			if existing.Executed() || sameComputation(existing, computed) {
				record = existing
				return nil
			}
			if err := s.disbursementRepo.RefreshComputed(ctx, tx, computed); err != nil {
				return fmt.Errorf("刷新发放单失败: %w", err)
			}
		case errors.Is(err, repository.ErrDisbursementNotFound):
			if err := s.disbursementRepo.Create(ctx, tx, computed); err != nil {
				return fmt.Errorf("创建发放单失败: %w", err)
			}
		default:
			return fmt.Errorf("查询发放单失败: %w", err)
		}

		if err := s.milestoneRepo.UpdateLeaders(ctx, tx, m.ID, mentorLeaderID, talentLeaderID); err != nil {
			return fmt.Errorf("更新负责人失败: %w", err)
		}

		record, err = s.disbursementRepo.GetByID(ctx, tx, computed.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("计算发放单", "disbursement_id", record.ID, "milestone_id", milestoneID,
		"system_fee", record.SystemFee, "mentor_share", record.MentorShare, "team_share", record.TeamShare)
	return record, nil
}

func sameComputation(a, b *model.DisbursementRecord) bool {
	return a.TotalAmount == b.TotalAmount &&
		a.SystemFee == b.SystemFee &&
		a.MentorShare == b.MentorShare &&
		a.TeamShare == b.TeamShare &&
		a.MentorLeaderID == b.MentorLeaderID &&
		a.TalentLeaderID == b.TalentLeaderID
}

// ============================================================================
// 执行发放
// ============================================================================

type ExecutionResult struct {
	Disbursement *model.DisbursementRecord `json:"disbursement"`
	Transactions []*model.Transaction      `json:"transactions"`
	Replayed     bool                      `json:"replayed"`
}

// release 一笔入账分支
type release struct {
	role      string
	ownerType string
	ownerID   string
	amount    int64
}

// ExecuteDisbursement 执行发放：托管账户扣款，三方入账，里程碑 -> RELEASED
// 已执行的发放单再次执行直接返回原结果，不会重复转账
func (s *MilestoneService) ExecuteDisbursement(ctx context.Context, disbursementID string) (*ExecutionResult, error) {
	replayed := false

	err := s.locker.WithLock(ctx, lock.DisbursementKey(disbursementID), func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			rec, err := s.disbursementRepo.GetForUpdate(ctx, tx, disbursementID)
			if err != nil {
				return disbursementError(err)
			}
			if rec.Executed() {
				replayed = true
				return nil
			}

			m, err := s.milestoneRepo.GetForUpdate(ctx, tx, rec.MilestoneID)
			if err != nil {
				return milestoneError(err)
			}
			if m.PaymentStatus != model.PaymentStatusDeposited {
				return fmt.Errorf("%w: 里程碑状态为 %s，只有 DEPOSITED 可以执行发放", apperr.ErrInvalidTransition, m.PaymentStatus)
			}

			escrow, err := s.ledger.walletRepo.GetByOwner(ctx, tx, model.WalletOwnerCompanyEscrow, rec.ProjectID)
			if err != nil {
				if errors.Is(err, repository.ErrWalletNotFound) {
					return apperr.ErrInsufficientEscrowBalance
				}
				return fmt.Errorf("获取托管账户失败: %w", err)
			}
			if _, err := s.ledger.debit(ctx, tx, escrow.ID, rec.TotalAmount, apperr.ErrInsufficientEscrowBalance); err != nil {
				return err
			}

			releases := []release{
				{role: "system", ownerType: model.WalletOwnerSystem, ownerID: model.SystemOwnerID, amount: rec.SystemFee},
				{role: "mentor", ownerType: model.WalletOwnerMentor, ownerID: rec.MentorLeaderID, amount: rec.MentorShare},
				{role: "team", ownerType: model.WalletOwnerTalentHolding, ownerID: rec.ProjectID, amount: rec.TeamShare},
			}

			var teamTransactionID *string
			for _, r := range releases {
				if r.amount == 0 {
					continue
				}
				wallet, err := s.ledger.walletRepo.GetOrCreate(ctx, tx, r.ownerType, r.ownerID)
				if err != nil {
					return fmt.Errorf("获取%s钱包失败: %w", r.role, err)
				}
				if err := s.ledger.credit(ctx, tx, wallet.ID, r.amount); err != nil {
					return err
				}
				trans := &model.Transaction{
					Type:                model.TransactionTypeMilestoneRelease,
					SourceWalletID:      model.StringPtr(escrow.ID),
					DestinationWalletID: model.StringPtr(wallet.ID),
					Amount:              r.amount,
					Status:              model.TransactionStatusCompleted,
					MilestoneID:         model.StringPtr(rec.MilestoneID),
					DisbursementID:      model.StringPtr(rec.ID),
					IdempotencyKey:      fmt.Sprintf("release:%s:%s", rec.ID, r.role),
					Remark:              fmt.Sprintf("里程碑发放-%s-%s", rec.MilestoneID, r.role),
				}
				if err := s.ledger.record(ctx, tx, trans); err != nil {
					return err
				}
				if r.role == "team" {
					teamTransactionID = model.StringPtr(trans.ID)
				}
			}

			now := s.now()
			if err := s.disbursementRepo.MarkExecuted(ctx, tx, rec.ID, now); err != nil {
				if errors.Is(err, repository.ErrDisbursementExecuted) {
					return apperr.ErrAlreadyExecuted
				}
				return fmt.Errorf("标记发放单失败: %w", err)
			}

			err = s.milestoneRepo.UpdateStatus(ctx, tx, m.ID, model.PaymentStatusDeposited, model.PaymentStatusReleased,
				map[string]interface{}{"released_at": now})
			if err != nil {
				if errors.Is(err, repository.ErrMilestoneStatusInvalid) {
					return apperr.ErrInvalidTransition
				}
				return fmt.Errorf("更新里程碑状态失败: %w", err)
			}

			if rec.TeamShare > 0 {
				err = s.teamFundRepo.Create(ctx, tx, &model.TeamFundEntry{
					ProjectID:      rec.ProjectID,
					LeaderID:       rec.TalentLeaderID,
					EntryType:      model.TeamFundEntryReceived,
					Amount:         rec.TeamShare,
					DisbursementID: model.StringPtr(rec.ID),
					TransactionID:  teamTransactionID,
				})
				if err != nil {
					return fmt.Errorf("记录团队资金失败: %w", err)
				}
			}

			err = s.outboxRepo.Enqueue(ctx, tx, model.EventMilestoneReleased, rec.MilestoneID, map[string]interface{}{
				"disbursement_id":  rec.ID,
				"milestone_id":     rec.MilestoneID,
				"project_id":       rec.ProjectID,
				"total_amount":     rec.TotalAmount,
				"system_fee":       rec.SystemFee,
				"mentor_share":     rec.MentorShare,
				"team_share":       rec.TeamShare,
				"mentor_leader_id": rec.MentorLeaderID,
				"talent_leader_id": rec.TalentLeaderID,
				"released_at":      now.Format(time.RFC3339),
			})
			if err != nil {
				return fmt.Errorf("写入消息失败: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	result, err := s.loadExecution(ctx, disbursementID)
	if err != nil {
		return nil, err
	}
	result.Replayed = replayed

	if !replayed {
		slog.Info("发放执行成功", "disbursement_id", disbursementID, "milestone_id", result.Disbursement.MilestoneID,
			"total_amount", result.Disbursement.TotalAmount)
	}
	return result, nil
}

func (s *MilestoneService) loadExecution(ctx context.Context, disbursementID string) (*ExecutionResult, error) {
	rec, err := s.disbursementRepo.GetByID(ctx, nil, disbursementID)
	if err != nil {
		return nil, disbursementError(err)
	}
	transactions, err := s.ledger.transactionRepo.ListByDisbursement(ctx, nil, disbursementID)
	if err != nil {
		return nil, fmt.Errorf("查询发放流水失败: %w", err)
	}
	return &ExecutionResult{Disbursement: rec, Transactions: transactions}, nil
}

func (s *MilestoneService) GetDisbursement(ctx context.Context, disbursementID string) (*ExecutionResult, error) {
	return s.loadExecution(ctx, disbursementID)
}

func (s *MilestoneService) ListDisbursements(ctx context.Context, milestoneID string) ([]*model.DisbursementRecord, error) {
	if _, err := s.GetMilestone(ctx, milestoneID); err != nil {
		return nil, err
	}
	return s.disbursementRepo.ListByMilestone(ctx, milestoneID)
}

func milestoneError(err error) error {
	if errors.Is(err, repository.ErrMilestoneNotFound) {
		return apperr.ErrMilestoneNotFound
	}
	return fmt.Errorf("查询里程碑失败: %w", err)
}

func disbursementError(err error) error {
	if errors.Is(err, repository.ErrDisbursementNotFound) {
		return apperr.ErrDisbursementNotFound
	}
	return fmt.Errorf("查询发放单失败: %w", err)
}
