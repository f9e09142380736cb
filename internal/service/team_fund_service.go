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
// 团队资金台账
// ============================================================================
//
// 里程碑发放时团队份额进入项目的组长代持账户（TALENT_HOLDING），
// 由人才组长分配给团队成员。
//
// 组长 = 最近一次 RECEIVED 记录的 leader_id
// 持有金额 = sum(RECEIVED) - sum(DISTRIBUTED)，每次从台账聚合
//
// 同一项目的分配用 Redis 锁 + 代持账户 FOR UPDATE 串行化，
// 保证"校验持有额度"和"写入分配记录"之间不会插入另一笔分配。
// ============================================================================

type TeamFundService struct {
	db           *gorm.DB
	locker       *lock.Locker
	teamFundRepo *repository.TeamFundRepository
	outboxRepo   *repository.OutboxRepository
	ledger       ledger
	now          func() time.Time
}

func NewTeamFundService(db *gorm.DB, locker *lock.Locker, cfg *config.Config) *TeamFundService {
	return &TeamFundService{
		db:           db,
		locker:       locker,
		teamFundRepo: repository.NewTeamFundRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db, cfg.Kafka.Topic.PaymentEvents),
		ledger:       newLedger(db),
		now:          time.Now,
	}
}

type DistributeRequest struct {
	RequestID   string `json:"request_id"` // 可选，传入时按 (项目, request_id) 幂等
	RecipientID string `json:"recipient_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
}

type DistributeResponse struct {
	Transaction *model.Transaction `json:"transaction"`
	Holding     *HoldingStatus     `json:"holding"`
	Replayed    bool               `json:"replayed"`
}

// HoldingStatus 组长持有资金概况
type HoldingStatus struct {
	ProjectID            string     `json:"project_id"`
	LeaderID             string     `json:"leader_id"`
	TotalReceived        int64      `json:"total_received"`
	TotalDistributed     int64      `json:"total_distributed"`
	HeldByLeader         int64      `json:"held_by_leader"`
	LastReleaseAt        *time.Time `json:"last_release_at,omitempty"`
	DaysSinceLastRelease int        `json:"days_since_last_release"`
}

// Distribute 组长把代持的团队资金分配给成员
func (s *TeamFundService) Distribute(ctx context.Context, projectID, callerID string, req *DistributeRequest) (*DistributeResponse, error) {
	recipientID := strings.TrimSpace(req.RecipientID)
	if strings.TrimSpace(projectID) == "" || recipientID == "" {
		return nil, fmt.Errorf("%w: 项目ID和收款成员不能为空", apperr.ErrInvalidInput)
	}
	if strings.TrimSpace(callerID) == "" {
		return nil, apperr.ErrNotLeader
	}
	if req.Amount <= 0 {
		return nil, apperr.ErrInvalidAmount
	}

	idempotencyKey := "distribute:" + uuid.NewString()
	if req.RequestID != "" {
		idempotencyKey = fmt.Sprintf("distribute:%s:%s", projectID, req.RequestID)
	}

	resp := &DistributeResponse{}
	err := s.locker.WithLock(ctx, lock.ProjectTeamFundKey(projectID), func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			latest, err := s.teamFundRepo.LatestReceived(ctx, tx, projectID)
			if err != nil {
				return fmt.Errorf("查询团队资金失败: %w", err)
			}
			if latest == nil {
				return fmt.Errorf("%w: 项目 %s 尚未收到团队资金", apperr.ErrExceedsHeldAmount, projectID)
			}
			if latest.LeaderID != callerID {
				return apperr.ErrNotLeader
			}

			// 重放必须与首次请求的收款人和金额一致
			existing, err := s.ledger.transactionRepo.GetByIdempotencyKey(ctx, tx, idempotencyKey)
			if err != nil {
				return fmt.Errorf("查询分配流水失败: %w", err)
			}
			if existing != nil {
				if err := s.matchReplay(ctx, tx, existing, recipientID, req.Amount); err != nil {
					return err
				}
				resp.Transaction = existing
				resp.Replayed = true
				return nil
			}

			holding, err := s.ledger.walletRepo.GetByOwner(ctx, tx, model.WalletOwnerTalentHolding, projectID)
			if err != nil {
				return walletError(err)
			}
			// 锁住代持账户，后续聚合与扣款之间不会有并发分配
			if _, err := s.ledger.walletRepo.GetForUpdate(ctx, tx, holding.ID); err != nil {
				return walletError(err)
			}

			totals, err := s.teamFundRepo.Totals(ctx, tx, projectID)
			if err != nil {
				return fmt.Errorf("汇总团队资金失败: %w", err)
			}
			if req.Amount > totals.Held() {
				return fmt.Errorf("%w: 持有 %d，申请分配 %d", apperr.ErrExceedsHeldAmount, totals.Held(), req.Amount)
			}

			member, err := s.ledger.walletRepo.GetOrCreate(ctx, tx, model.WalletOwnerMember, recipientID)
			if err != nil {
				return fmt.Errorf("获取成员钱包失败: %w", err)
			}

			trans := &model.Transaction{
				Type:                model.TransactionTypeInternalDistribution,
				SourceWalletID:      model.StringPtr(holding.ID),
				DestinationWalletID: model.StringPtr(member.ID),
				Amount:              req.Amount,
				IdempotencyKey:      idempotencyKey,
				Remark:              fmt.Sprintf("团队资金分配-%s-%s", projectID, recipientID),
			}
			if err := s.ledger.transfer(ctx, tx, trans, apperr.ErrExceedsHeldAmount); err != nil {
				return err
			}

			err = s.teamFundRepo.Create(ctx, tx, &model.TeamFundEntry{
				ProjectID:     projectID,
				LeaderID:      callerID,
				EntryType:     model.TeamFundEntryDistributed,
				Amount:        req.Amount,
				RecipientID:   model.StringPtr(recipientID),
				TransactionID: model.StringPtr(trans.ID),
			})
			if err != nil {
				return fmt.Errorf("记录团队资金分配失败: %w", err)
			}

			err = s.outboxRepo.Enqueue(ctx, tx, model.EventTeamFundDistributed, projectID, map[string]interface{}{
				"project_id":       projectID,
				"leader_id":        callerID,
				"recipient_id":     recipientID,
				"amount":           req.Amount,
				"transaction_id":   trans.ID,
				"held_after":       totals.Held() - req.Amount,
				"member_wallet_id": member.ID,
			})
			if err != nil {
				return fmt.Errorf("写入消息失败: %w", err)
			}

			resp.Transaction = trans
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	resp.Holding, err = s.HoldingStatus(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if !resp.Replayed {
		slog.Info("团队资金分配成功", "project_id", projectID, "leader_id", callerID,
			"recipient_id", recipientID, "amount", req.Amount, "held", resp.Holding.HeldByLeader)
	}
	return resp, nil
}

func (s *TeamFundService) matchReplay(ctx context.Context, tx *gorm.DB, existing *model.Transaction, recipientID string, amount int64) error {
	if existing.Amount != amount || existing.DestinationWalletID == nil {
		return fmt.Errorf("%w: request_id 已用于金额 %d 的分配", apperr.ErrIdempotencyConflict, existing.Amount)
	}
	member, err := s.ledger.walletRepo.GetByOwner(ctx, tx, model.WalletOwnerMember, recipientID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return fmt.Errorf("%w: request_id 已用于其他收款成员", apperr.ErrIdempotencyConflict)
		}
		return fmt.Errorf("查询成员钱包失败: %w", err)
	}
	if member.ID != *existing.DestinationWalletID {
		return fmt.Errorf("%w: request_id 已用于其他收款成员", apperr.ErrIdempotencyConflict)
	}
	return nil
}

// HoldingStatus 查询项目的组长持有情况，没有任何记录时返回全零
func (s *TeamFundService) HoldingStatus(ctx context.Context, projectID string) (*HoldingStatus, error) {
	totals, err := s.teamFundRepo.Totals(ctx, nil, projectID)
	if err != nil {
		return nil, fmt.Errorf("汇总团队资金失败: %w", err)
	}
	latest, err := s.teamFundRepo.LatestReceived(ctx, nil, projectID)
	if err != nil {
		return nil, fmt.Errorf("查询团队资金失败: %w", err)
	}

	status := &HoldingStatus{
		ProjectID:        projectID,
		TotalReceived:    totals.Received,
		TotalDistributed: totals.Distributed,
		HeldByLeader:     totals.Held(),
	}
	if latest != nil {
		lastRelease := latest.CreatedAt
		status.LeaderID = latest.LeaderID
		status.LastReleaseAt = &lastRelease
		status.DaysSinceLastRelease = int(s.now().Sub(lastRelease).Hours() / 24)
	}
	return status, nil
}

// ListEntries 项目的团队资金流水（入账与分配）
func (s *TeamFundService) ListEntries(ctx context.Context, projectID string) ([]*model.TeamFundEntry, error) {
	return s.teamFundRepo.ListByProject(ctx, projectID)
}

// ListStaleHoldings 组长持有资金超过 olderThanDays 天未分配完的项目
func (s *TeamFundService) ListStaleHoldings(ctx context.Context, olderThanDays int) ([]*HoldingStatus, error) {
	projectIDs, err := s.teamFundRepo.ListFundedProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询项目失败: %w", err)
	}

	var stale []*HoldingStatus
	for _, projectID := range projectIDs {
		status, err := s.HoldingStatus(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if status.HeldByLeader > 0 && status.DaysSinceLastRelease >= olderThanDays {
			stale = append(stale, status)
		}
	}
	return stale, nil
}
