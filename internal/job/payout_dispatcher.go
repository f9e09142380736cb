package job

import (
	"context"
	"log/slog"
	"time"

	"talentpay/internal/config"
	"talentpay/internal/model"
)

type payoutQueue interface {
	DueForPayout(ctx context.Context, limit int) ([]*model.WithdrawalRequest, error)
	MarkProcessing(ctx context.Context, id string) (*model.WithdrawalRequest, error)
}

// PayoutDispatcher 把到达计划打款时间的已审批提现推进到 PROCESSING
// 状态变更会写出 withdrawal.processing 事件，由打款渠道消费后回调结果
type PayoutDispatcher struct {
	withdrawals payoutQueue
	logger      *slog.Logger
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewPayoutDispatcher(withdrawals payoutQueue, cfg *config.Config) *PayoutDispatcher {
	interval := time.Duration(cfg.Business.PayoutDispatchIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PayoutDispatcher{
		withdrawals: withdrawals,
		logger:      slog.With("job", "PayoutDispatcher"),
		stopCh:      make(chan struct{}),
		interval:    interval,
		batchSize:   50,
	}
}

func (j *PayoutDispatcher) Start(ctx context.Context) {
	j.logger.Info("打款调度任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.logger.Info("任务停止")
			return
		case <-ticker.C:
			j.dispatch(ctx)
		}
	}
}

func (j *PayoutDispatcher) Stop() {
	close(j.stopCh)
}

// dispatch 返回本次推进的提现数
func (j *PayoutDispatcher) dispatch(ctx context.Context) int {
	due, err := j.withdrawals.DueForPayout(ctx, j.batchSize)
	if err != nil {
		j.logger.Error("查询待打款提现失败", "err", err)
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	dispatched := 0
	for _, w := range due {
		// 多实例同时调度时，另一实例已推进的申请会返回状态不合法，跳过即可
		if _, err := j.withdrawals.MarkProcessing(ctx, w.ID); err != nil {
			j.logger.Warn("推进打款失败", "withdrawal_id", w.ID, "err", err)
			continue
		}
		dispatched++
		j.logger.Info("提现已提交打款", "withdrawal_id", w.ID, "user_id", w.UserID, "amount", w.Amount)
	}

	j.logger.Info("本次提交打款", "count", dispatched)
	return dispatched
}
