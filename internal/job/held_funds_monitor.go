package job

import (
	"context"
	"log/slog"
	"time"

	"talentpay/internal/config"
	"talentpay/internal/service"
)

type staleHoldingLister interface {
	ListStaleHoldings(ctx context.Context, olderThanDays int) ([]*service.HoldingStatus, error)
}

// HeldFundsMonitor 巡检组长长期持有未分配的团队资金
// 只记录告警，不做任何资金动作
type HeldFundsMonitor struct {
	teamFunds   staleHoldingLister
	warningDays int
	logger      *slog.Logger
	stopCh      chan struct{}
	interval    time.Duration
}

func NewHeldFundsMonitor(teamFunds staleHoldingLister, cfg *config.Config) *HeldFundsMonitor {
	interval := time.Duration(cfg.Business.HeldFundsScanIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	return &HeldFundsMonitor{
		teamFunds:   teamFunds,
		warningDays: cfg.Business.HeldFundsWarningDays,
		logger:      slog.With("job", "HeldFundsMonitor"),
		stopCh:      make(chan struct{}),
		interval:    interval,
	}
}

func (j *HeldFundsMonitor) Start(ctx context.Context) {
	j.logger.Info("团队资金巡检任务启动", "warning_days", j.warningDays)

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
			j.scan(ctx)
		}
	}
}

func (j *HeldFundsMonitor) Stop() {
	close(j.stopCh)
}

// scan 返回本次告警的项目数
func (j *HeldFundsMonitor) scan(ctx context.Context) int {
	stale, err := j.teamFunds.ListStaleHoldings(ctx, j.warningDays)
	if err != nil {
		j.logger.Error("查询团队资金失败", "err", err)
		return 0
	}

	for _, h := range stale {
		j.logger.Warn("组长持有团队资金超过告警天数",
			"project_id", h.ProjectID,
			"leader_id", h.LeaderID,
			"held", h.HeldByLeader,
			"days_since_last_release", h.DaysSinceLastRelease)
	}
	return len(stale)
}
