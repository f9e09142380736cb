package job

import (
	"context"
	"log/slog"
	"time"

	"talentpay/internal/config"
	"talentpay/internal/infrastructure/mq"
	"talentpay/internal/model"
	"talentpay/internal/repository"

	"gorm.io/gorm"
)

// OutboxSender 把本地消息表中的状态变更事件投递到 Kafka
// 投递至少一次：发送成功但标记失败时会重复投递，消费方按事件内容去重
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  mq.Publisher
	cfg        *config.Config
	logger     *slog.Logger
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db, cfg.Kafka.Topic.PaymentEvents),
		publisher:  publisher,
		cfg:        cfg,
		logger:     slog.With("job", "OutboxSender"),
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.logger.Info("消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.logger.Info("任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("查询消息失败", "err", err)
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := s.publisher.Publish(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.MarkSent(ctx, msg.ID); updateErr != nil {
			s.logger.Error("更新消息状态失败", "id", msg.ID, "err", updateErr)
			return
		}
		s.logger.Debug("消息发送成功", "id", msg.ID, "event_type", msg.EventType, "key", msg.MessageKey)
		return
	}

	s.logger.Warn("消息发送失败", "id", msg.ID, "event_type", msg.EventType, "retry_count", msg.RetryCount, "err", err)

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.logger.Error("增加重试次数失败", "id", msg.ID, "err", err)
	}

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			s.logger.Error("标记消息失败状态失败", "id", msg.ID, "err", err)
			return
		}
		s.logger.Error("消息超过最大重试次数，标记为失败", "id", msg.ID, "event_type", msg.EventType)
	}
}
