package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"talentpay/internal/config"
	"talentpay/internal/infrastructure/mq"
	"talentpay/internal/model"
	"talentpay/internal/repository"
	"talentpay/internal/service"
	"talentpay/internal/testutil"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Kafka.Topic.PaymentEvents = "talentpay.test.events"
	cfg.Business.MaxRetryCount = 2
	cfg.Business.HeldFundsWarningDays = 7
	cfg.Business.MinWithdrawalAmount = 1
	return cfg
}

func TestOutboxSenderPublishesPending(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testConfig()
	outbox := repository.NewOutboxRepository(db, cfg.Kafka.Topic.PaymentEvents)
	ctx := context.Background()

	require.NoError(t, outbox.Enqueue(ctx, nil, model.EventMilestoneReleased, "m1", map[string]interface{}{"milestone_id": "m1"}))

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var body struct {
			EventType string `json:"event_type"`
		}
		if err := json.Unmarshal(value, &body); err != nil {
			return err
		}
		if body.EventType != model.EventMilestoneReleased {
			return errors.New("unexpected event " + body.EventType)
		}
		return nil
	})

	sender := NewOutboxSender(db, mq.NewKafkaPublisher(producer), cfg)
	sender.processPendingMessages(ctx)

	pending, err := outbox.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	msgs, err := outbox.ListByKey(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.OutboxStatusSent, msgs[0].Status)
}

func TestOutboxSenderGivesUpAfterMaxRetries(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testConfig()
	outbox := repository.NewOutboxRepository(db, cfg.Kafka.Topic.PaymentEvents)
	ctx := context.Background()

	require.NoError(t, outbox.Enqueue(ctx, nil, model.EventWithdrawalRequested, "w1", map[string]interface{}{"withdrawal_id": "w1"}))

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sender := NewOutboxSender(db, mq.NewKafkaPublisher(producer), cfg)

	sender.processPendingMessages(ctx)
	msgs, err := outbox.ListByKey(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusPending, msgs[0].Status)
	assert.Equal(t, 1, msgs[0].RetryCount)

	sender.processPendingMessages(ctx)
	msgs, err = outbox.ListByKey(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusFailed, msgs[0].Status)

	// 已标记失败的消息不再投递
	sender.processPendingMessages(ctx)
}

type fakeStaleLister struct {
	days  int
	stale []*service.HoldingStatus
}

func (f *fakeStaleLister) ListStaleHoldings(ctx context.Context, olderThanDays int) ([]*service.HoldingStatus, error) {
	f.days = olderThanDays
	return f.stale, nil
}

func TestHeldFundsMonitorUsesWarningDays(t *testing.T) {
	lister := &fakeStaleLister{stale: []*service.HoldingStatus{
		{ProjectID: "p1", LeaderID: "lead", HeldByLeader: 700_000, DaysSinceLastRelease: 12},
	}}
	monitor := NewHeldFundsMonitor(lister, testConfig())

	assert.Equal(t, 1, monitor.scan(context.Background()))
	assert.Equal(t, 7, lister.days)
	assert.Equal(t, time.Hour, monitor.interval)
}

func TestPayoutDispatcherMovesDueWithdrawals(t *testing.T) {
	db := testutil.NewDB(t)
	locker := testutil.NewLocker(t)
	cfg := testConfig()
	ctx := context.Background()

	// 直接准备一个有余额的成员钱包
	walletRepo := repository.NewWalletRepository(db)
	wallet, err := walletRepo.GetOrCreate(ctx, nil, model.WalletOwnerMember, "member-1")
	require.NoError(t, err)
	require.NoError(t, walletRepo.Increase(ctx, db, wallet.ID, 10_000))

	withdrawals := service.NewWithdrawalService(db, locker, cfg)
	bank := service.BankInfo{BankName: "工商银行", BankAccountNumber: "6222000000000000", BankAccountHolder: "李四"}

	due, err := withdrawals.RequestWithdrawal(ctx, "member-1", &service.WithdrawRequest{WalletID: wallet.ID, Amount: 1000, BankInfo: bank})
	require.NoError(t, err)
	_, err = withdrawals.Approve(ctx, due.ID, "admin", nil)
	require.NoError(t, err)

	future, err := withdrawals.RequestWithdrawal(ctx, "member-1", &service.WithdrawRequest{WalletID: wallet.ID, Amount: 1000, BankInfo: bank})
	require.NoError(t, err)
	later := time.Now().Add(48 * time.Hour)
	_, err = withdrawals.Approve(ctx, future.ID, "admin", &later)
	require.NoError(t, err)

	pending, err := withdrawals.RequestWithdrawal(ctx, "member-1", &service.WithdrawRequest{WalletID: wallet.ID, Amount: 1000, BankInfo: bank})
	require.NoError(t, err)

	dispatcher := NewPayoutDispatcher(withdrawals, cfg)
	assert.Equal(t, 1, dispatcher.dispatch(ctx))
	assert.Equal(t, 0, dispatcher.dispatch(ctx))

	got, err := withdrawals.Get(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusProcessing, got.Status)

	got, err = withdrawals.Get(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusApproved, got.Status)

	got, err = withdrawals.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusPending, got.Status)
}
