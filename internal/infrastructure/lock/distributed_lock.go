package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"talentpay/internal/apperr"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：管理员重复点击"执行发放"，或者打款回调被重复投递
//
// 如果没有分布式锁：
//   goroutine1: 查询发放单未执行 -> 扣托管 -> 入账三方
//   goroutine2: 查询发放单未执行 -> 扣托管 -> 入账三方   重复发放了！
//
// 加锁后第二个请求只能等第一个提交完成，再读到"已执行"直接返回原结果。
// 锁只是第一道防线，数据库里的 CAS 条件更新和唯一索引才是最终兜底。
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
// 释放锁：Lua 脚本比较 value 后再删除，避免误删别人的锁
//
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

const (
	defaultRetryInterval = 50 * time.Millisecond
	defaultMaxRetries    = 60
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

func (l *DistributedLock) Key() string {
	return l.key
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// Unlock 释放锁，只删除自己持有的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// ============================================================================
// Locker：业务层使用的锁工厂
// ============================================================================

// Locker 按业务维度创建锁，TTL 统一由配置决定
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl}
}

// WithLock 获取 key 对应的锁后执行 fn，结束后释放
// 每次加锁使用新的 uuid 作为 value，保证只释放自己的锁
func (lk *Locker) WithLock(ctx context.Context, key string, fn func() error) error {
	l := NewDistributedLock(lk.client, key, uuid.NewString(), lk.ttl)
	if err := l.Lock(ctx, defaultRetryInterval, defaultMaxRetries); err != nil {
		if errors.Is(err, ErrLockFailed) {
			return fmt.Errorf("%w: %w", apperr.ErrBusy, err)
		}
		return fmt.Errorf("获取锁 %s 失败: %w", l.Key(), err)
	}
	// 释放锁不能受调用方 ctx 取消的影响
	defer l.Unlock(context.Background())
	return fn()
}

// 按用途划分的锁 key
//
// 发放单维度：同一发放单的执行串行化
// 项目维度：  同一项目的团队资金分配串行化（防止并发分配超出组长持有额）
// 钱包维度：  同一钱包的提现预留串行化
// 提现单维度：同一提现申请的审核/回调串行化

func DisbursementKey(disbursementID string) string {
	return fmt.Sprintf("talentpay:lock:disbursement:%s", disbursementID)
}

func MilestoneKey(milestoneID string) string {
	return fmt.Sprintf("talentpay:lock:milestone:%s", milestoneID)
}

func ProjectTeamFundKey(projectID string) string {
	return fmt.Sprintf("talentpay:lock:teamfund:%s", projectID)
}

func WalletKey(walletID string) string {
	return fmt.Sprintf("talentpay:lock:wallet:%s", walletID)
}

func WithdrawalKey(withdrawalID string) string {
	return fmt.Sprintf("talentpay:lock:withdrawal:%s", withdrawalID)
}
