package service

import (
	"context"
	"errors"
	"fmt"

	"talentpay/internal/apperr"
	"talentpay/internal/model"
	"talentpay/internal/repository"

	"gorm.io/gorm"
)

// ledger 复式记账的公共步骤，所有方法都必须在调用方的事务内执行
//
// 扣款：FOR UPDATE 读取钱包 -> 校验余额 -> CAS 扣减（balance >= ? AND version = ?）
// 入账：UPDATE balance = balance + ?，由行锁保证串行
type ledger struct {
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
}

func newLedger(db *gorm.DB) ledger {
	return ledger{
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// debit 从钱包扣款，余额不足时返回 insufficient
func (l ledger) debit(ctx context.Context, tx *gorm.DB, walletID string, amount int64, insufficient error) (*model.Wallet, error) {
	wallet, err := l.walletRepo.GetForUpdate(ctx, tx, walletID)
	if err != nil {
		return nil, walletError(err)
	}
	if wallet.Balance < amount {
		return nil, fmt.Errorf("%w: 余额 %d，需要 %d", insufficient, wallet.Balance, amount)
	}

	if err := l.walletRepo.Deduct(ctx, tx, walletID, amount, wallet.Version); err != nil {
		switch {
		case errors.Is(err, repository.ErrBalanceNotEnough):
			return nil, insufficient
		case errors.Is(err, repository.ErrOptimisticLock):
			return nil, apperr.ErrConcurrentUpdate
		}
		return nil, fmt.Errorf("扣款失败: %w", err)
	}

	wallet.Balance -= amount
	wallet.Version++
	return wallet, nil
}

func (l ledger) credit(ctx context.Context, tx *gorm.DB, walletID string, amount int64) error {
	if err := l.walletRepo.Increase(ctx, tx, walletID, amount); err != nil {
		return walletError(err)
	}
	return nil
}

// record 写一条流水
func (l ledger) record(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if trans.Amount <= 0 {
		return apperr.ErrInvalidAmount
	}
	if err := l.transactionRepo.Create(ctx, tx, trans); err != nil {
		return fmt.Errorf("记录流水失败: %w", err)
	}
	return nil
}

// transfer 付款方扣款、收款方入账并记一条 COMPLETED 流水
func (l ledger) transfer(ctx context.Context, tx *gorm.DB, trans *model.Transaction, insufficient error) error {
	if trans.SourceWalletID == nil || trans.DestinationWalletID == nil {
		return fmt.Errorf("转账必须同时指定付款方和收款方")
	}
	if _, err := l.debit(ctx, tx, *trans.SourceWalletID, trans.Amount, insufficient); err != nil {
		return err
	}
	if err := l.credit(ctx, tx, *trans.DestinationWalletID, trans.Amount); err != nil {
		return err
	}
	trans.Status = model.TransactionStatusCompleted
	return l.record(ctx, tx, trans)
}

func walletError(err error) error {
	if errors.Is(err, repository.ErrWalletNotFound) {
		return apperr.ErrWalletNotFound
	}
	return fmt.Errorf("查询钱包失败: %w", err)
}
