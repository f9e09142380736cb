package repository

import (
	"context"
	"errors"

	"talentpay/internal/model"
	"talentpay/pkg/idgen"

	"gorm.io/gorm"
)

var ErrTransactionStatusInvalid = errors.New("流水状态不允许修改")

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	if trans.TransactionNo == "" {
		trans.TransactionNo = idgen.GenerateTransactionNo(trans.Type)
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.Transaction, error) {
	if tx == nil {
		tx = r.db
	}
	var trans model.Transaction
	err := tx.WithContext(ctx).Where("id = ?", id).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, tx *gorm.DB, key string) (*model.Transaction, error) {
	if tx == nil {
		tx = r.db
	}
	var trans model.Transaction
	err := tx.WithContext(ctx).Where("idempotency_key = ?", key).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

func (r *TransactionRepository) ListByDisbursement(ctx context.Context, tx *gorm.DB, disbursementID string) ([]*model.Transaction, error) {
	if tx == nil {
		tx = r.db
	}
	var transactions []*model.Transaction
	err := tx.WithContext(ctx).
		Where("disbursement_id = ?", disbursementID).
		Order("created_at ASC").
		Find(&transactions).Error
	return transactions, err
}

func (r *TransactionRepository) ListByWithdrawal(ctx context.Context, withdrawalID string) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("withdrawal_id = ?", withdrawalID).
		Order("created_at ASC").
		Find(&transactions).Error
	return transactions, err
}

// ListByWallet 钱包流水（作为付款方或收款方）
func (r *TransactionRepository) ListByWallet(ctx context.Context, walletID string, page, pageSize int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("source_wallet_id = ? OR destination_wallet_id = ?", walletID, walletID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// UpdateStatus 只允许 PENDING 的流水迁移到终态，COMPLETED/FAILED 的流水不可修改
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, toStatus string) error {
	result := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, model.TransactionStatusPending).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionStatusInvalid
	}
	return nil
}
