package service

import (
	"context"
	"fmt"

	"talentpay/internal/model"
	"talentpay/internal/repository"

	"gorm.io/gorm"
)

type WalletService struct {
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

type BalanceResponse struct {
	WalletID  string `json:"wallet_id"`
	OwnerType string `json:"owner_type"`
	OwnerID   string `json:"owner_id"`
	Balance   int64  `json:"balance"`
}

type TransactionListResponse struct {
	Total        int64                `json:"total"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
	Transactions []*model.Transaction `json:"transactions"`
}

func (s *WalletService) GetWallet(ctx context.Context, walletID string) (*model.Wallet, error) {
	wallet, err := s.walletRepo.GetByID(ctx, nil, walletID)
	if err != nil {
		return nil, walletError(err)
	}
	return wallet, nil
}

func (s *WalletService) GetWalletBalance(ctx context.Context, walletID string) (*BalanceResponse, error) {
	wallet, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	return &BalanceResponse{
		WalletID:  wallet.ID,
		OwnerType: wallet.OwnerType,
		OwnerID:   wallet.OwnerID,
		Balance:   wallet.Balance,
	}, nil
}

// FindWallet 按归属查找钱包，不会创建
func (s *WalletService) FindWallet(ctx context.Context, ownerType, ownerID string) (*model.Wallet, error) {
	wallet, err := s.walletRepo.GetByOwner(ctx, nil, ownerType, ownerID)
	if err != nil {
		return nil, walletError(err)
	}
	return wallet, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, walletID string, page, pageSize int) (*TransactionListResponse, error) {
	if _, err := s.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}

	page, pageSize = normalizePage(page, pageSize)
	transactions, total, err := s.transactionRepo.ListByWallet(ctx, walletID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("查询流水失败: %w", err)
	}

	return &TransactionListResponse{
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
		Transactions: transactions,
	}, nil
}

// TotalBalance 全部钱包余额之和，用于对账
func (s *WalletService) TotalBalance(ctx context.Context) (int64, error) {
	return s.walletRepo.SumBalances(ctx)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
