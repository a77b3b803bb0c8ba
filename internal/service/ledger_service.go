package service

import (
	"context"
	"strings"

	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/repository"
)

// AccountStatement 账户余额与流水核对结果
type AccountStatement struct {
	Account          *models.LoyaltyAccount `json:"account"`
	LedgerSum        int64                  `json:"ledger_sum"`
	LedgerConsistent bool                   `json:"ledger_consistent"`
}

// LedgerService 积分账本查询服务
type LedgerService struct {
	loyaltyRepo repository.LoyaltyRepository
}

// NewLedgerService 创建积分账本查询服务
func NewLedgerService(loyaltyRepo repository.LoyaltyRepository) *LedgerService {
	return &LedgerService{loyaltyRepo: loyaltyRepo}
}

// GetStatement 获取顾客在商户下的账户，并核对余额等于流水合计
func (s *LedgerService) GetStatement(ctx context.Context, merchantID, customerID string) (*AccountStatement, error) {
	account, err := s.loyaltyRepo.GetAccount(customerID, merchantID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	sum, err := s.loyaltyRepo.SumDeltas(account.ID)
	if err != nil {
		return nil, err
	}
	return &AccountStatement{
		Account:          account,
		LedgerSum:        sum,
		LedgerConsistent: sum == account.PointBalance && account.PointBalance >= 0,
	}, nil
}

// ListCustomerAccounts 获取顾客全部商户的积分账户
func (s *LedgerService) ListCustomerAccounts(ctx context.Context, customerID string) ([]models.LoyaltyAccount, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, ErrCustomerUnknown
	}
	return s.loyaltyRepo.ListAccountsByCustomer(customerID)
}

// ListEntries 分页查询顾客在商户下的积分流水
func (s *LedgerService) ListEntries(ctx context.Context, merchantID, customerID string, filter repository.LedgerEntryListFilter) ([]models.LedgerEntry, int64, error) {
	account, err := s.loyaltyRepo.GetAccount(customerID, merchantID)
	if err != nil {
		return nil, 0, err
	}
	if account == nil {
		return nil, 0, ErrAccountNotFound
	}
	filter.LoyaltyAccountID = account.ID
	return s.loyaltyRepo.ListEntries(filter)
}
