package service

import (
	"context"
	"strings"
	"time"

	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/repository"
)

// CreateRewardInput 创建奖励输入
type CreateRewardInput struct {
	MerchantID string
	Title      string
	PointCost  int64
	IsActive   *bool
}

// RewardService 奖励目录服务
type RewardService struct {
	repo repository.RewardRepository
}

// NewRewardService 创建奖励目录服务
func NewRewardService(repo repository.RewardRepository) *RewardService {
	return &RewardService{repo: repo}
}

// CreateReward 创建奖励
func (s *RewardService) CreateReward(ctx context.Context, input CreateRewardInput) (*models.Reward, error) {
	merchantID := strings.TrimSpace(input.MerchantID)
	title := strings.TrimSpace(input.Title)
	if merchantID == "" {
		return nil, ErrMerchantRequired
	}
	if title == "" || input.PointCost <= 0 {
		return nil, ErrRewardInvalid
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	now := time.Now().UTC()
	reward := &models.Reward{
		MerchantID: merchantID,
		Title:      title,
		PointCost:  input.PointCost,
		IsActive:   active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(reward); err != nil {
		return nil, err
	}
	return reward, nil
}

// ListRewards 分页查询商户奖励
func (s *RewardService) ListRewards(ctx context.Context, filter repository.RewardListFilter) ([]models.Reward, int64, error) {
	if strings.TrimSpace(filter.MerchantID) == "" {
		return nil, 0, ErrMerchantRequired
	}
	return s.repo.List(filter)
}
