package worker

import (
	"context"
	"errors"
	"strings"

	"github.com/beanstamp/internal/logger"
	"github.com/beanstamp/internal/provider"
	"github.com/beanstamp/internal/queue"
	"github.com/beanstamp/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskChurnScorePass, c.handleChurnScorePass)
}

func (c *Consumer) handleChurnScorePass(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_churn_score_pass_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseChurnScorePassPayload(task)
	if err != nil {
		logger.Warnw("worker_churn_score_pass_unmarshal_failed", "error", err)
		return err
	}
	return c.RunChurnCycle(ctx, payload.MerchantID)
}

// RunChurnCycle 评分后按商户发送召回优惠，merchantID 为空表示全部商户
func (c *Consumer) RunChurnCycle(ctx context.Context, merchantID string) error {
	if c.ChurnService == nil {
		logger.Warnw("worker_churn_cycle_skip_service_nil")
		return nil
	}
	merchantID = strings.TrimSpace(merchantID)
	pass, err := c.ChurnService.RunScoringPass(ctx, merchantID)
	if err != nil {
		logger.Warnw("worker_churn_score_pass_failed", "merchant_id", merchantID, "error", err)
		return err
	}
	logger.Infow("worker_churn_score_pass_done",
		"merchant_id", merchantID,
		"merchants", pass.Merchants,
		"scored", pass.Scored,
		"flagged", pass.Flagged,
		"cleared", pass.Cleared,
	)

	merchants := []string{merchantID}
	if merchantID == "" {
		merchants, err = c.LoyaltyRepo.ListMerchantIDs()
		if err != nil {
			logger.Warnw("worker_churn_list_merchants_failed", "error", err)
			return err
		}
	}
	var dispatchErr error
	for _, id := range merchants {
		result, err := c.ChurnService.DispatchOffers(ctx, id)
		if err != nil {
			if errors.Is(err, service.ErrMerchantRequired) {
				continue
			}
			if errors.Is(err, service.ErrChurnDispatchBusy) {
				logger.Infow("worker_churn_dispatch_skipped", "merchant_id", id, "reason", "busy")
				continue
			}
			logger.Warnw("worker_churn_dispatch_failed", "merchant_id", id, "error", err)
			dispatchErr = errors.Join(dispatchErr, err)
			continue
		}
		if result.Sent > 0 {
			logger.Infow("worker_churn_dispatch_done", "merchant_id", id, "sent", result.Sent, "remaining", result.Remaining)
		}
	}
	return dispatchErr
}
