package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/beanstamp/internal/logger"
	"github.com/beanstamp/internal/queue"

	"github.com/robfig/cron/v3"
)

const (
	defaultSweepInterval   = time.Minute
	defaultChurnSchedule   = "30 3 * * *"
	verificationPurgeGrace = 24 * time.Hour
)

// Scheduler 周期任务：按 cron 触发流失评分，按固定间隔推进活动状态并清理过期核验会话
type Scheduler struct {
	name          string
	consumer      *Consumer
	cron          *cron.Cron
	sweepInterval time.Duration
	now           func() time.Time
}

// NewScheduler 创建周期任务调度器
func NewScheduler(consumer *Consumer) (*Scheduler, error) {
	if consumer == nil || consumer.Config == nil {
		return nil, errors.New("consumer is nil")
	}
	cfg := consumer.Config
	sweepInterval := time.Duration(cfg.Campaign.SweepIntervalSeconds) * time.Second
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	s := &Scheduler{
		name:          "scheduler",
		consumer:      consumer,
		cron:          cron.New(),
		sweepInterval: sweepInterval,
		now:           time.Now,
	}

	spec := strings.TrimSpace(cfg.Churn.Cron)
	if spec == "" {
		spec = defaultChurnSchedule
	}
	if _, err := s.cron.AddFunc(spec, s.triggerChurnPass); err != nil {
		return nil, err
	}
	return s, nil
}

// Name 服务名称
func (s *Scheduler) Name() string {
	if s == nil || s.name == "" {
		return "scheduler"
	}
	return s.name
}

// Start 启动调度，阻塞至 ctx 结束
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil || s.cron == nil {
		return errors.New("scheduler not initialized")
	}
	s.cron.Start()
	logger.Infow("scheduler_started", "sweep_interval_seconds", int(s.sweepInterval.Seconds()))

	s.runMaintenance(ctx)
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runMaintenance(ctx)
		}
	}
}

// Stop 停止调度，等待进行中的 cron 任务结束
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil || s.cron == nil {
		return nil
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	logger.Infow("scheduler_stopped")
	return nil
}

// triggerChurnPass 队列可用时投递任务，否则在当前进程内执行
func (s *Scheduler) triggerChurnPass() {
	client := s.consumer.QueueClient
	if client.Enabled() {
		if err := client.EnqueueChurnScorePass(queue.ChurnScorePassPayload{}); err != nil {
			logger.Warnw("scheduler_enqueue_churn_pass_failed", "error", err)
		}
		return
	}
	if err := s.consumer.RunChurnCycle(context.Background(), ""); err != nil {
		logger.Warnw("scheduler_churn_cycle_failed", "error", err)
	}
}

func (s *Scheduler) runMaintenance(ctx context.Context) {
	if s.consumer.CampaignService != nil {
		// 库中时间按 UTC 存储，比较前统一时区
		result, err := s.consumer.CampaignService.Sweep(ctx, s.now().UTC())
		if err != nil {
			logger.Warnw("scheduler_campaign_sweep_failed", "error", err)
		} else if result.Activated > 0 || result.Ended > 0 {
			logger.Infow("scheduler_campaign_sweep_done", "activated", result.Activated, "ended", result.Ended)
		}
	}
	if s.consumer.CodeVerifier != nil {
		purged, err := s.consumer.CodeVerifier.PurgeExpired(ctx, verificationPurgeGrace)
		if err != nil {
			logger.Warnw("scheduler_verification_purge_failed", "error", err)
		} else if purged > 0 {
			logger.Infow("scheduler_verification_purged", "count", purged)
		}
	}
}
