package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/beanstamp/internal/config"
	"github.com/beanstamp/internal/constants"
	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/provider"
	"github.com/beanstamp/internal/repository"
	"github.com/beanstamp/internal/service"
)

func setupWorkerTestConsumer(t *testing.T) *Consumer {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_%d?mode=memory&cache=shared", time.Now().UnixNano())
	if err := models.InitDB("sqlite", dsn, "release", models.DBPoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}); err != nil {
		t.Fatalf("init db failed: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := &config.Config{}
	cfg.StaffJWT.SecretKey = "staff-secret"
	cfg.CustomerJWT.SecretKey = "customer-secret"
	cfg.Verification.WindowSeconds = 60
	cfg.Verification.BackupCodeLength = 6
	cfg.Redemption.DailyLimit = 1
	cfg.Redemption.Timezone = "UTC"
	cfg.Churn.DailySendCap = 10
	cfg.Churn.Cron = "@every 1h"
	cfg.Campaign.SweepIntervalSeconds = 30
	return NewConsumer(provider.NewContainer(cfg))
}

func TestRunChurnCycleScoresAndDispatchesEveryMerchant(t *testing.T) {
	consumer := setupWorkerTestConsumer(t)
	ctx := context.Background()
	for i, merchant := range []string{"m-1", "m-2"} {
		_, err := consumer.AccrualService.Credit(ctx, service.CreditInput{
			MerchantID:     merchant,
			CustomerID:     "cust-1",
			Amount:         10,
			Reason:         constants.LedgerReasonManualCredit,
			IdempotencyKey: fmt.Sprintf("visit-%d", i),
			StaffID:        "staff-1",
		})
		if err != nil {
			t.Fatalf("credit %s failed: %v", merchant, err)
		}
	}

	if err := consumer.RunChurnCycle(ctx, ""); err != nil {
		t.Fatalf("churn cycle failed: %v", err)
	}
	candidates, total, err := consumer.ChurnService.ListCandidates(ctx, repository.ChurnCandidateListFilter{MerchantID: "m-1", Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("list candidates failed: %v", err)
	}
	if total != 0 || len(candidates) != 0 {
		t.Fatalf("recent visitor should not be flagged, got %d", total)
	}
	if err := consumer.RunChurnCycle(ctx, "m-2"); err != nil {
		t.Fatalf("single merchant churn cycle failed: %v", err)
	}
}

func TestSchedulerMaintenanceAdvancesCampaigns(t *testing.T) {
	consumer := setupWorkerTestConsumer(t)
	ctx := context.Background()
	now := time.Now().UTC()
	campaign, err := consumer.CampaignService.CreateCampaign(ctx, service.CreateCampaignInput{
		MerchantID: "m-1",
		Name:       "Morning rush",
		Type:       constants.CampaignTypeEvent,
		StartAt:    now.Add(time.Hour),
		EndAt:      now.Add(3 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create campaign failed: %v", err)
	}
	if campaign.Status != constants.CampaignStatusScheduled {
		t.Fatalf("expected scheduled campaign, got %s", campaign.Status)
	}

	scheduler, err := NewScheduler(consumer)
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}
	if scheduler.sweepInterval != 30*time.Second {
		t.Fatalf("sweep interval want 30s got %s", scheduler.sweepInterval)
	}
	scheduler.now = func() time.Time { return now.Add(2 * time.Hour) }
	scheduler.runMaintenance(ctx)

	got, err := consumer.CampaignService.GetCampaign(ctx, "m-1", campaign.ID)
	if err != nil {
		t.Fatalf("get campaign failed: %v", err)
	}
	if got.Status != constants.CampaignStatusActive {
		t.Fatalf("expected active campaign after sweep, got %s", got.Status)
	}
}

func TestSchedulerMaintenanceNormalizesLocalClock(t *testing.T) {
	consumer := setupWorkerTestConsumer(t)
	ctx := context.Background()
	now := time.Now().UTC()
	campaign, err := consumer.CampaignService.CreateCampaign(ctx, service.CreateCampaignInput{
		MerchantID: "m-1",
		Name:       "Late shift",
		Type:       constants.CampaignTypeEvent,
		StartAt:    now.Add(time.Hour),
		EndAt:      now.Add(3 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create campaign failed: %v", err)
	}

	scheduler, err := NewScheduler(consumer)
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}
	// 墙上时间比 UTC 晚 12 小时的时区
	west := time.FixedZone("UTC-12", -12*60*60)
	scheduler.now = func() time.Time { return now.Add(2 * time.Hour).In(west) }
	scheduler.runMaintenance(ctx)

	got, err := consumer.CampaignService.GetCampaign(ctx, "m-1", campaign.ID)
	if err != nil {
		t.Fatalf("get campaign failed: %v", err)
	}
	if got.Status != constants.CampaignStatusActive {
		t.Fatalf("expected active campaign with local clock, got %s", got.Status)
	}

	scheduler.now = func() time.Time { return now.Add(4 * time.Hour).In(west) }
	scheduler.runMaintenance(ctx)
	got, err = consumer.CampaignService.GetCampaign(ctx, "m-1", campaign.ID)
	if err != nil {
		t.Fatalf("get campaign failed: %v", err)
	}
	if got.Status != constants.CampaignStatusEnded {
		t.Fatalf("expected ended campaign with local clock, got %s", got.Status)
	}
}

func TestNewSchedulerRejectsInvalidCron(t *testing.T) {
	consumer := setupWorkerTestConsumer(t)
	consumer.Config.Churn.Cron = "not a cron"
	if _, err := NewScheduler(consumer); err == nil {
		t.Fatalf("expected invalid cron spec to fail")
	}
}

func TestSchedulerStartStopsWithContext(t *testing.T) {
	consumer := setupWorkerTestConsumer(t)
	scheduler, err := NewScheduler(consumer)
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("scheduler start returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler did not stop after context cancel")
	}
	if err := scheduler.Stop(context.Background()); err != nil {
		t.Fatalf("scheduler stop failed: %v", err)
	}
}
