package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/beanstamp/internal/constants"
	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/repository"
)

func createTestCampaign(t *testing.T, env *loyaltyTestEnv, startOffset, endOffset time.Duration, limit *int, audience string) *models.Campaign {
	t.Helper()
	now := env.campaigns.now()
	campaign, err := env.campaigns.CreateCampaign(context.Background(), CreateCampaignInput{
		MerchantID:         "m-1",
		Name:               "Latte week",
		Type:               constants.CampaignTypeDiscount,
		StartAt:            now.Add(startOffset),
		EndAt:              now.Add(endOffset),
		TargetAudienceRule: audience,
		PersonLimit:        limit,
	})
	if err != nil {
		t.Fatalf("create campaign failed: %v", err)
	}
	return campaign
}

func intPtr(v int) *int { return &v }

func TestCampaignPersonLimitPausesAtCapacity(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	campaign := createTestCampaign(t, env, -time.Hour, 24*time.Hour, intPtr(2), "")
	if campaign.Status != constants.CampaignStatusActive {
		t.Fatalf("expected active campaign, got %s", campaign.Status)
	}

	for _, customer := range []string{"cust-a", "cust-b"} {
		if _, err := env.campaigns.RecordParticipation(context.Background(), "m-1", campaign.ID, customer); err != nil {
			t.Fatalf("participation of %s failed: %v", customer, err)
		}
	}

	_, err := env.campaigns.RecordParticipation(context.Background(), "m-1", campaign.ID, "cust-d")
	if !errors.Is(err, ErrCampaignFull) {
		t.Fatalf("expected ErrCampaignFull, got %v", err)
	}

	latest, err := env.campaigns.GetCampaign(context.Background(), "m-1", campaign.ID)
	if err != nil {
		t.Fatalf("get campaign failed: %v", err)
	}
	if latest.Status != constants.CampaignStatusPaused || latest.PausedReason != constants.CampaignPausedCapacity {
		t.Fatalf("expected capacity pause, got status=%s reason=%s", latest.Status, latest.PausedReason)
	}
	if latest.ParticipantCount != 2 {
		t.Fatalf("expected participant count 2, got %d", latest.ParticipantCount)
	}

	again, err := env.campaigns.RecordParticipation(context.Background(), "m-1", campaign.ID, "cust-a")
	if err != nil {
		t.Fatalf("existing participant should be returned: %v", err)
	}
	if again.CustomerID != "cust-a" {
		t.Fatalf("unexpected participation: %+v", again)
	}
}

func TestCampaignConcurrentJoinsNeverExceedLimit(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	campaign := createTestCampaign(t, env, -time.Hour, 24*time.Hour, intPtr(3), constants.AudienceAll)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.campaigns.RecordParticipation(context.Background(), "m-1", campaign.ID, fmt.Sprintf("cust-%02d", i))
		}(i)
	}
	wg.Wait()

	joined := 0
	for _, err := range errs {
		switch {
		case err == nil:
			joined++
		case errors.Is(err, ErrCampaignFull):
		default:
			t.Fatalf("unexpected participation error: %v", err)
		}
	}
	if joined != 3 {
		t.Fatalf("expected 3 participants, got %d", joined)
	}
	count, err := env.campaignRepo.CountParticipations(campaign.ID)
	if err != nil {
		t.Fatalf("count participations failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 participation rows, got %d", count)
	}
}

func TestCampaignStatusFollowsTimeWindow(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	start := env.campaigns.now()
	campaign := createTestCampaign(t, env, time.Hour, 2*time.Hour, nil, "")
	if campaign.Status != constants.CampaignStatusScheduled {
		t.Fatalf("expected scheduled, got %s", campaign.Status)
	}

	_, err := env.campaigns.RecordParticipation(context.Background(), "m-1", campaign.ID, "cust-a")
	if !errors.Is(err, ErrCampaignNotActive) {
		t.Fatalf("expected ErrCampaignNotActive before start, got %v", err)
	}

	env.setNow(start.Add(90 * time.Minute))
	active, err := env.campaigns.GetCampaign(context.Background(), "m-1", campaign.ID)
	if err != nil {
		t.Fatalf("get campaign failed: %v", err)
	}
	if active.Status != constants.CampaignStatusActive {
		t.Fatalf("expected active, got %s", active.Status)
	}
	if _, err := env.campaigns.RecordParticipation(context.Background(), "m-1", campaign.ID, "cust-a"); err != nil {
		t.Fatalf("participation while active failed: %v", err)
	}

	env.setNow(start.Add(3 * time.Hour))
	ended, err := env.campaigns.GetCampaign(context.Background(), "m-1", campaign.ID)
	if err != nil {
		t.Fatalf("get campaign failed: %v", err)
	}
	if ended.Status != constants.CampaignStatusEnded {
		t.Fatalf("expected ended, got %s", ended.Status)
	}
	if _, err := env.campaigns.ResumeCampaign(context.Background(), "m-1", campaign.ID, nil); !errors.Is(err, ErrCampaignTerminal) {
		t.Fatalf("expected ErrCampaignTerminal on resume, got %v", err)
	}
	if _, err := env.campaigns.PauseCampaign(context.Background(), "m-1", campaign.ID); !errors.Is(err, ErrCampaignTerminal) {
		t.Fatalf("expected ErrCampaignTerminal on pause, got %v", err)
	}
	if _, err := env.campaigns.RecordParticipation(context.Background(), "m-1", campaign.ID, "cust-b"); !errors.Is(err, ErrCampaignTerminal) {
		t.Fatalf("expected ErrCampaignTerminal on join, got %v", err)
	}
}

func TestCampaignPauseResumeRules(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	campaign := createTestCampaign(t, env, -time.Hour, 24*time.Hour, intPtr(1), "")

	paused, err := env.campaigns.PauseCampaign(context.Background(), "m-1", campaign.ID)
	if err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if paused.Status != constants.CampaignStatusPaused || paused.PausedReason != constants.CampaignPausedManual {
		t.Fatalf("unexpected paused campaign: %+v", paused)
	}
	if _, err := env.campaigns.PauseCampaign(context.Background(), "m-1", campaign.ID); !errors.Is(err, ErrCampaignInvalidTransition) {
		t.Fatalf("expected ErrCampaignInvalidTransition on double pause, got %v", err)
	}
	if _, err := env.campaigns.RecordParticipation(context.Background(), "m-1", campaign.ID, "cust-a"); !errors.Is(err, ErrCampaignNotActive) {
		t.Fatalf("expected ErrCampaignNotActive while paused, got %v", err)
	}

	resumed, err := env.campaigns.ResumeCampaign(context.Background(), "m-1", campaign.ID, nil)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed.Status != constants.CampaignStatusActive {
		t.Fatalf("expected active after resume, got %s", resumed.Status)
	}
	if _, err := env.campaigns.ResumeCampaign(context.Background(), "m-1", campaign.ID, nil); !errors.Is(err, ErrCampaignInvalidTransition) {
		t.Fatalf("expected ErrCampaignInvalidTransition resuming active, got %v", err)
	}

	if _, err := env.campaigns.RecordParticipation(context.Background(), "m-1", campaign.ID, "cust-a"); err != nil {
		t.Fatalf("participation failed: %v", err)
	}
	if _, err := env.campaigns.ResumeCampaign(context.Background(), "m-1", campaign.ID, nil); !errors.Is(err, ErrCampaignFull) {
		t.Fatalf("expected ErrCampaignFull resuming at capacity, got %v", err)
	}
	raised, err := env.campaigns.ResumeCampaign(context.Background(), "m-1", campaign.ID, intPtr(2))
	if err != nil {
		t.Fatalf("resume with higher limit failed: %v", err)
	}
	if raised.PersonLimit == nil || *raised.PersonLimit != 2 {
		t.Fatalf("expected person limit 2, got %v", raised.PersonLimit)
	}
	if _, err := env.campaigns.RecordParticipation(context.Background(), "m-1", campaign.ID, "cust-b"); err != nil {
		t.Fatalf("participation after raise failed: %v", err)
	}
}

func TestCampaignRejectsInvalidInput(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	now := env.campaigns.now()

	cases := []struct {
		name  string
		input CreateCampaignInput
	}{
		{"end before start", CreateCampaignInput{MerchantID: "m-1", Name: "x", Type: constants.CampaignTypeEvent, StartAt: now, EndAt: now.Add(-time.Hour)}},
		{"already over", CreateCampaignInput{MerchantID: "m-1", Name: "x", Type: constants.CampaignTypeEvent, StartAt: now.Add(-2 * time.Hour), EndAt: now.Add(-time.Hour)}},
		{"unknown type", CreateCampaignInput{MerchantID: "m-1", Name: "x", Type: "raffle", StartAt: now, EndAt: now.Add(time.Hour)}},
		{"zero limit", CreateCampaignInput{MerchantID: "m-1", Name: "x", Type: constants.CampaignTypeEvent, StartAt: now, EndAt: now.Add(time.Hour), PersonLimit: intPtr(0)}},
		{"unknown audience", CreateCampaignInput{MerchantID: "m-1", Name: "x", Type: constants.CampaignTypeEvent, StartAt: now, EndAt: now.Add(time.Hour), TargetAudienceRule: "vip"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.campaigns.CreateCampaign(context.Background(), tc.input); !errors.Is(err, ErrCampaignInvalid) {
				t.Fatalf("expected ErrCampaignInvalid, got %v", err)
			}
		})
	}
}

func TestCampaignAudienceRules(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	newcomers := createTestCampaign(t, env, -time.Hour, 24*time.Hour, nil, constants.AudienceNew)
	regulars := createTestCampaign(t, env, -time.Hour, 24*time.Hour, nil, constants.AudienceReturning)
	atRisk := createTestCampaign(t, env, -time.Hour, 24*time.Hour, nil, constants.AudienceAtRisk)

	env.credit(t, "m-1", "cust-regular", "visit-1", 1)
	env.credit(t, "m-1", "cust-regular", "visit-2", 1)

	if _, err := env.campaigns.RecordParticipation(context.Background(), "m-1", newcomers.ID, "cust-first"); err != nil {
		t.Fatalf("newcomer join failed: %v", err)
	}
	if _, err := env.campaigns.RecordParticipation(context.Background(), "m-1", newcomers.ID, "cust-regular"); !errors.Is(err, ErrCampaignAudienceMismatch) {
		t.Fatalf("expected audience mismatch for regular on new campaign, got %v", err)
	}
	if _, err := env.campaigns.RecordParticipation(context.Background(), "m-1", regulars.ID, "cust-regular"); err != nil {
		t.Fatalf("regular join failed: %v", err)
	}
	if _, err := env.campaigns.RecordParticipation(context.Background(), "m-1", atRisk.ID, "cust-regular"); !errors.Is(err, ErrCampaignAudienceMismatch) {
		t.Fatalf("expected audience mismatch without churn candidate, got %v", err)
	}
}

func TestCampaignSweepAdvancesStatuses(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	start := env.campaigns.now()
	upcoming := createTestCampaign(t, env, time.Hour, 48*time.Hour, nil, "")
	closing := createTestCampaign(t, env, -time.Hour, 2*time.Hour, nil, "")
	if _, err := env.campaigns.PauseCampaign(context.Background(), "m-1", closing.ID); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	result, err := env.campaigns.Sweep(context.Background(), start.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Activated != 1 || result.Ended != 1 {
		t.Fatalf("unexpected sweep result: %+v", result)
	}

	items, _, err := env.campaigns.ListCampaigns(context.Background(), repository.CampaignListFilter{MerchantID: "m-1", Status: constants.CampaignStatusEnded})
	if err != nil {
		t.Fatalf("list campaigns failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != closing.ID {
		t.Fatalf("expected only paused campaign to end, got %+v", items)
	}
	latest, err := env.campaignRepo.GetByID(upcoming.ID)
	if err != nil || latest == nil {
		t.Fatalf("get campaign failed: %v", err)
	}
	if latest.Status != constants.CampaignStatusActive {
		t.Fatalf("expected upcoming campaign active, got %s", latest.Status)
	}
}
