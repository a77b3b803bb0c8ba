package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/beanstamp/internal/constants"
	"github.com/beanstamp/internal/repository"

	"github.com/shopspring/decimal"
)

func TestThresholdRiskScorer(t *testing.T) {
	scorer := NewThresholdRiskScorer()
	cases := []struct {
		name     string
		days     int
		interval decimal.Decimal
		level    string
		offer    string
	}{
		{"long absence", 21, decimal.NewFromInt(6), constants.RiskLevelHigh, constants.OfferTypeFreeItem},
		{"high multiplier", 8, decimal.NewFromInt(2), constants.RiskLevelHigh, constants.OfferTypeFreeItem},
		{"medium by days", 15, decimal.NewFromInt(10), constants.RiskLevelMedium, constants.OfferTypeDoublePoints},
		{"medium by multiplier", 9, decimal.NewFromInt(3), constants.RiskLevelMedium, constants.OfferTypeDoublePoints},
		{"low", 11, decimal.NewFromInt(7), constants.RiskLevelLow, constants.OfferTypeBonusPoints},
		{"healthy", 5, decimal.NewFromInt(7), "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score := scorer.Score(tc.days, tc.interval)
			if score.Level != tc.level || score.OfferType != tc.offer {
				t.Fatalf("expected %s/%s, got %s/%s (multiplier %s)", tc.level, tc.offer, score.Level, score.OfferType, score.Multiplier)
			}
			if score.Flagged() != (tc.level != "") {
				t.Fatalf("unexpected flagged state for %s", tc.name)
			}
		})
	}

	if got := scorer.Score(21, decimal.NewFromInt(6)).Multiplier; !got.Equal(decimal.NewFromFloat(3.5)) {
		t.Fatalf("expected multiplier 3.5, got %s", got)
	}
}

func TestExpectedVisitInterval(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	visits := []time.Time{base, base.AddDate(0, 0, 6), base.AddDate(0, 0, 12)}
	if got := ExpectedVisitInterval(visits, 7); !got.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected interval 6, got %s", got)
	}
	if got := ExpectedVisitInterval(visits[:1], 7); !got.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected fallback 7, got %s", got)
	}
	sameDay := []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour)}
	if got := ExpectedVisitInterval(sameDay, 7); !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected interval clamped to 1, got %s", got)
	}
}

// seedVisits 以固定间隔为顾客入账，返回最后一次到店时间
func seedVisits(t *testing.T, env *loyaltyTestEnv, customerID string, first time.Time, gapDays, visits int) time.Time {
	t.Helper()
	at := first
	for i := 0; i < visits; i++ {
		at = first.AddDate(0, 0, i*gapDays)
		env.setNow(at)
		env.credit(t, "m-1", customerID, fmt.Sprintf("%s-visit-%d", customerID, i), 5)
	}
	return at
}

func TestChurnScoringFlagsHighRiskCustomer(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	first := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	last := seedVisits(t, env, "cust-lapsed", first, 6, 3)
	seedVisits(t, env, "cust-regular", last.AddDate(0, 0, 16), 2, 3)

	env.setNow(last.AddDate(0, 0, 21))
	result, err := env.churn.RunScoringPass(context.Background(), "")
	if err != nil {
		t.Fatalf("scoring pass failed: %v", err)
	}
	if result.Merchants != 1 || result.Scored != 2 || result.Flagged != 1 {
		t.Fatalf("unexpected pass result: %+v", result)
	}

	candidate, err := env.churnRepo.GetByCustomerMerchant("cust-lapsed", "m-1")
	if err != nil || candidate == nil {
		t.Fatalf("expected candidate, err=%v", err)
	}
	if candidate.RiskLevel != constants.RiskLevelHigh || candidate.SuggestedOfferType != constants.OfferTypeFreeItem {
		t.Fatalf("unexpected candidate: %+v", candidate)
	}
	if candidate.DaysSinceLastVisit != 21 || !candidate.RiskMultiplier.Decimal.Equal(decimal.NewFromFloat(3.5)) {
		t.Fatalf("unexpected score: days=%d multiplier=%s", candidate.DaysSinceLastVisit, candidate.RiskMultiplier.Decimal)
	}
	if candidate.Status != constants.ChurnCandidateStatusPending {
		t.Fatalf("expected pending candidate, got %s", candidate.Status)
	}

	regular, err := env.churnRepo.GetByCustomerMerchant("cust-regular", "m-1")
	if err != nil {
		t.Fatalf("get regular candidate failed: %v", err)
	}
	if regular != nil {
		t.Fatalf("expected regular customer not flagged, got %+v", regular)
	}
}

func TestChurnDispatchRequiresApprovalAndHonorsCap(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	if _, err := env.settings.Update(context.Background(), MerchantSettingInput{
		MerchantID:          "m-1",
		ChurnDailySendCap:   1,
		ChurnManualApproval: true,
	}); err != nil {
		t.Fatalf("update merchant setting failed: %v", err)
	}
	first := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	seedVisits(t, env, "cust-a", first, 5, 2)
	last := seedVisits(t, env, "cust-b", first, 5, 2)

	env.setNow(last.AddDate(0, 0, 30))
	if _, err := env.churn.RunScoringPass(context.Background(), "m-1"); err != nil {
		t.Fatalf("scoring pass failed: %v", err)
	}

	dispatched, err := env.churn.DispatchOffers(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if dispatched.Sent != 0 || len(env.sender.sent()) != 0 {
		t.Fatalf("expected nothing sent before approval, got %+v", dispatched)
	}

	candidates, total, err := env.churn.ListCandidates(context.Background(), repository.ChurnCandidateListFilter{MerchantID: "m-1"})
	if err != nil || total != 2 {
		t.Fatalf("expected 2 candidates, total=%d err=%v", total, err)
	}
	for _, candidate := range candidates {
		if _, err := env.churn.ApproveCandidate(context.Background(), "m-1", candidate.ID, "manager-1"); err != nil {
			t.Fatalf("approve failed: %v", err)
		}
	}
	if _, err := env.churn.ApproveCandidate(context.Background(), "m-1", candidates[0].ID, "manager-1"); !errors.Is(err, ErrChurnCandidateInvalid) {
		t.Fatalf("expected ErrChurnCandidateInvalid on double approve, got %v", err)
	}
	if _, err := env.churn.ApproveCandidate(context.Background(), "m-2", candidates[0].ID, "manager-1"); !errors.Is(err, ErrChurnCandidateNotFound) {
		t.Fatalf("expected ErrChurnCandidateNotFound across merchants, got %v", err)
	}

	dispatched, err = env.churn.DispatchOffers(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if dispatched.Sent != 1 || len(env.sender.sent()) != 1 {
		t.Fatalf("expected exactly one offer under cap, got %+v", dispatched)
	}
	dispatched, err = env.churn.DispatchOffers(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if dispatched.Sent != 0 {
		t.Fatalf("expected cap to hold for the day, got %+v", dispatched)
	}

	env.setNow(env.churn.now().Add(24 * time.Hour))
	dispatched, err = env.churn.DispatchOffers(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if dispatched.Sent != 1 || len(env.sender.sent()) != 2 {
		t.Fatalf("expected second offer next day, got %+v", dispatched)
	}
}

func TestChurnConcurrentDispatchHonorsDailyCap(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	if _, err := env.settings.Update(context.Background(), MerchantSettingInput{MerchantID: "m-1", ChurnDailySendCap: 2}); err != nil {
		t.Fatalf("update merchant setting failed: %v", err)
	}
	first := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	var last time.Time
	for i := 0; i < 5; i++ {
		last = seedVisits(t, env, fmt.Sprintf("cust-%d", i), first, 5, 2)
	}
	env.setNow(last.AddDate(0, 0, 30))
	if _, err := env.churn.RunScoringPass(context.Background(), "m-1"); err != nil {
		t.Fatalf("scoring pass failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]DispatchResult, 4)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.churn.DispatchOffers(context.Background(), "m-1")
		}(i)
	}
	wg.Wait()

	total := 0
	for i, err := range errs {
		if err != nil {
			t.Fatalf("dispatch %d failed: %v", i, err)
		}
		total += results[i].Sent
	}
	if total != 2 || len(env.sender.sent()) != 2 {
		t.Fatalf("expected daily cap of 2 across concurrent dispatches, sent=%d offers=%d", total, len(env.sender.sent()))
	}
}

func TestChurnDispatchFailureKeepsCandidateUnsent(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	if _, err := env.settings.Update(context.Background(), MerchantSettingInput{MerchantID: "m-1", ChurnDailySendCap: 5}); err != nil {
		t.Fatalf("update merchant setting failed: %v", err)
	}
	last := seedVisits(t, env, "cust-a", time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), 5, 2)
	env.setNow(last.AddDate(0, 0, 30))
	if _, err := env.churn.RunScoringPass(context.Background(), "m-1"); err != nil {
		t.Fatalf("scoring pass failed: %v", err)
	}

	env.sender.err = errors.New("broker unavailable")
	if _, err := env.churn.DispatchOffers(context.Background(), "m-1"); err == nil {
		t.Fatalf("expected dispatch error")
	}
	candidate, err := env.churnRepo.GetByCustomerMerchant("cust-a", "m-1")
	if err != nil || candidate == nil {
		t.Fatalf("get candidate failed: %v", err)
	}
	if candidate.OfferSentAt != nil || candidate.Status != constants.ChurnCandidateStatusPending {
		t.Fatalf("expected candidate to stay unsent, got %+v", candidate)
	}
}

func TestCreditClearsOpenChurnCandidate(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	last := seedVisits(t, env, "cust-a", time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), 5, 2)
	env.setNow(last.AddDate(0, 0, 30))
	if _, err := env.churn.RunScoringPass(context.Background(), "m-1"); err != nil {
		t.Fatalf("scoring pass failed: %v", err)
	}

	env.setNow(last.AddDate(0, 0, 31))
	env.credit(t, "m-1", "cust-a", "comeback", 5)

	candidate, err := env.churnRepo.GetByCustomerMerchant("cust-a", "m-1")
	if err != nil || candidate == nil {
		t.Fatalf("get candidate failed: %v", err)
	}
	if candidate.Status != constants.ChurnCandidateStatusCleared {
		t.Fatalf("expected cleared candidate, got %s", candidate.Status)
	}
}

func TestCreditRedeemsSentChurnOffer(t *testing.T) {
	env := setupLoyaltyTestEnv(t)
	if _, err := env.settings.Update(context.Background(), MerchantSettingInput{MerchantID: "m-1", ChurnDailySendCap: 5}); err != nil {
		t.Fatalf("update merchant setting failed: %v", err)
	}
	last := seedVisits(t, env, "cust-a", time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), 5, 2)
	env.setNow(last.AddDate(0, 0, 30))
	if _, err := env.churn.RunScoringPass(context.Background(), "m-1"); err != nil {
		t.Fatalf("scoring pass failed: %v", err)
	}
	if _, err := env.churn.DispatchOffers(context.Background(), "m-1"); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	offers := env.sender.sent()
	if len(offers) != 1 {
		t.Fatalf("expected one offer without manual approval, got %d", len(offers))
	}

	env.setNow(last.AddDate(0, 0, 32))
	result, err := env.accrual.Credit(context.Background(), CreditInput{
		MerchantID:       "m-1",
		CustomerID:       "cust-a",
		Amount:           10,
		IdempotencyKey:   "offer-visit",
		ChurnCandidateID: offers[0].CandidateID,
	})
	if err != nil {
		t.Fatalf("credit with offer failed: %v", err)
	}
	if result.Entry.ChurnCandidateID == nil || *result.Entry.ChurnCandidateID != offers[0].CandidateID {
		t.Fatalf("expected entry linked to candidate, got %+v", result.Entry)
	}
	candidate, err := env.churnRepo.GetByID(offers[0].CandidateID)
	if err != nil || candidate == nil {
		t.Fatalf("get candidate failed: %v", err)
	}
	if candidate.Status != constants.ChurnCandidateStatusRedeemed || candidate.OfferRedeemedAt == nil {
		t.Fatalf("expected redeemed candidate, got %+v", candidate)
	}

	_, err = env.accrual.Credit(context.Background(), CreditInput{
		MerchantID:       "m-1",
		CustomerID:       "cust-a",
		Amount:           10,
		IdempotencyKey:   "offer-visit-again",
		ChurnCandidateID: offers[0].CandidateID,
	})
	if !errors.Is(err, ErrChurnCandidateInvalid) {
		t.Fatalf("expected ErrChurnCandidateInvalid on second use, got %v", err)
	}
}
