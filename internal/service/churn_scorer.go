package service

import (
	"time"

	"github.com/beanstamp/internal/constants"

	"github.com/shopspring/decimal"
)

// RiskScore 单个账户的流失风险评估
type RiskScore struct {
	DaysSinceLastVisit   int
	ExpectedIntervalDays decimal.Decimal
	Multiplier           decimal.Decimal
	Level                string // 空表示不构成候选
	OfferType            string
}

// Flagged 是否需要写入召回候选
func (r RiskScore) Flagged() bool {
	return r.Level != ""
}

// RiskScorer 流失风险评分策略
type RiskScorer interface {
	Score(daysSinceLastVisit int, expectedIntervalDays decimal.Decimal) RiskScore
}

// ThresholdRiskScorer 基于天数与倍数阈值的默认评分
type ThresholdRiskScorer struct {
	HighDays         int
	HighMultiplier   decimal.Decimal
	MediumDays       int
	MediumMultiplier decimal.Decimal
	LowMultiplier    decimal.Decimal
}

// NewThresholdRiskScorer 创建默认阈值评分：20 天或 4 倍为高，15 天或 3 倍为中，1.5 倍起为低
func NewThresholdRiskScorer() *ThresholdRiskScorer {
	return &ThresholdRiskScorer{
		HighDays:         20,
		HighMultiplier:   decimal.NewFromInt(4),
		MediumDays:       15,
		MediumMultiplier: decimal.NewFromInt(3),
		LowMultiplier:    decimal.NewFromFloat(1.5),
	}
}

// Score 计算风险等级与建议优惠
func (s *ThresholdRiskScorer) Score(daysSinceLastVisit int, expectedIntervalDays decimal.Decimal) RiskScore {
	if daysSinceLastVisit < 0 {
		daysSinceLastVisit = 0
	}
	score := RiskScore{
		DaysSinceLastVisit:   daysSinceLastVisit,
		ExpectedIntervalDays: expectedIntervalDays,
		Multiplier:           riskMultiplier(daysSinceLastVisit, expectedIntervalDays),
	}
	switch {
	case daysSinceLastVisit >= s.HighDays || score.Multiplier.GreaterThanOrEqual(s.HighMultiplier):
		score.Level = constants.RiskLevelHigh
	case daysSinceLastVisit >= s.MediumDays || score.Multiplier.GreaterThanOrEqual(s.MediumMultiplier):
		score.Level = constants.RiskLevelMedium
	case score.Multiplier.GreaterThanOrEqual(s.LowMultiplier):
		score.Level = constants.RiskLevelLow
	}
	score.OfferType = offerTypeFor(score.Level)
	return score
}

func riskMultiplier(days int, interval decimal.Decimal) decimal.Decimal {
	if interval.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(days)).Div(interval).Round(2)
}

func offerTypeFor(level string) string {
	switch level {
	case constants.RiskLevelHigh:
		return constants.OfferTypeFreeItem
	case constants.RiskLevelMedium:
		return constants.OfferTypeDoublePoints
	case constants.RiskLevelLow:
		return constants.OfferTypeBonusPoints
	}
	return ""
}

// ExpectedVisitInterval 按到店时间计算平均间隔天数，不足两次到店时使用 fallbackDays
func ExpectedVisitInterval(visits []time.Time, fallbackDays int) decimal.Decimal {
	fallback := decimal.NewFromInt(int64(fallbackDays))
	if fallbackDays <= 0 {
		fallback = decimal.NewFromInt(7)
	}
	if len(visits) < 2 {
		return fallback
	}
	span := visits[len(visits)-1].Sub(visits[0])
	days := decimal.NewFromFloat(span.Hours()).Div(decimal.NewFromInt(24))
	interval := days.Div(decimal.NewFromInt(int64(len(visits) - 1))).Round(2)
	// 同日多次消费不应把间隔压到 1 天以下
	if interval.LessThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return interval
}

// DaysBetween 返回两个时间之间的完整天数
func DaysBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
