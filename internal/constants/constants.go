package constants

// 积分流水原因常量
const (
	LedgerReasonScanCredit       = "scan_credit"
	LedgerReasonManualCredit     = "manual_credit"
	LedgerReasonRewardRedemption = "reward_redemption"
	LedgerReasonCampaignBonus    = "campaign_bonus"
)

// 活动类型常量
const (
	CampaignTypeDiscount = "discount"
	CampaignTypeReward   = "reward"
	CampaignTypeEvent    = "event"
)

// 活动状态常量
const (
	CampaignStatusScheduled = "scheduled"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusEnded     = "ended"
)

// 活动暂停原因常量
const (
	CampaignPausedManual   = "manual"
	CampaignPausedCapacity = "capacity"
)

// 活动目标人群规则常量
const (
	AudienceAll       = "all"
	AudienceNew       = "new"
	AudienceReturning = "returning"
	AudienceAtRisk    = "at_risk"
)

// 流失风险等级常量
const (
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// 召回优惠类型常量
const (
	OfferTypeBonusPoints  = "bonus_points"
	OfferTypeDoublePoints = "double_points"
	OfferTypeFreeItem     = "free_item"
)

// 流失候选状态常量
const (
	ChurnCandidateStatusPending  = "pending"
	ChurnCandidateStatusApproved = "approved"
	ChurnCandidateStatusSent     = "sent"
	ChurnCandidateStatusRedeemed = "redeemed"
	ChurnCandidateStatusCleared  = "cleared"
)

// 店员角色常量
const (
	StaffRoleBarista = "barista"
	StaffRoleManager = "manager"
)

// 队列常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型常量
const (
	TaskChurnScorePass = "loyalty:churn_score_pass"
	TaskChurnOffer     = "loyalty:churn_offer"
)

// 扫码凭证前缀
const ScanPayloadPrefix = "u:"
