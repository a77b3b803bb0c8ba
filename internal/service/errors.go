package service

import "errors"

// 顾客核验错误
var (
	ErrTokenExpired      = errors.New("verification token expired")
	ErrTokenMalformed    = errors.New("verification token malformed")
	ErrCustomerUnknown   = errors.New("unknown customer")
	ErrBackupCodeInvalid = errors.New("invalid backup code")
)

// 积分入账错误
var (
	ErrInvalidAmount   = errors.New("amount must be a positive integer")
	ErrAccountLocked   = errors.New("loyalty account is locked by another writer")
	ErrInvalidReason   = errors.New("invalid ledger reason")
	ErrInvalidKey      = errors.New("idempotency key is required")
	ErrAccountNotFound = errors.New("loyalty account not found")
)

// 兑换错误
var (
	ErrInsufficientBalance          = errors.New("insufficient point balance")
	ErrDailyRedemptionLimitExceeded = errors.New("daily redemption limit exceeded")
	ErrRewardNotFound               = errors.New("reward not found")
	ErrRewardInactive               = errors.New("reward is inactive")
	ErrRewardInvalid                = errors.New("reward is invalid")
)

// 活动错误
var (
	ErrCampaignFull              = errors.New("campaign is full")
	ErrCampaignTerminal          = errors.New("campaign has ended")
	ErrCampaignInvalidTransition = errors.New("invalid campaign transition")
	ErrCampaignNotFound          = errors.New("campaign not found")
	ErrCampaignNotActive         = errors.New("campaign is not active")
	ErrCampaignAudienceMismatch  = errors.New("customer is outside the campaign audience")
	ErrCampaignInvalid           = errors.New("campaign is invalid")
	ErrCampaignAlreadyJoined     = errors.New("campaign bonus already granted")
)

// 流失召回错误
var (
	ErrChurnCandidateNotFound = errors.New("churn candidate not found")
	ErrChurnCandidateInvalid  = errors.New("churn candidate cannot be applied")
	ErrChurnApprovalRequired  = errors.New("churn candidate requires approval")
	ErrChurnDispatchBusy      = errors.New("churn dispatch already running for merchant")
)

// 商户设置错误
var (
	ErrMerchantRequired  = errors.New("merchant id is required")
	ErrMerchantTimezone  = errors.New("invalid merchant timezone")
	ErrMerchantLimitSign = errors.New("merchant limits must not be negative")
)

// IsVerificationError 是否为顾客核验错误
func IsVerificationError(err error) bool {
	return isAnyOf(err, ErrTokenExpired, ErrTokenMalformed, ErrCustomerUnknown, ErrBackupCodeInvalid)
}

// IsAccrualError 是否为积分入账错误
func IsAccrualError(err error) bool {
	return isAnyOf(err, ErrInvalidAmount, ErrAccountLocked, ErrInvalidReason, ErrInvalidKey)
}

// IsRedemptionError 是否为兑换错误
func IsRedemptionError(err error) bool {
	return isAnyOf(err, ErrInsufficientBalance, ErrDailyRedemptionLimitExceeded, ErrRewardNotFound, ErrRewardInactive)
}

// IsCampaignError 是否为活动错误
func IsCampaignError(err error) bool {
	return isAnyOf(err,
		ErrCampaignFull,
		ErrCampaignTerminal,
		ErrCampaignInvalidTransition,
		ErrCampaignNotFound,
		ErrCampaignNotActive,
		ErrCampaignAudienceMismatch,
		ErrCampaignInvalid,
		ErrCampaignAlreadyJoined,
	)
}

func isAnyOf(err error, targets ...error) bool {
	if err == nil {
		return false
	}
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
