package shared

import (
	"errors"

	"github.com/beanstamp/internal/http/response"
	"github.com/beanstamp/internal/service"

	"github.com/gin-gonic/gin"
)

// MappedHandlerError 定义业务错误到接口错误响应的映射关系。
type MappedHandlerError struct {
	Target error
	Code   int
	Key    string
}

// RespondWithMappedError 按规则表响应业务错误，未命中时使用兜底码并记录原始错误。
func RespondWithMappedError(c *gin.Context, err error, rules []MappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			RespondError(c, rule.Code, rule.Key, nil)
			return
		}
	}
	RespondError(c, fallbackCode, fallbackKey, err)
}

// ConcatMappedHandlerErrors 合并多组规则
func ConcatMappedHandlerErrors(groups ...[]MappedHandlerError) []MappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]MappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

// VerificationErrorRules 核验错误
var VerificationErrorRules = []MappedHandlerError{
	{Target: service.ErrTokenExpired, Code: response.CodeUnprocessable, Key: "error.token_expired"},
	{Target: service.ErrTokenMalformed, Code: response.CodeBadRequest, Key: "error.token_malformed"},
	{Target: service.ErrCustomerUnknown, Code: response.CodeNotFound, Key: "error.customer_unknown"},
	{Target: service.ErrBackupCodeInvalid, Code: response.CodeBadRequest, Key: "error.backup_code_invalid"},
}

// LedgerErrorRules 入账与扣减的公共错误
var LedgerErrorRules = []MappedHandlerError{
	{Target: service.ErrInvalidAmount, Code: response.CodeBadRequest, Key: "error.invalid_amount"},
	{Target: service.ErrInvalidReason, Code: response.CodeBadRequest, Key: "error.invalid_reason"},
	{Target: service.ErrInvalidKey, Code: response.CodeBadRequest, Key: "error.invalid_key"},
	{Target: service.ErrAccountLocked, Code: response.CodeLocked, Key: "error.account_locked"},
	{Target: service.ErrAccountNotFound, Code: response.CodeNotFound, Key: "error.account_not_found"},
	{Target: service.ErrMerchantRequired, Code: response.CodeBadRequest, Key: "error.merchant_required"},
}

// RedemptionErrorRules 兑换错误
var RedemptionErrorRules = []MappedHandlerError{
	{Target: service.ErrInsufficientBalance, Code: response.CodeConflict, Key: "error.insufficient_balance"},
	{Target: service.ErrDailyRedemptionLimitExceeded, Code: response.CodeConflict, Key: "error.daily_limit_exceeded"},
	{Target: service.ErrRewardNotFound, Code: response.CodeNotFound, Key: "error.reward_not_found"},
	{Target: service.ErrRewardInactive, Code: response.CodeConflict, Key: "error.reward_inactive"},
	{Target: service.ErrRewardInvalid, Code: response.CodeBadRequest, Key: "error.reward_invalid"},
}

// CampaignErrorRules 活动错误
var CampaignErrorRules = []MappedHandlerError{
	{Target: service.ErrCampaignFull, Code: response.CodeConflict, Key: "error.campaign_full"},
	{Target: service.ErrCampaignTerminal, Code: response.CodeConflict, Key: "error.campaign_terminal"},
	{Target: service.ErrCampaignInvalidTransition, Code: response.CodeConflict, Key: "error.campaign_transition"},
	{Target: service.ErrCampaignNotFound, Code: response.CodeNotFound, Key: "error.campaign_not_found"},
	{Target: service.ErrCampaignNotActive, Code: response.CodeConflict, Key: "error.campaign_not_active"},
	{Target: service.ErrCampaignAudienceMismatch, Code: response.CodeForbidden, Key: "error.campaign_audience"},
	{Target: service.ErrCampaignInvalid, Code: response.CodeBadRequest, Key: "error.campaign_invalid"},
	{Target: service.ErrCampaignAlreadyJoined, Code: response.CodeConflict, Key: "error.campaign_already_joined"},
}

// ChurnErrorRules 流失召回错误
var ChurnErrorRules = []MappedHandlerError{
	{Target: service.ErrChurnCandidateNotFound, Code: response.CodeNotFound, Key: "error.churn_candidate_notfound"},
	{Target: service.ErrChurnCandidateInvalid, Code: response.CodeConflict, Key: "error.churn_candidate_invalid"},
	{Target: service.ErrChurnApprovalRequired, Code: response.CodeConflict, Key: "error.churn_approval_required"},
	{Target: service.ErrChurnDispatchBusy, Code: response.CodeLocked, Key: "error.churn_dispatch_busy"},
}

// MerchantErrorRules 商户配置错误
var MerchantErrorRules = []MappedHandlerError{
	{Target: service.ErrMerchantRequired, Code: response.CodeBadRequest, Key: "error.merchant_required"},
	{Target: service.ErrMerchantTimezone, Code: response.CodeBadRequest, Key: "error.merchant_timezone"},
	{Target: service.ErrMerchantLimitSign, Code: response.CodeBadRequest, Key: "error.merchant_limit_sign"},
}
