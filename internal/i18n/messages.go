package i18n

var messages = map[string]map[string]string{
	LocaleZhCN: {
		"error.unauthorized":             "未授权",
		"error.forbidden":                "无权限访问",
		"error.bad_request":              "请求参数错误",
		"error.not_found":                "资源不存在",
		"error.internal":                 "服务器内部错误",
		"error.jwt_secret_missing":       "服务端未配置令牌密钥",
		"error.auth_header_missing":      "缺少 Authorization 请求头",
		"error.auth_header_invalid":      "Authorization 请求头格式错误",
		"error.token_invalid":            "令牌无效或已过期",
		"error.rate_limited":             "操作过于频繁，请 %d 秒后重试",
		"error.verify_too_many":          "核验尝试过多，请 %d 秒后重试",
		"error.rate_limit_unavailable":   "限流服务暂不可用",
		"error.token_expired":            "核验码已过期，请让顾客刷新",
		"error.token_malformed":          "无法识别的核验码",
		"error.customer_unknown":         "顾客不存在",
		"error.backup_code_invalid":      "备用码无效",
		"error.invalid_amount":           "积分数量无效",
		"error.invalid_reason":           "入账原因无效",
		"error.invalid_key":              "缺少幂等键",
		"error.account_locked":           "账户正在处理其他操作，请稍后重试",
		"error.account_not_found":        "积分账户不存在",
		"error.insufficient_balance":     "积分余额不足",
		"error.daily_limit_exceeded":     "已达今日兑换上限",
		"error.reward_not_found":         "奖励不存在",
		"error.reward_inactive":          "奖励已下架",
		"error.reward_invalid":           "奖励参数无效",
		"error.campaign_full":            "活动名额已满",
		"error.campaign_terminal":        "活动已结束",
		"error.campaign_transition":      "活动当前状态不允许该操作",
		"error.campaign_not_found":       "活动不存在",
		"error.campaign_not_active":      "活动未在进行中",
		"error.campaign_audience":        "顾客不在活动目标人群内",
		"error.campaign_invalid":         "活动参数无效",
		"error.campaign_already_joined":  "顾客已领取过该活动奖励",
		"error.churn_candidate_notfound": "召回候选不存在",
		"error.churn_candidate_invalid":  "召回候选当前状态不允许该操作",
		"error.churn_approval_required":  "召回优惠需店长审批",
		"error.churn_dispatch_busy":      "召回优惠正在发送，请稍后重试",
		"error.merchant_required":        "缺少商户信息",
		"error.merchant_timezone":        "时区无效",
		"error.merchant_limit_sign":      "上限不能为负数",
	},
	LocaleEn: {
		"error.unauthorized":             "Unauthorized",
		"error.forbidden":                "Forbidden",
		"error.bad_request":              "Invalid request",
		"error.not_found":                "Not found",
		"error.internal":                 "Internal server error",
		"error.jwt_secret_missing":       "Token secret is not configured",
		"error.auth_header_missing":      "Missing Authorization header",
		"error.auth_header_invalid":      "Malformed Authorization header",
		"error.token_invalid":            "Token is invalid or expired",
		"error.rate_limited":             "Too many requests, retry in %d seconds",
		"error.verify_too_many":          "Too many verification attempts, retry in %d seconds",
		"error.rate_limit_unavailable":   "Rate limiter unavailable",
		"error.token_expired":            "Code expired, ask the customer to refresh",
		"error.token_malformed":          "Unrecognized code",
		"error.customer_unknown":         "Unknown customer",
		"error.backup_code_invalid":      "Invalid backup code",
		"error.invalid_amount":           "Invalid point amount",
		"error.invalid_reason":           "Invalid credit reason",
		"error.invalid_key":              "Idempotency key is required",
		"error.account_locked":           "Account is busy, retry shortly",
		"error.account_not_found":        "Loyalty account not found",
		"error.insufficient_balance":     "Insufficient point balance",
		"error.daily_limit_exceeded":     "Daily redemption limit reached",
		"error.reward_not_found":         "Reward not found",
		"error.reward_inactive":          "Reward is inactive",
		"error.reward_invalid":           "Invalid reward",
		"error.campaign_full":            "Campaign is full",
		"error.campaign_terminal":        "Campaign has ended",
		"error.campaign_transition":      "Campaign status does not allow this action",
		"error.campaign_not_found":       "Campaign not found",
		"error.campaign_not_active":      "Campaign is not active",
		"error.campaign_audience":        "Customer is outside the campaign audience",
		"error.campaign_invalid":         "Invalid campaign",
		"error.campaign_already_joined":  "Campaign bonus already granted",
		"error.churn_candidate_notfound": "Churn candidate not found",
		"error.churn_candidate_invalid":  "Churn candidate status does not allow this action",
		"error.churn_approval_required":  "Churn offers require manager approval",
		"error.churn_dispatch_busy":      "Churn offers are being dispatched, retry shortly",
		"error.merchant_required":        "Merchant is required",
		"error.merchant_timezone":        "Invalid timezone",
		"error.merchant_limit_sign":      "Limits must not be negative",
	},
}
