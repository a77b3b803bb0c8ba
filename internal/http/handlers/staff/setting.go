package staff

import (
	handlershared "github.com/beanstamp/internal/http/handlers/shared"
	"github.com/beanstamp/internal/http/response"
	"github.com/beanstamp/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateSettingRequest 商户设置更新请求
type UpdateSettingRequest struct {
	DailyRedemptionLimit int    `json:"daily_redemption_limit"`
	ChurnDailySendCap    int    `json:"churn_daily_send_cap"`
	ChurnManualApproval  bool   `json:"churn_manual_approval"`
	Timezone             string `json:"timezone"`
}

// GetSetting 查询本商户生效的设置
func (h *Handler) GetSetting(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	setting, err := h.MerchantSettingService.Get(c.Request.Context(), identity.MerchantID)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.MerchantErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, setting)
}

// UpdateSetting 更新本商户设置
func (h *Handler) UpdateSetting(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	setting, err := h.MerchantSettingService.Update(c.Request.Context(), service.MerchantSettingInput{
		MerchantID:           identity.MerchantID,
		DailyRedemptionLimit: req.DailyRedemptionLimit,
		ChurnDailySendCap:    req.ChurnDailySendCap,
		ChurnManualApproval:  req.ChurnManualApproval,
		Timezone:             req.Timezone,
	})
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.MerchantErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, setting)
}
