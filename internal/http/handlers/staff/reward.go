package staff

import (
	handlershared "github.com/beanstamp/internal/http/handlers/shared"
	"github.com/beanstamp/internal/http/response"
	"github.com/beanstamp/internal/repository"
	"github.com/beanstamp/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateRewardRequest 新建奖励请求
type CreateRewardRequest struct {
	Title     string `json:"title" binding:"required"`
	PointCost int64  `json:"point_cost" binding:"required"`
	IsActive  *bool  `json:"is_active"`
}

// ListRewards 奖励目录
func (h *Handler) ListRewards(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c)
	rewards, total, err := h.RewardService.ListRewards(c.Request.Context(), repository.RewardListFilter{
		Page:       page,
		PageSize:   pageSize,
		MerchantID: identity.MerchantID,
		ActiveOnly: c.Query("active") == "true",
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, rewards, response.NewPagination(page, pageSize, total))
}

// CreateReward 新建奖励
func (h *Handler) CreateReward(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	var req CreateRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	reward, err := h.RewardService.CreateReward(c.Request.Context(), service.CreateRewardInput{
		MerchantID: identity.MerchantID,
		Title:      req.Title,
		PointCost:  req.PointCost,
		IsActive:   req.IsActive,
	})
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.RedemptionErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, reward)
}
