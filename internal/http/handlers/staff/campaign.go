package staff

import (
	"strings"
	"time"

	handlershared "github.com/beanstamp/internal/http/handlers/shared"
	"github.com/beanstamp/internal/http/response"
	"github.com/beanstamp/internal/repository"
	"github.com/beanstamp/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateCampaignRequest 新建活动请求
type CreateCampaignRequest struct {
	Name               string    `json:"name" binding:"required"`
	Type               string    `json:"type" binding:"required"`
	StartAt            time.Time `json:"start_at" binding:"required"`
	EndAt              time.Time `json:"end_at" binding:"required"`
	TargetAudienceRule string    `json:"target_audience_rule"`
	PersonLimit        *int      `json:"person_limit"`
	BonusPoints        int64     `json:"bonus_points"`
	Description        string    `json:"description"`
}

// ResumeCampaignRequest 恢复活动请求，可选提高人数上限
type ResumeCampaignRequest struct {
	PersonLimit *int `json:"person_limit"`
}

// RecordParticipationRequest 登记参与请求
type RecordParticipationRequest struct {
	CustomerID string `json:"customer_id" binding:"required"`
}

func respondCampaignError(c *gin.Context, err error) {
	handlershared.RespondWithMappedError(c, err, handlershared.ConcatMappedHandlerErrors(
		handlershared.CampaignErrorRules,
		handlershared.MerchantErrorRules,
	), response.CodeInternal, "error.internal")
}

// ListCampaigns 活动列表
func (h *Handler) ListCampaigns(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c)
	campaigns, total, err := h.CampaignService.ListCampaigns(c.Request.Context(), repository.CampaignListFilter{
		Page:       page,
		PageSize:   pageSize,
		MerchantID: identity.MerchantID,
		Status:     strings.TrimSpace(c.Query("status")),
		Type:       strings.TrimSpace(c.Query("type")),
	})
	if err != nil {
		respondCampaignError(c, err)
		return
	}
	response.SuccessWithPage(c, campaigns, response.NewPagination(page, pageSize, total))
}

// CreateCampaign 新建活动
func (h *Handler) CreateCampaign(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	campaign, err := h.CampaignService.CreateCampaign(c.Request.Context(), service.CreateCampaignInput{
		MerchantID:         identity.MerchantID,
		Name:               req.Name,
		Type:               req.Type,
		StartAt:            req.StartAt,
		EndAt:              req.EndAt,
		TargetAudienceRule: req.TargetAudienceRule,
		PersonLimit:        req.PersonLimit,
		BonusPoints:        req.BonusPoints,
		Description:        req.Description,
	})
	if err != nil {
		respondCampaignError(c, err)
		return
	}
	response.Success(c, campaign)
}

// GetCampaign 活动详情
func (h *Handler) GetCampaign(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	campaign, err := h.CampaignService.GetCampaign(c.Request.Context(), identity.MerchantID, id)
	if err != nil {
		respondCampaignError(c, err)
		return
	}
	response.Success(c, campaign)
}

// PauseCampaign 暂停活动
func (h *Handler) PauseCampaign(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	campaign, err := h.CampaignService.PauseCampaign(c.Request.Context(), identity.MerchantID, id)
	if err != nil {
		respondCampaignError(c, err)
		return
	}
	response.Success(c, campaign)
}

// ResumeCampaign 恢复活动
func (h *Handler) ResumeCampaign(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req ResumeCampaignRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return
		}
	}
	campaign, err := h.CampaignService.ResumeCampaign(c.Request.Context(), identity.MerchantID, id, req.PersonLimit)
	if err != nil {
		respondCampaignError(c, err)
		return
	}
	response.Success(c, campaign)
}

// RecordParticipation 登记顾客参与活动
func (h *Handler) RecordParticipation(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req RecordParticipationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	participation, err := h.CampaignService.RecordParticipation(c.Request.Context(), identity.MerchantID, id, req.CustomerID)
	if err != nil {
		respondCampaignError(c, err)
		return
	}
	response.Success(c, participation)
}

// ListParticipations 活动参与记录
func (h *Handler) ListParticipations(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	page, pageSize := pageParams(c)
	participations, total, err := h.CampaignService.ListParticipations(c.Request.Context(), identity.MerchantID, repository.CampaignParticipationListFilter{
		Page:       page,
		PageSize:   pageSize,
		CampaignID: id,
		CustomerID: strings.TrimSpace(c.Query("customer_id")),
	})
	if err != nil {
		respondCampaignError(c, err)
		return
	}
	response.SuccessWithPage(c, participations, response.NewPagination(page, pageSize, total))
}
