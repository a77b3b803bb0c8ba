package staff

import (
	"strings"

	handlershared "github.com/beanstamp/internal/http/handlers/shared"
	"github.com/beanstamp/internal/http/response"
	"github.com/beanstamp/internal/repository"

	"github.com/gin-gonic/gin"
)

var churnErrorRules = handlershared.ConcatMappedHandlerErrors(
	handlershared.ChurnErrorRules,
	handlershared.MerchantErrorRules,
)

// ListChurnCandidates 召回候选列表
func (h *Handler) ListChurnCandidates(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c)
	candidates, total, err := h.ChurnService.ListCandidates(c.Request.Context(), repository.ChurnCandidateListFilter{
		Page:       page,
		PageSize:   pageSize,
		MerchantID: identity.MerchantID,
		Status:     strings.TrimSpace(c.Query("status")),
		RiskLevel:  strings.TrimSpace(c.Query("risk_level")),
	})
	if err != nil {
		handlershared.RespondWithMappedError(c, err, churnErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.SuccessWithPage(c, candidates, response.NewPagination(page, pageSize, total))
}

// ApproveChurnCandidate 审批召回候选
func (h *Handler) ApproveChurnCandidate(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	candidate, err := h.ChurnService.ApproveCandidate(c.Request.Context(), identity.MerchantID, id, identity.StaffID)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, churnErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, candidate)
}

// RunChurnPass 立即对本商户执行一次流失评分
func (h *Handler) RunChurnPass(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	result, err := h.ChurnService.RunScoringPass(c.Request.Context(), identity.MerchantID)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, churnErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, result)
}

// DispatchChurnOffers 立即发送本商户待发的召回优惠
func (h *Handler) DispatchChurnOffers(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	result, err := h.ChurnService.DispatchOffers(c.Request.Context(), identity.MerchantID)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, churnErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, result)
}
