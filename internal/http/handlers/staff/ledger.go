package staff

import (
	"strings"
	"time"

	handlershared "github.com/beanstamp/internal/http/handlers/shared"
	"github.com/beanstamp/internal/http/response"
	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/repository"
	"github.com/beanstamp/internal/service"

	"github.com/gin-gonic/gin"
)

// ResolveVerificationRequest 扫码或备用码核验请求
type ResolveVerificationRequest struct {
	Token string `json:"token" binding:"required"`
}

// CreditRequest 积分入账请求
type CreditRequest struct {
	CustomerID       string `json:"customer_id" binding:"required"`
	Amount           int64  `json:"amount"`
	Reason           string `json:"reason"`
	IdempotencyKey   string `json:"idempotency_key" binding:"required"`
	SessionToken     string `json:"session_token"`
	CampaignID       uint   `json:"campaign_id"`
	ChurnCandidateID uint   `json:"churn_candidate_id"`
}

// RedeemRequest 积分兑换请求，reward_id 优先于 cost
type RedeemRequest struct {
	CustomerID     string `json:"customer_id" binding:"required"`
	RewardID       uint   `json:"reward_id"`
	Cost           int64  `json:"cost"`
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
	SessionToken   string `json:"session_token"`
}

// LedgerEntryResponse 入账/兑换结果
type LedgerEntryResponse struct {
	Entry    *models.LedgerEntry `json:"entry"`
	Replayed bool                `json:"replayed"`
}

var creditErrorRules = handlershared.ConcatMappedHandlerErrors(
	handlershared.LedgerErrorRules,
	handlershared.VerificationErrorRules,
	handlershared.CampaignErrorRules,
	handlershared.ChurnErrorRules,
)

var redeemErrorRules = handlershared.ConcatMappedHandlerErrors(
	handlershared.RedemptionErrorRules,
	handlershared.LedgerErrorRules,
	handlershared.VerificationErrorRules,
)

// ResolveVerification 将扫码载荷或备用码解析为顾客身份
func (h *Handler) ResolveVerification(c *gin.Context) {
	if _, ok := staffIdentity(c); !ok {
		return
	}
	var req ResolveVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	verification, err := h.CodeVerifier.Resolve(c.Request.Context(), req.Token)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.VerificationErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, verification)
}

// Credit 积分入账
func (h *Handler) Credit(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	result, err := h.AccrualService.Credit(c.Request.Context(), service.CreditInput{
		MerchantID:       identity.MerchantID,
		CustomerID:       req.CustomerID,
		Amount:           req.Amount,
		Reason:           req.Reason,
		IdempotencyKey:   req.IdempotencyKey,
		StaffID:          identity.StaffID,
		SessionToken:     req.SessionToken,
		CampaignID:       req.CampaignID,
		ChurnCandidateID: req.ChurnCandidateID,
	})
	if err != nil {
		handlershared.RespondWithMappedError(c, err, creditErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, LedgerEntryResponse{Entry: result.Entry, Replayed: result.Replayed})
}

// Redeem 积分兑换
func (h *Handler) Redeem(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	input := service.RedeemInput{
		MerchantID:     identity.MerchantID,
		CustomerID:     req.CustomerID,
		Cost:           req.Cost,
		RewardID:       req.RewardID,
		IdempotencyKey: req.IdempotencyKey,
		StaffID:        identity.StaffID,
		SessionToken:   req.SessionToken,
	}
	var (
		result *service.RedeemResult
		err    error
	)
	if req.RewardID > 0 {
		result, err = h.RedemptionService.RedeemReward(c.Request.Context(), input)
	} else {
		result, err = h.RedemptionService.Redeem(c.Request.Context(), input)
	}
	if err != nil {
		handlershared.RespondWithMappedError(c, err, redeemErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, LedgerEntryResponse{Entry: result.Entry, Replayed: result.Replayed})
}

// GetAccount 查询顾客在本商户的积分账户
func (h *Handler) GetAccount(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	statement, err := h.LedgerService.GetStatement(c.Request.Context(), identity.MerchantID, c.Param("customer_id"))
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.LedgerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, statement)
}

// ListEntries 查询顾客在本商户的积分流水
func (h *Handler) ListEntries(c *gin.Context) {
	identity, ok := staffIdentity(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c)
	filter := repository.LedgerEntryListFilter{
		Page:     page,
		PageSize: pageSize,
		Reason:   strings.TrimSpace(c.Query("reason")),
	}
	if from, ok := parseTimeQuery(c, "created_from"); ok {
		filter.CreatedFrom = from
	}
	if to, ok := parseTimeQuery(c, "created_to"); ok {
		filter.CreatedTo = to
	}
	entries, total, err := h.LedgerService.ListEntries(c.Request.Context(), identity.MerchantID, c.Param("customer_id"), filter)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.LedgerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.SuccessWithPage(c, entries, response.NewPagination(page, pageSize, total))
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, false
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}
