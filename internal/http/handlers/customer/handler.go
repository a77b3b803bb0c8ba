package customer

import (
	"errors"
	"time"

	handlershared "github.com/beanstamp/internal/http/handlers/shared"
	"github.com/beanstamp/internal/http/response"
	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/provider"
	"github.com/beanstamp/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler 顾客端接口处理器
type Handler struct {
	*provider.Container
}

// New 创建顾客处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

// BeginVerification 生成新的核验二维码与备用码，旧会话随之失效
func (h *Handler) BeginVerification(c *gin.Context) {
	customerID, ok := handlershared.GetCustomerID(c)
	if !ok {
		return
	}
	ticket, err := h.CodeVerifier.BeginVerification(c.Request.Context(), customerID)
	if errors.Is(err, service.ErrCustomerUnknown) {
		if regErr := h.registerCustomer(customerID); regErr != nil {
			respondVerificationError(c, regErr)
			return
		}
		ticket, err = h.CodeVerifier.BeginVerification(c.Request.Context(), customerID)
	}
	if err != nil {
		respondVerificationError(c, err)
		return
	}
	response.Success(c, ticket)
}

// ListAccounts 查询本人在各商户的积分余额
func (h *Handler) ListAccounts(c *gin.Context) {
	customerID, ok := handlershared.GetCustomerID(c)
	if !ok {
		return
	}
	accounts, err := h.LedgerService.ListCustomerAccounts(c.Request.Context(), customerID)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.VerificationErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, accounts)
}

// registerCustomer 顾客令牌已由签发方校验，首次出示时登记档案
func (h *Handler) registerCustomer(customerID string) error {
	return h.CustomerRepo.Upsert(&models.Customer{ID: customerID, CreatedAt: time.Now().UTC()})
}

func respondVerificationError(c *gin.Context, err error) {
	handlershared.RespondWithMappedError(c, err, handlershared.VerificationErrorRules, response.CodeInternal, "error.internal")
}
