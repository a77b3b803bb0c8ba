package staff

import (
	"strconv"

	handlershared "github.com/beanstamp/internal/http/handlers/shared"
	"github.com/beanstamp/internal/provider"

	"github.com/gin-gonic/gin"
)

// Handler 店员端接口处理器
// 说明：商户维度取自店员令牌，请求体中的商户字段一律忽略。
type Handler struct {
	*provider.Container
}

// New 创建店员处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

func staffIdentity(c *gin.Context) (handlershared.StaffIdentity, bool) {
	return handlershared.GetStaffIdentity(c)
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return handlershared.NormalizePagination(page, pageSize)
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
