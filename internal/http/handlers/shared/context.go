package shared

import (
	"strings"

	"github.com/beanstamp/internal/http/response"

	"github.com/gin-gonic/gin"
)

// 鉴权中间件写入的上下文键
const (
	ContextStaffID    = "staff_id"
	ContextMerchantID = "merchant_id"
	ContextStaffRole  = "staff_role"
	ContextCustomerID = "customer_id"
)

// GetContextStringWithKey 从上下文读取非空字符串，缺失时返回未授权。
func GetContextStringWithKey(c *gin.Context, key string) (string, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return "", false
	}
	str, ok := value.(string)
	if !ok {
		RespondError(c, response.CodeInternal, "error.internal", nil)
		return "", false
	}
	str = strings.TrimSpace(str)
	if str == "" {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return "", false
	}
	return str, true
}

// StaffIdentity 店员身份
type StaffIdentity struct {
	StaffID    string
	MerchantID string
	Role       string
}

// GetStaffIdentity 读取店员身份，任一字段缺失即中止请求。
func GetStaffIdentity(c *gin.Context) (StaffIdentity, bool) {
	staffID, ok := GetContextStringWithKey(c, ContextStaffID)
	if !ok {
		return StaffIdentity{}, false
	}
	merchantID, ok := GetContextStringWithKey(c, ContextMerchantID)
	if !ok {
		return StaffIdentity{}, false
	}
	role, ok := GetContextStringWithKey(c, ContextStaffRole)
	if !ok {
		return StaffIdentity{}, false
	}
	return StaffIdentity{StaffID: staffID, MerchantID: merchantID, Role: role}, true
}

// GetCustomerID 读取顾客 ID
func GetCustomerID(c *gin.Context) (string, bool) {
	return GetContextStringWithKey(c, ContextCustomerID)
}
