package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	handlershared "github.com/beanstamp/internal/http/handlers/shared"
	"github.com/beanstamp/internal/http/response"
	"github.com/beanstamp/internal/i18n"
	"github.com/beanstamp/internal/logger"
	"github.com/beanstamp/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 固定窗口限流规则
type RateLimitRule struct {
	Name          string
	Prefix        string
	WindowSeconds int
	MaxRequests   int
	MessageKey    string
}

func (r RateLimitRule) enabled() bool {
	return r.WindowSeconds > 0 && r.MaxRequests > 0
}

func (r RateLimitRule) label() string {
	if r.Name != "" {
		return r.Name
	}
	return "default"
}

// 首次命中时设置过期，返回 {计数, 剩余秒数}
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("TTL", KEYS[1])}
`)

type windowUsage struct {
	count      int64
	ttlSeconds int64
}

func consumeWindow(ctx context.Context, client *redis.Client, key string, windowSeconds int) (windowUsage, error) {
	reply, err := fixedWindowScript.Run(ctx, client, []string{key}, windowSeconds).Int64Slice()
	if err != nil {
		return windowUsage{}, err
	}
	if len(reply) < 2 {
		return windowUsage{}, fmt.Errorf("unexpected rate limit reply: %v", reply)
	}
	return windowUsage{count: reply[0], ttlSeconds: reply[1]}, nil
}

// RateLimitMiddleware Redis 固定窗口限流；Redis 未启用时放行，调用失败时拒绝
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || !rule.enabled() {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = c.ClientIP()
		}
		if rule.Prefix != "" {
			key = rule.Prefix + ":" + key
		}

		locale := i18n.ResolveLocale(c)
		usage, err := consumeWindow(c.Request.Context(), client, key, rule.WindowSeconds)
		if err != nil {
			logger.Warnw("rate_limit_script_failed", "rule", rule.label(), "key", key, "error", err)
			response.Error(c, response.CodeInternal, i18n.T(locale, "error.rate_limit_unavailable"))
			c.Abort()
			return
		}
		if usage.count <= int64(rule.MaxRequests) {
			c.Next()
			return
		}

		wait := int(usage.ttlSeconds)
		if wait < 1 {
			wait = rule.WindowSeconds
		}
		msgKey := strings.TrimSpace(rule.MessageKey)
		if msgKey == "" {
			msgKey = "error.rate_limited"
		}
		metrics.RateLimitedTotal.WithLabelValues(rule.label()).Inc()
		logger.Warnw("rate_limit_exceeded", "rule", rule.label(), "key", key, "count", usage.count, "wait_seconds", wait)
		c.Header("Retry-After", strconv.Itoa(wait))
		response.Error(c, response.CodeTooManyRequests, i18n.Sprintf(locale, msgKey, wait))
		c.Abort()
	}
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByStaffAndIP 使用店员 ID + IP 作为限流 key，未鉴权时退化为 IP
func KeyByStaffAndIP(c *gin.Context) string {
	staffID := strings.TrimSpace(c.GetString(handlershared.ContextStaffID))
	if staffID == "" {
		return c.ClientIP()
	}
	return staffID + "|" + c.ClientIP()
}
