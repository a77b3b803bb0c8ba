package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beanstamp/internal/authz"
	"github.com/beanstamp/internal/cache"
	"github.com/beanstamp/internal/config"
	customerhandlers "github.com/beanstamp/internal/http/handlers/customer"
	handlershared "github.com/beanstamp/internal/http/handlers/shared"
	staffhandlers "github.com/beanstamp/internal/http/handlers/staff"
	"github.com/beanstamp/internal/http/response"
	"github.com/beanstamp/internal/logger"
	"github.com/beanstamp/internal/metrics"
	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	staffHandler := staffhandlers.New(c)
	customerHandler := customerhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "bs"
	}
	verifyRule := RateLimitRule{
		Name:          "verify",
		Prefix:        fmt.Sprintf("%s:rate:verify", redisPrefix),
		WindowSeconds: cfg.Security.VerifyRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.VerifyRateLimit.MaxAttempts,
		MessageKey:    "error.verify_too_many",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))
	if cfg.Metrics.Enabled {
		r.Use(metrics.GinMiddleware())
	}

	apiV1 := r.Group("/api/v1")
	{
		// 顾客接口
		customer := apiV1.Group("/customer")
		customer.Use(CustomerJWTAuthMiddleware(c.TokenService))
		{
			customer.POST("/verification", customerHandler.BeginVerification)
			customer.GET("/accounts", customerHandler.ListAccounts)
		}

		// 店员接口
		staff := apiV1.Group("/staff")
		staff.Use(StaffJWTAuthMiddleware(c.TokenService), StaffRBACMiddleware(c.AuthzService))
		{
			// 核验与账本
			staff.POST("/verifications/resolve", RateLimitMiddleware(cache.Client(), verifyRule, KeyByStaffAndIP), staffHandler.ResolveVerification)
			staff.POST("/credits", staffHandler.Credit)
			staff.POST("/redemptions", staffHandler.Redeem)
			staff.GET("/accounts/:customer_id", staffHandler.GetAccount)
			staff.GET("/accounts/:customer_id/entries", staffHandler.ListEntries)

			// 奖励目录
			staff.GET("/rewards", staffHandler.ListRewards)
			staff.POST("/rewards", staffHandler.CreateReward)

			// 活动
			staff.GET("/campaigns", staffHandler.ListCampaigns)
			staff.POST("/campaigns", staffHandler.CreateCampaign)
			staff.GET("/campaigns/:id", staffHandler.GetCampaign)
			staff.POST("/campaigns/:id/pause", staffHandler.PauseCampaign)
			staff.POST("/campaigns/:id/resume", staffHandler.ResumeCampaign)
			staff.GET("/campaigns/:id/participants", staffHandler.ListParticipations)
			staff.POST("/campaigns/:id/participants", staffHandler.RecordParticipation)

			// 流失召回
			staff.GET("/churn/candidates", staffHandler.ListChurnCandidates)
			staff.POST("/churn/candidates/:id/approve", staffHandler.ApproveChurnCandidate)
			staff.POST("/churn/run", staffHandler.RunChurnPass)
			staff.POST("/churn/dispatch", staffHandler.DispatchChurnOffers)

			// 商户设置
			staff.GET("/settings", staffHandler.GetSetting)
			staff.PUT("/settings", staffHandler.UpdateSetting)

			// 权限
			staff.GET("/authz/catalog", func(ctx *gin.Context) {
				response.Success(ctx, buildStaffPermissionCatalog(r))
			})
			staff.GET("/authz/roles", func(ctx *gin.Context) {
				roles, err := c.AuthzService.ListRoles()
				if err != nil {
					handlershared.RespondError(ctx, response.CodeInternal, "error.internal", err)
					return
				}
				response.Success(ctx, roles)
			})
			staff.GET("/authz/roles/:role/policies", func(ctx *gin.Context) {
				policies, err := c.AuthzService.GetRolePolicies(ctx.Param("role"))
				if err != nil {
					handlershared.RespondError(ctx, response.CodeBadRequest, "error.bad_request", err)
					return
				}
				response.Success(ctx, policies)
			})
		}
	}

	if cfg.Metrics.Enabled {
		path := strings.TrimSpace(cfg.Metrics.Path)
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(metrics.Handler()))
	}

	// 健康检查
	r.GET("/health", func(ctx *gin.Context) {
		status := gin.H{"status": "ok", "redis": "disabled"}
		if sqlDB, err := models.DB.DB(); err != nil || sqlDB.PingContext(ctx.Request.Context()) != nil {
			status["status"] = "degraded"
			status["database"] = "down"
		} else {
			status["database"] = "up"
		}
		if cache.Enabled() {
			if err := cache.Ping(ctx.Request.Context()); err != nil {
				status["status"] = "degraded"
				status["redis"] = "down"
			} else {
				status["redis"] = "up"
			}
		}
		ctx.JSON(200, status)
	})

	return r
}

type staffPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildStaffPermissionCatalog(engine *gin.Engine) []staffPermissionCatalogItem {
	if engine == nil {
		return []staffPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]staffPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/staff/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, staffPermissionCatalogItem{
			Module:     deriveStaffPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

// deriveStaffPermissionModule /staff/campaigns/:id/pause -> campaigns
func deriveStaffPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 || segments[0] != "staff" {
		return segments[0]
	}
	return segments[1]
}
