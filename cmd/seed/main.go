package main

import (
	"context"
	"flag"
	"time"

	"github.com/beanstamp/internal/authz"
	"github.com/beanstamp/internal/config"
	"github.com/beanstamp/internal/logger"
	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/repository"
	"github.com/beanstamp/internal/service"
)

// 本地联调数据：顾客档案、奖励目录，并签发演示用店员/顾客令牌
func main() {
	var merchantID string
	var tokenTTL time.Duration
	flag.StringVar(&merchantID, "merchant", "shop-demo", "演示商户 ID")
	flag.DurationVar(&tokenTTL, "ttl", 24*time.Hour, "演示令牌有效期")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, cfg.Server.Mode, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}

	customerRepo := repository.NewCustomerRepository(models.DB)
	customers := []models.Customer{
		{ID: "cust-ada", DisplayName: "Ada"},
		{ID: "cust-lin", DisplayName: "Lin"},
		{ID: "cust-sam", DisplayName: "Sam"},
	}
	for i := range customers {
		customers[i].CreatedAt = time.Now().UTC()
		if err := customerRepo.Upsert(&customers[i]); err != nil {
			stdLog.Printf("Failed to upsert customer %s: %v", customers[i].ID, err)
			continue
		}
		stdLog.Printf("Customer ready: %s", customers[i].ID)
	}

	rewardService := service.NewRewardService(repository.NewRewardRepository(models.DB))
	existing, _, err := rewardService.ListRewards(context.Background(), repository.RewardListFilter{Page: 1, PageSize: 100, MerchantID: merchantID})
	if err != nil {
		stdLog.Fatalf("Failed to list rewards: %v", err)
	}
	titles := make(map[string]struct{}, len(existing))
	for _, reward := range existing {
		titles[reward.Title] = struct{}{}
	}
	catalog := []service.CreateRewardInput{
		{MerchantID: merchantID, Title: "Free espresso shot", PointCost: 10},
		{MerchantID: merchantID, Title: "Free pastry", PointCost: 25},
		{MerchantID: merchantID, Title: "Free drink of choice", PointCost: 50},
	}
	for _, input := range catalog {
		if _, ok := titles[input.Title]; ok {
			stdLog.Printf("Reward already exists: %s", input.Title)
			continue
		}
		if _, err := rewardService.CreateReward(context.Background(), input); err != nil {
			stdLog.Printf("Failed to create reward %s: %v", input.Title, err)
			continue
		}
		stdLog.Printf("Created reward: %s", input.Title)
	}

	tokens := service.NewTokenService(cfg.StaffJWT.SecretKey, cfg.CustomerJWT.SecretKey)
	for _, role := range []string{authz.RoleBarista, authz.RoleManager} {
		token, expiresAt, err := tokens.IssueStaffToken("staff-"+role, merchantID, role, tokenTTL)
		if err != nil {
			stdLog.Fatalf("Failed to issue %s token: %v", role, err)
		}
		stdLog.Printf("%s token (expires %s): %s", role, expiresAt.Format(time.RFC3339), token)
	}
	for _, customer := range customers {
		token, _, err := tokens.IssueCustomerToken(customer.ID, tokenTTL)
		if err != nil {
			stdLog.Fatalf("Failed to issue customer token: %v", err)
		}
		stdLog.Printf("customer %s token: %s", customer.ID, token)
	}
}
