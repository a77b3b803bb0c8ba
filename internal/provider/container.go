package provider

import (
	"time"

	"github.com/beanstamp/internal/authz"
	"github.com/beanstamp/internal/cache"
	"github.com/beanstamp/internal/config"
	"github.com/beanstamp/internal/logger"
	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/queue"
	"github.com/beanstamp/internal/repository"
	"github.com/beanstamp/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	LoyaltyRepo             repository.LoyaltyRepository
	CampaignRepo            repository.CampaignRepository
	ChurnCandidateRepo      repository.ChurnCandidateRepository
	VerificationSessionRepo repository.VerificationSessionRepository
	CustomerRepo            repository.CustomerRepository
	RewardRepo              repository.RewardRepository
	MerchantSettingRepo     repository.MerchantSettingRepository

	// Services
	AuthzService           *authz.Service
	TokenService           *service.TokenService
	MerchantSettingService *service.MerchantSettingService
	CodeVerifier           *service.CodeVerifier
	CampaignService        *service.CampaignService
	AccrualService         *service.PointAccrualService
	RedemptionService      *service.RewardRedemptionService
	RewardService          *service.RewardService
	LedgerService          *service.LedgerService
	ChurnService           *service.ChurnService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}
	c.initRepositories(models.DB)
	c.initServices(models.DB)
	return c
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.LoyaltyRepo = repository.NewLoyaltyRepository(db)
	c.CampaignRepo = repository.NewCampaignRepository(db)
	c.ChurnCandidateRepo = repository.NewChurnCandidateRepository(db)
	c.VerificationSessionRepo = repository.NewVerificationSessionRepository(db)
	c.CustomerRepo = repository.NewCustomerRepository(db)
	c.RewardRepo = repository.NewRewardRepository(db)
	c.MerchantSettingRepo = repository.NewMerchantSettingRepository(db)
}

func (c *Container) initServices(db *gorm.DB) {
	authzService, err := authz.NewService(db)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	cfg := c.Config
	c.TokenService = service.NewTokenService(cfg.StaffJWT.SecretKey, cfg.CustomerJWT.SecretKey)
	c.MerchantSettingService = service.NewMerchantSettingService(c.MerchantSettingRepo, service.MerchantSettingDefaults{
		DailyRedemptionLimit: cfg.Redemption.DailyLimit,
		ChurnDailySendCap:    cfg.Churn.DailySendCap,
		ChurnManualApproval:  cfg.Churn.ManualApproval,
		Timezone:             cfg.Redemption.Timezone,
	})
	c.CodeVerifier = service.NewCodeVerifier(c.VerificationSessionRepo, c.CustomerRepo, service.VerificationOptions{
		WindowSeconds:    cfg.Verification.WindowSeconds,
		BackupCodeLength: cfg.Verification.BackupCodeLength,
	})

	locker := service.NewAccountLocker(cfg.Ledger.SingleWriter, time.Duration(cfg.Ledger.LockTTLSeconds)*time.Second)
	c.CampaignService = service.NewCampaignService(c.CampaignRepo, c.LoyaltyRepo, c.ChurnCandidateRepo)
	c.AccrualService = service.NewPointAccrualService(c.LoyaltyRepo, c.ChurnCandidateRepo, c.CampaignService, c.CodeVerifier, locker)
	c.RedemptionService = service.NewRewardRedemptionService(c.LoyaltyRepo, c.RewardRepo, c.MerchantSettingService, c.CodeVerifier, locker)
	c.RewardService = service.NewRewardService(c.RewardRepo)
	c.LedgerService = service.NewLedgerService(c.LoyaltyRepo)
	c.ChurnService = service.NewChurnService(
		c.LoyaltyRepo,
		c.ChurnCandidateRepo,
		c.MerchantSettingService,
		service.NewThresholdRiskScorer(),
		service.NewOfferSender(c.QueueClient),
		service.ChurnOptions{
			TrailingWindowDays:  cfg.Churn.TrailingWindowDays,
			DefaultIntervalDays: cfg.Churn.DefaultIntervalDays,
			BatchSize:           cfg.Churn.BatchSize,
		},
	)
}
