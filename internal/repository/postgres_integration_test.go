//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/beanstamp/internal/constants"
	"github.com/beanstamp/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := models.AllModels()
	_ = db.Migrator().DropTable(cleanupModels...)
	if err := db.AutoMigrate(cleanupModels...); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresConcurrentDebitNeverOverdraws(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewLoyaltyRepository(db)
	now := time.Now().UTC()

	account, err := repo.EnsureAccountForUpdate("pg-cust", "pg-shop", now)
	if err != nil {
		t.Fatalf("ensure account failed: %v", err)
	}
	if _, err := repo.ApplyCredit(account.ID, 50, now); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.ApplyDebit(account.ID, 20, time.Now().UTC())
			if err != nil {
				t.Errorf("debit failed: %v", err)
				return
			}
			if ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 2 {
		t.Fatalf("expected exactly 2 debits of 20 from 50, got %d", succeeded)
	}
	latest, err := repo.GetAccountByID(account.ID)
	if err != nil {
		t.Fatalf("reload account failed: %v", err)
	}
	if latest.PointBalance != 10 {
		t.Fatalf("expected balance 10, got %d", latest.PointBalance)
	}
}

func TestPostgresCampaignCapacityIncrement(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewCampaignRepository(db)
	now := time.Now().UTC()
	limit := 3

	campaign := &models.Campaign{
		MerchantID:         "pg-shop",
		Name:               "pg capacity",
		Type:               constants.CampaignTypeEvent,
		Status:             constants.CampaignStatusActive,
		StartAt:            now.Add(-time.Hour),
		EndAt:              now.Add(time.Hour),
		TargetAudienceRule: constants.AudienceAll,
		PersonLimit:        &limit,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := repo.Create(campaign); err != nil {
		t.Fatalf("create campaign failed: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.IncrementParticipant(campaign.ID, time.Now().UTC())
			if err != nil {
				t.Errorf("increment failed: %v", err)
				return
			}
			if ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != limit {
		t.Fatalf("expected %d admitted, got %d", limit, admitted)
	}
	paused, err := repo.PauseIfAtCapacity(campaign.ID, now)
	if err != nil || !paused {
		t.Fatalf("expected capacity pause, got paused=%v err=%v", paused, err)
	}
}
