package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestSetDefaultsEngineValues(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal defaults failed: %v", err)
	}
	if cfg.Verification.WindowSeconds != 60 {
		t.Fatalf("verification window want 60 got %d", cfg.Verification.WindowSeconds)
	}
	if cfg.Verification.BackupCodeLength != 6 {
		t.Fatalf("backup code length want 6 got %d", cfg.Verification.BackupCodeLength)
	}
	if cfg.Redemption.DailyLimit != 1 {
		t.Fatalf("daily redemption limit want 1 got %d", cfg.Redemption.DailyLimit)
	}
	if !cfg.Churn.ManualApproval {
		t.Fatalf("churn manual approval should default to true")
	}
	if cfg.Churn.Cron != "0 3 * * *" {
		t.Fatalf("unexpected churn cron: %s", cfg.Churn.Cron)
	}
	if cfg.Queue.Queues["default"] != 10 {
		t.Fatalf("unexpected default queue weight: %v", cfg.Queue.Queues)
	}
}

func TestEnvOverridesNestedKey(t *testing.T) {
	t.Setenv("REDEMPTION_DAILY_LIMIT", "3")
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(envKeyReplacer())

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if cfg.Redemption.DailyLimit != 3 {
		t.Fatalf("env override want 3 got %d", cfg.Redemption.DailyLimit)
	}
}
