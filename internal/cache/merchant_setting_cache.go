package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const merchantSettingCacheTTL = 10 * time.Minute

// MerchantSettingSnapshot 商户设置快照
// 仅用于服务端 Redis 缓存，字段与数据库保持一致
type MerchantSettingSnapshot struct {
	MerchantID           string `json:"merchant_id"`
	DailyRedemptionLimit int    `json:"daily_redemption_limit"`
	ChurnDailySendCap    int    `json:"churn_daily_send_cap"`
	ChurnManualApproval  bool   `json:"churn_manual_approval"`
	Timezone             string `json:"timezone"`
	Persisted            bool   `json:"persisted"` // false 表示使用配置默认值
}

func merchantSettingKey(merchantID string) string {
	return fmt.Sprintf("merchant:setting:%s", strings.TrimSpace(merchantID))
}

// GetMerchantSetting 读取商户设置快照
func GetMerchantSetting(ctx context.Context, merchantID string) (*MerchantSettingSnapshot, bool, error) {
	var snapshot MerchantSettingSnapshot
	hit, err := GetJSON(ctx, merchantSettingKey(merchantID), &snapshot)
	if err != nil || !hit {
		return nil, false, err
	}
	return &snapshot, true, nil
}

// SetMerchantSetting 写入商户设置快照
func SetMerchantSetting(ctx context.Context, snapshot *MerchantSettingSnapshot) error {
	if snapshot == nil {
		return nil
	}
	return SetJSON(ctx, merchantSettingKey(snapshot.MerchantID), snapshot, merchantSettingCacheTTL)
}

// DelMerchantSetting 删除商户设置快照
func DelMerchantSetting(ctx context.Context, merchantID string) error {
	return Del(ctx, merchantSettingKey(merchantID))
}
