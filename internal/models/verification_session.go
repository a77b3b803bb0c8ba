package models

import "time"

// VerificationSession 顾客核验会话（轮换二维码 + 6 位备用码）
type VerificationSession struct {
	ID         uint       `gorm:"primarykey" json:"-"`                       // 主键
	Token      string     `gorm:"size:64;not null;uniqueIndex" json:"token"` // 会话令牌
	CustomerID string     `gorm:"size:64;not null;index" json:"customer_id"` // 顾客ID
	BackupCode string     `gorm:"size:16;not null;index" json:"backup_code"` // 备用码
	IssuedAt   time.Time  `gorm:"not null" json:"issued_at"`                 // 签发时间
	ExpiresAt  time.Time  `gorm:"index;not null" json:"expires_at"`          // 过期时间
	RevokedAt  *time.Time `json:"-"`                                         // 轮换作废时间
	CreatedAt  time.Time  `json:"-"`                                         // 创建时间
}

// TableName 指定表名
func (VerificationSession) TableName() string {
	return "verification_sessions"
}

// LiveAt 判断会话在给定时间是否有效
func (s *VerificationSession) LiveAt(now time.Time) bool {
	if s == nil || s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}
