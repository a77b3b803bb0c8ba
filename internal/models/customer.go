package models

import "time"

// Customer 顾客档案引用（由外部档案服务同步）
type Customer struct {
	ID          string    `gorm:"primarykey;size:64" json:"id"` // 顾客ID
	DisplayName string    `gorm:"size:128" json:"display_name"` // 昵称
	CreatedAt   time.Time `gorm:"index" json:"created_at"`      // 创建时间
}

// TableName 指定表名
func (Customer) TableName() string {
	return "customers"
}
