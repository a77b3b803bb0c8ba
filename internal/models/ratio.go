package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Ratio 比率/天数类型（保留 2 位小数）
type Ratio struct {
	decimal.Decimal
}

// NewRatioFromDecimal 从 decimal 创建比率
func NewRatioFromDecimal(value decimal.Decimal) Ratio {
	return Ratio{Decimal: value.Round(2)}
}

// MarshalJSON 输出数字（2 位小数）
func (r Ratio) MarshalJSON() ([]byte, error) {
	return []byte(r.Decimal.Round(2).StringFixed(2)), nil
}

// UnmarshalJSON 解析比率（字符串或数字）
func (r *Ratio) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		r.Decimal = d.Round(2)
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return err
	}
	r.Decimal = d.Round(2)
	return nil
}

// Value 用于数据库写入
func (r Ratio) Value() (driver.Value, error) {
	return r.Decimal.Round(2).Value()
}

// Scan 用于数据库读取
func (r *Ratio) Scan(value interface{}) error {
	if err := r.Decimal.Scan(value); err != nil {
		return err
	}
	r.Decimal = r.Decimal.Round(2)
	return nil
}

// String 返回 2 位小数格式
func (r Ratio) String() string {
	return r.Decimal.Round(2).StringFixed(2)
}
