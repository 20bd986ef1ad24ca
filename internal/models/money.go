package models

import (
	"github.com/shopspring/decimal"
)

// ParseYuanToCents 解析元字符串（如 "100.00"）为分
func ParseYuanToCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

// FormatCentsToYuan 把分格式化为 2 位小数的元字符串
func FormatCentsToYuan(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
