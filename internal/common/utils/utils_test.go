// Package utils 工具函数单元测试
package utils

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGenerateOrderNo(t *testing.T) {
	no := GenerateOrderNo("SO")
	assert.True(t, strings.HasPrefix(no, "SO"))
	assert.Len(t, no, 2+14+6)
	assert.NotEqual(t, no, GenerateOrderNo("SO"))
}

func TestGenerateReferralCode(t *testing.T) {
	code := GenerateReferralCode(8)
	assert.Len(t, code, 8)
	assert.NotContains(t, code, "0")
	assert.NotContains(t, code, "O")
}

func TestValidatePhone(t *testing.T) {
	assert.True(t, ValidatePhone("13800138000"))
	assert.False(t, ValidatePhone("12800138000"))
	assert.False(t, ValidatePhone("1380013800"))
}

func TestMaskAccount(t *testing.T) {
	assert.Equal(t, "************1234", MaskAccount("6222020200001234"))
	assert.Equal(t, "***", MaskAccount("abc"))
}

func TestRoundMoney(t *testing.T) {
	tests := []struct {
		in    string
		scale int32
		want  string
	}{
		{"45000", 0, "45000"},
		{"2.5", 0, "3"},
		{"-2.5", 0, "-3"},
		{"2.4999", 0, "2"},
		{"12.345", 2, "12.35"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RoundMoney(decimal.RequireFromString(tt.in), tt.scale)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), got.String())
		})
	}
}

func TestPercentOf(t *testing.T) {
	got := PercentOf(decimal.NewFromInt(900000), decimal.NewFromInt(5), 0)
	assert.True(t, decimal.NewFromInt(45000).Equal(got))

	got = PercentOf(decimal.NewFromInt(999), decimal.RequireFromString("2.5"), 0)
	assert.True(t, decimal.NewFromInt(25).Equal(got), got.String()) // 24.975 -> 25
}

func TestClampNonNegative(t *testing.T) {
	assert.True(t, ClampNonNegative(decimal.NewFromInt(-1)).IsZero())
	assert.True(t, decimal.NewFromInt(3).Equal(ClampNonNegative(decimal.NewFromInt(3))))
}

func TestPagination(t *testing.T) {
	p := Pagination{Page: 0, PageSize: 500}
	p.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 100, p.PageSize)
	assert.Equal(t, 0, p.GetOffset())

	p = Pagination{Page: 3, PageSize: 20}
	assert.Equal(t, 40, p.GetOffset())
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []int64{3, 1, 2}, Unique([]int64{3, 1, 3, 2, 1}))
}
