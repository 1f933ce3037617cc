// Package qrcode 二维码生成
package qrcode

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"
)

// RecoveryLevel 纠错级别
type RecoveryLevel int

const (
	Low     RecoveryLevel = iota // 7%
	Medium                       // 15%
	High                         // 25%
	Highest                      // 30%
)

// Generator 二维码生成器
type Generator struct {
	size  int
	level RecoveryLevel
}

// Option 生成器选项
type Option func(*Generator)

// WithSize 设置边长（像素）
func WithSize(size int) Option {
	return func(g *Generator) {
		if size > 0 {
			g.size = size
		}
	}
}

// WithRecoveryLevel 设置纠错级别
func WithRecoveryLevel(level RecoveryLevel) Option {
	return func(g *Generator) { g.level = level }
}

// NewGenerator 创建生成器，默认 256 像素、中等纠错
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{size: 256, level: Medium}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) qrLevel() qrcode.RecoveryLevel {
	switch g.level {
	case Low:
		return qrcode.Low
	case High:
		return qrcode.High
	case Highest:
		return qrcode.Highest
	}
	return qrcode.Medium
}

// GeneratePNG 生成 PNG
func (g *Generator) GeneratePNG(content string) ([]byte, error) {
	return qrcode.Encode(content, g.qrLevel(), g.size)
}

// GenerateDataURL 生成 data:image/png;base64 形式
func (g *Generator) GenerateDataURL(content string) (string, error) {
	data, err := g.GeneratePNG(content)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
