// Package logger 提供结构化日志功能
package logger

import (
	"os"
	"time"

	"github.com/dumeirei/storefront-backend/internal/common/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// Init 初始化日志
func Init(cfg *config.LoggerConfig) error {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var sinks []zapcore.WriteSyncer
	switch cfg.Output {
	case "file":
		sinks = append(sinks, zapcore.AddSync(rollingFile(cfg)))
	case "both":
		sinks = append(sinks, zapcore.AddSync(os.Stdout), zapcore.AddSync(rollingFile(cfg)))
	default:
		sinks = append(sinks, zapcore.AddSync(os.Stdout))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), parseLevel(cfg.Level))

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	log = zap.New(core, opts...)
	sugar = log.Sugar()
	return nil
}

func rollingFile(cfg *config.LoggerConfig) *lumberjack.Logger {
	path := cfg.FilePath
	if path == "" {
		path = "./logs/app.log"
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

// parseLevel 解析日志级别，未知值按 info 处理
func parseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// SetLogger 替换全局日志器（测试中注入 observer）
func SetLogger(l *zap.Logger) {
	log = l
	sugar = l.Sugar()
}

// GetLogger 获取原始日志器
func GetLogger() *zap.Logger {
	if log == nil {
		log, _ = zap.NewDevelopment()
		sugar = log.Sugar()
	}
	return log
}

// GetSugar 获取 Sugar 日志器
func GetSugar() *zap.SugaredLogger {
	if sugar == nil {
		GetLogger()
	}
	return sugar
}

// Sync 同步日志
func Sync() error {
	if log != nil {
		return log.Sync()
	}
	return nil
}

// Debug 调试日志
func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }

// Info 信息日志
func Info(msg string, fields ...zap.Field) { GetLogger().Info(msg, fields...) }

// Warn 警告日志
func Warn(msg string, fields ...zap.Field) { GetLogger().Warn(msg, fields...) }

// Error 错误日志
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }

// Fatal 致命错误日志
func Fatal(msg string, fields ...zap.Field) { GetLogger().Fatal(msg, fields...) }

// Infof 格式化信息日志
func Infof(template string, args ...interface{}) { GetSugar().Infof(template, args...) }

// Warnf 格式化警告日志
func Warnf(template string, args ...interface{}) { GetSugar().Warnf(template, args...) }

// Errorf 格式化错误日志
func Errorf(template string, args ...interface{}) { GetSugar().Errorf(template, args...) }

// With 返回带有字段的日志器
func With(fields ...zap.Field) *zap.Logger {
	return GetLogger().With(fields...)
}

// Named 返回命名日志器
func Named(name string) *zap.Logger {
	return GetLogger().Named(name)
}

// 常用字段构造函数
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Any      = zap.Any
	Err      = zap.Error
	Duration = zap.Duration
	Time     = zap.Time
)

// RequestID 请求ID字段
func RequestID(id string) zap.Field { return zap.String("request_id", id) }

// UserID 用户ID字段
func UserID(id int64) zap.Field { return zap.Int64("user_id", id) }

// AdminID 管理员ID字段
func AdminID(id int64) zap.Field { return zap.Int64("admin_id", id) }

// OrderID 订单ID字段
func OrderID(id int64) zap.Field { return zap.Int64("order_id", id) }

// OrderNo 订单号字段
func OrderNo(no string) zap.Field { return zap.String("order_no", no) }

// CouponCode 优惠券码字段
func CouponCode(code string) zap.Field { return zap.String("coupon_code", code) }

// Amount 金额字段（decimal 以字符串输出避免精度丢失）
func Amount(key string, v interface{ String() string }) zap.Field {
	return zap.String(key, v.String())
}

// Module 模块字段
func Module(name string) zap.Field { return zap.String("module", name) }

// Latency 延迟字段
func Latency(d time.Duration) zap.Field { return zap.Duration("latency", d) }

// StatusCode HTTP状态码字段
func StatusCode(code int) zap.Field { return zap.Int("status_code", code) }

// Method HTTP方法字段
func Method(method string) zap.Field { return zap.String("method", method) }

// Path 路径字段
func Path(path string) zap.Field { return zap.String("path", path) }

// IP IP地址字段
func IP(ip string) zap.Field { return zap.String("ip", ip) }
