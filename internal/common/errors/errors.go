// Package errors 定义业务错误码和错误处理
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind 错误类别，决定日志级别和对用户暴露的程度
type Kind string

const (
	KindValidation         Kind = "validation"
	KindCapacityExceeded   Kind = "capacity_exceeded"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindUpstreamFailure    Kind = "upstream_failure"
	KindIntegrityViolation Kind = "integrity_violation"
	KindNotFound           Kind = "not_found"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindConflict           Kind = "conflict"
	KindInternal           Kind = "internal"
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    Kind   `json:"-"`
	// Reason 机器可读的原因（例如 "capacity exhausted"）
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，使 errors.Is(err, ErrCouponExhausted) 对派生错误也成立
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 创建新的应用错误
func New(code int, kind Kind, message string) *AppError {
	return &AppError{Code: code, Kind: kind, Message: message}
}

// Wrap 包装错误
func Wrap(code int, kind Kind, message string, err error) *AppError {
	return &AppError{Code: code, Kind: kind, Message: message, Err: err}
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	c := *e
	c.Message = message
	return &c
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

// WithReason 设置机器可读原因
func (e *AppError) WithReason(reason string) *AppError {
	c := *e
	c.Reason = reason
	return &c
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown         = New(1000, KindInternal, "未知错误")
	ErrInvalidParams   = New(1001, KindValidation, "参数错误")
	ErrNotFound        = New(1002, KindNotFound, "资源不存在")
	ErrDatabaseError   = New(1004, KindUpstreamFailure, "数据库错误")
	ErrCacheError      = New(1005, KindUpstreamFailure, "缓存错误")
	ErrInternalError   = New(1006, KindInternal, "内部错误")
	ErrExternalService = New(1007, KindUpstreamFailure, "外部服务错误")
	ErrRateLimitExceed = New(1008, KindConflict, "请求过于频繁")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = New(2000, KindUnauthorized, "未登录")
	ErrTokenExpired     = New(2001, KindUnauthorized, "登录已过期")
	ErrTokenInvalid     = New(2002, KindUnauthorized, "无效的令牌")
	ErrPermissionDenied = New(2004, KindForbidden, "权限不足")
	ErrAccountDisabled  = New(2005, KindForbidden, "账号已禁用")
)

// 用户与钱包错误码 (3000-3999)
var (
	ErrUserNotFound          = New(3000, KindNotFound, "用户不存在")
	ErrBalanceInsufficient   = New(3006, KindInsufficientFunds, "余额不足")
	ErrWithdrawBelowMinimum  = New(3008, KindValidation, "提现金额低于最低限额")
	ErrWithdrawNotFound      = New(3009, KindNotFound, "提现申请不存在")
	ErrWithdrawStatusInvalid = New(3010, KindValidation, "提现申请状态不允许此操作")
	ErrAccountRequired       = New(3011, KindValidation, "请填写提现账户")
	ErrLedgerWriteFailed     = New(3012, KindIntegrityViolation, "账本写入失败")
)

// 订单错误码 (5000-5999)
var (
	ErrOrderNotFound        = New(5000, KindNotFound, "订单不存在")
	ErrOrderStatusError     = New(5001, KindValidation, "订单状态异常")
	ErrCartEmpty            = New(5006, KindValidation, "购物车为空")
	ErrProductNotFound      = New(5007, KindValidation, "商品不存在")
	ErrProductOffShelf      = New(5008, KindValidation, "商品已下架")
	ErrInvalidPaymentMethod = New(5010, KindValidation, "不支持的支付方式")
	ErrShippingAddress      = New(5011, KindValidation, "收货地址不完整")
	ErrCheckoutInProgress   = New(5012, KindConflict, "订单正在提交，请勿重复操作")
	ErrOrderFailed          = New(5013, KindInternal, "下单失败，请稍后重试")
)

// 支付错误码 (6000-6999)
var (
	ErrPaymentFailed  = New(6001, KindUpstreamFailure, "支付失败")
	ErrPaymentTimeout = New(6002, KindUpstreamFailure, "支付超时")
	ErrRefundFailed   = New(6004, KindUpstreamFailure, "退款失败")
)

// 优惠券错误码 (9000-9999)
var (
	ErrCouponNotFound      = New(9000, KindValidation, "优惠券不存在")
	ErrCouponExpired       = New(9001, KindValidation, "优惠券已过期")
	ErrCouponInactive      = New(9002, KindValidation, "优惠券未启用")
	ErrCouponMinOrderValue = New(9003, KindValidation, "未达到优惠券最低消费金额")
	ErrCouponExhausted     = New(9005, KindCapacityExceeded, "优惠券已被领完，请不使用优惠券重试")
	ErrCouponCodeExists    = New(9006, KindValidation, "优惠券码已存在")
	ErrCouponInvalidValue  = New(9007, KindValidation, "优惠券面额无效")
)

// 佣金错误码 (10000-10999)
var (
	ErrCommissionSettings  = New(10000, KindValidation, "佣金配置无效")
	ErrCommissionIntegrity = New(10001, KindIntegrityViolation, "佣金分配数据异常")
	ErrReferralIntegrity   = New(10002, KindIntegrityViolation, "推荐关系数据异常")
)

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取应用错误，非应用错误包装为未知错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}

// KindOf 返回错误类别
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return GetAppError(err).Kind
}

// IsKind 判断错误类别
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
