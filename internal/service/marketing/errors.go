// Package marketing 提供营销相关服务
package marketing

import (
	apperrors "github.com/dumeirei/storefront-backend/internal/common/errors"
)

// 优惠券校验失败原因（机器可读，随错误返回给前端）
const (
	ReasonNotFound          = "not found"
	ReasonInactive          = "inactive"
	ReasonExpired           = "expired"
	ReasonCapacityExhausted = "capacity exhausted"
	ReasonBelowMinimum      = "below minimum order value"
)

// reasonError 原因到错误的映射
var reasonError = map[string]*apperrors.AppError{
	ReasonNotFound:          apperrors.ErrCouponNotFound,
	ReasonInactive:          apperrors.ErrCouponInactive,
	ReasonExpired:           apperrors.ErrCouponExpired,
	ReasonCapacityExhausted: apperrors.ErrCouponExhausted,
	ReasonBelowMinimum:      apperrors.ErrCouponMinOrderValue,
}

// ErrorForReason 返回带原因的业务错误
func ErrorForReason(reason string) *apperrors.AppError {
	if e, ok := reasonError[reason]; ok {
		return e.WithReason(reason)
	}
	return apperrors.ErrInvalidParams.WithReason(reason)
}
