package order

import "github.com/dumeirei/storefront-backend/internal/models"

// transitions 管理员可执行的单步状态流转
var transitions = map[string][]string{
	models.OrderStatusPendingConfirmation: {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing:          {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusPendingCheckConfirmation: {
		models.OrderStatusCheckApproved, models.OrderStatusCheckRejected, models.OrderStatusCancelled,
	},
	models.OrderStatusCheckApproved: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusPendingInstallmentApproval: {
		models.OrderStatusInstallmentApproved, models.OrderStatusInstallmentRejected, models.OrderStatusCancelled,
	},
	models.OrderStatusInstallmentApproved: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:             {models.OrderStatusDelivered},
}

// CanTransition 是否允许从 from 流转到 to
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses 当前状态可流转的目标状态
func NextStatuses(from string) []string {
	return append([]string(nil), transitions[from]...)
}

// IsValidStatus 是否为已知状态
func IsValidStatus(status string) bool {
	switch status {
	case models.OrderStatusPendingConfirmation, models.OrderStatusProcessing,
		models.OrderStatusPendingCheckConfirmation, models.OrderStatusPendingInstallmentApproval,
		models.OrderStatusCheckApproved, models.OrderStatusCheckRejected,
		models.OrderStatusInstallmentApproved, models.OrderStatusInstallmentRejected,
		models.OrderStatusShipped, models.OrderStatusDelivered, models.OrderStatusCancelled:
		return true
	}
	return false
}

// initialStatus 按支付方式决定初始状态；charged 表示现金已在下单时扣款成功
func initialStatus(method string, charged bool) string {
	switch method {
	case models.PaymentMethodCheck:
		return models.OrderStatusPendingCheckConfirmation
	case models.PaymentMethodInstallments:
		return models.OrderStatusPendingInstallmentApproval
	}
	if charged {
		return models.OrderStatusProcessing
	}
	return models.OrderStatusPendingConfirmation
}

// IsPaymentMethod 是否为支持的支付方式
func IsPaymentMethod(method string) bool {
	switch method {
	case models.PaymentMethodCash, models.PaymentMethodInstallments, models.PaymentMethodCheck:
		return true
	}
	return false
}
