// Package handler 提供 API Handler 的通用辅助函数：错误响应、登录检查、参数解析
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-backend/internal/common/errors"
	"github.com/dumeirei/storefront-backend/internal/common/logger"
	"github.com/dumeirei/storefront-backend/internal/common/response"
	"github.com/dumeirei/storefront-backend/internal/common/utils"
	"github.com/dumeirei/storefront-backend/internal/middleware"
)

// reasonData 随错误返回的机器可读原因
type reasonData struct {
	Reason string `json:"reason"`
}

// HandleError 发送错误响应并返回 true；err 为 nil 时返回 false。
// 非业务错误只记录日志，对外返回通用提示。
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	if !errors.IsAppError(err) {
		logger.Error("unhandled error",
			logger.RequestID(middleware.GetRequestID(c)),
			logger.Path(c.Request.URL.Path),
			logger.Err(err),
		)
		response.InternalError(c, "服务器内部错误")
		return true
	}

	appErr := errors.GetAppError(err)
	if appErr.Err != nil {
		logger.Warn("request failed",
			logger.RequestID(middleware.GetRequestID(c)),
			logger.Path(c.Request.URL.Path),
			logger.Int("code", appErr.Code),
			logger.Err(appErr.Err),
		)
	}
	if appErr.Reason != "" && appErr.Kind != errors.KindInternal && appErr.Kind != errors.KindUpstreamFailure {
		response.ErrorWithData(c, appErr.Code, appErr.Message, reasonData{Reason: appErr.Reason})
		return true
	}
	response.Error(c, appErr.Code, appErr.Message)
	return true
}

// MustSucceed 有错误返回错误响应，否则返回成功响应
func MustSucceed(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Success(c, data)
}

// MustSucceedPage 分页响应版本
func MustSucceedPage(c *gin.Context, err error, list interface{}, total int64, p utils.Pagination) {
	if HandleError(c, err) {
		return
	}
	response.SuccessPage(c, list, total, p.Page, p.PageSize)
}

// BindJSON 绑定请求体，失败时发送 400 并返回 false
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return false
	}
	return true
}

// RequireUserID 获取当前用户ID，未登录时发送 401 并返回 false
func RequireUserID(c *gin.Context) (int64, bool) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return 0, false
	}
	return userID, true
}

// RequireAdminID 获取当前管理员ID
func RequireAdminID(c *gin.Context) (int64, bool) {
	adminID := middleware.GetAdminID(c)
	if adminID == 0 {
		response.Forbidden(c, "需要管理员权限")
		return 0, false
	}
	return adminID, true
}

// ParseID 解析路径参数 "id"
func ParseID(c *gin.Context, resourceName string) (int64, bool) {
	return ParseParamID(c, "id", resourceName)
}

// ParseParamID 解析指定路径参数为正整数 ID
func ParseParamID(c *gin.Context, paramName, resourceName string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(paramName), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return 0, false
	}
	return id, true
}

// BindPagination 从查询参数绑定并规范化分页参数
func BindPagination(c *gin.Context) utils.Pagination {
	var p utils.Pagination
	p.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	p.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "10"))
	p.Normalize()
	return p
}
