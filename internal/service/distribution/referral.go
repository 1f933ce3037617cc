// Package distribution 推荐链解析与多级佣金分配
package distribution

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/dumeirei/storefront-backend/internal/common/errors"
	"github.com/dumeirei/storefront-backend/internal/common/logger"
	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/internal/repository"
)

// ReferralWalker 沿 invited_by_user_id 向上查找邀请人
type ReferralWalker struct {
	userRepo *repository.UserRepository
}

// NewReferralWalker 创建推荐链解析器
func NewReferralWalker(userRepo *repository.UserRepository) *ReferralWalker {
	return &ReferralWalker{userRepo: userRepo}
}

// ResolveChain 返回购买人的邀请链（第 0 个为直接邀请人），长度不超过 maxDepth。
// 遇到无邀请人、邀请人不存在或环路时截断，不视为错误；购买人本身不存在则报数据异常。
func (w *ReferralWalker) ResolveChain(ctx context.Context, tx *gorm.DB, userID int64, maxDepth int) ([]*models.User, error) {
	if maxDepth <= 0 {
		return nil, nil
	}

	purchaser, err := w.userRepo.GetByID(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrReferralIntegrity.WithError(err)
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	visited := map[int64]struct{}{purchaser.ID: {}}
	chain := make([]*models.User, 0, maxDepth)
	next := purchaser.InvitedByUserID

	for next != nil && len(chain) < maxDepth {
		if _, seen := visited[*next]; seen {
			logger.Warn("referral cycle detected, chain truncated",
				logger.UserID(userID),
				logger.Int64("repeat_user_id", *next),
				logger.Int("depth", len(chain)),
			)
			break
		}

		inviter, err := w.userRepo.GetByID(ctx, tx, *next)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Warn("referral inviter missing, chain truncated",
					logger.UserID(userID),
					logger.Int64("missing_user_id", *next),
				)
				break
			}
			return nil, apperrors.ErrDatabaseError.WithError(err)
		}

		visited[inviter.ID] = struct{}{}
		chain = append(chain, inviter)
		next = inviter.InvitedByUserID
	}

	return chain, nil
}
