package distribution

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/dumeirei/storefront-backend/internal/common/errors"
	"github.com/dumeirei/storefront-backend/internal/common/qrcode"
	"github.com/dumeirei/storefront-backend/internal/repository"
)

// InviteService 推荐码分享
type InviteService struct {
	userRepo *repository.UserRepository
	qr       *qrcode.Generator
	baseURL  string
}

// NewInviteService 创建推荐码服务，baseURL 为前端注册页地址
func NewInviteService(userRepo *repository.UserRepository, qr *qrcode.Generator, baseURL string) *InviteService {
	if baseURL == "" {
		baseURL = "https://shop.example.com"
	}
	if qr == nil {
		qr = qrcode.NewGenerator()
	}
	return &InviteService{userRepo: userRepo, qr: qr, baseURL: strings.TrimRight(baseURL, "/")}
}

// InviteInfo 推荐信息
type InviteInfo struct {
	ReferralCode string `json:"referral_code"`
	InviteLink   string `json:"invite_link"`
	QRCode       string `json:"qrcode"` // data URL
}

// GetInviteInfo 返回用户的推荐码、注册链接和二维码
func (s *InviteService) GetInviteInfo(ctx context.Context, userID int64) (*InviteInfo, error) {
	code, err := s.referralCode(ctx, userID)
	if err != nil {
		return nil, err
	}
	link := s.inviteLink(code)
	dataURL, err := s.qr.GenerateDataURL(link)
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}
	return &InviteInfo{ReferralCode: code, InviteLink: link, QRCode: dataURL}, nil
}

// QRCodePNG 推荐链接二维码 PNG
func (s *InviteService) QRCodePNG(ctx context.Context, userID int64) ([]byte, error) {
	code, err := s.referralCode(ctx, userID)
	if err != nil {
		return nil, err
	}
	png, err := s.qr.GeneratePNG(s.inviteLink(code))
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}
	return png, nil
}

func (s *InviteService) referralCode(ctx context.Context, userID int64) (string, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrUserNotFound
		}
		return "", apperrors.ErrDatabaseError.WithError(err)
	}
	return user.ReferralCode, nil
}

func (s *InviteService) inviteLink(code string) string {
	return s.baseURL + "/register?ref=" + url.QueryEscape(code)
}
