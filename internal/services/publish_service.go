// internal/services/publish_service.go
package services

import (
	"context"
	"time"

	apperrors "github.com/Corphon/CreatorStudioMCP/internal/errors"
	"github.com/Corphon/CreatorStudioMCP/internal/models"
	"github.com/Corphon/CreatorStudioMCP/internal/publish"
	"github.com/Corphon/CreatorStudioMCP/internal/utils"
)

// PublishService 把已连接账号与平台发布客户端串起来
// 发布单次尝试，成功后顺带刷新账号的视频计数
type PublishService struct {
	accounts *AccountService
	logger   *utils.Logger

	// forPlatform 可替换，测试时注入假客户端
	forPlatform func(platform string) (publish.Publisher, bool)
}

func NewPublishService(accounts *AccountService) *PublishService {
	return &PublishService{
		accounts:    accounts,
		logger:      utils.GetLogger(),
		forPlatform: publish.ForPlatform,
	}
}

// Publish 用指定账号发布一段媒体
// manual模式的账号只做登记，不允许走API发布
func (s *PublishService) Publish(ctx context.Context, platform, username string, req publish.UploadRequest) (*models.PublishResult, error) {
	conn, err := s.accounts.Get(platform, username)
	if err != nil {
		return nil, err
	}
	if conn.Mode == models.ConnectionModeManual {
		return nil, apperrors.NewValidationError("该账号为manual模式，不支持API发布", nil)
	}

	pub, ok := s.forPlatform(platform)
	if !ok {
		return nil, apperrors.NewValidationError("不支持的发布平台: "+platform, nil)
	}

	result, err := pub.Upload(ctx, conn, req)
	if err != nil {
		return nil, err
	}

	stats := models.AccountStats{FetchedAt: time.Now()}
	if conn.Stats != nil {
		stats = *conn.Stats
	}
	stats.Videos++
	stats.FetchedAt = time.Now()
	if err := s.accounts.UpdateStats(platform, username, stats); err != nil {
		s.logger.Warnf("发布后更新账号统计失败: %v", err)
	}

	return result, nil
}
