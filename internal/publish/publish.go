// internal/publish/publish.go
package publish

import (
	"context"
	"io"

	"github.com/Corphon/CreatorStudioMCP/internal/models"
)

// UploadRequest 一次发布调用的输入
type UploadRequest struct {
	Title       string
	Description string
	Tags        []string
	Visibility  string // public / unlisted / private
	Media       io.Reader
	MediaSize   int64
}

// Publisher 平台发布客户端
// 发布是即发即忘的集成：单次尝试，不重试，失败原样上抛
type Publisher interface {
	Platform() string
	Upload(ctx context.Context, conn *models.AccountConnection, req UploadRequest) (*models.PublishResult, error)
}

// ForPlatform 按平台名取发布客户端
func ForPlatform(platform string) (Publisher, bool) {
	switch platform {
	case models.PlatformYouTube:
		return NewYouTubePublisher(), true
	case models.PlatformTikTok:
		return NewTikTokPublisher(), true
	case models.PlatformFacebook, models.PlatformInstagram:
		return NewMetaPublisher(platform), true
	}
	return nil, false
}
