// internal/publish/youtube.go
package publish

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	apperrors "github.com/Corphon/CreatorStudioMCP/internal/errors"
	"github.com/Corphon/CreatorStudioMCP/internal/models"
)

// YouTubePublisher 通过YouTube Data API v3上传视频
type YouTubePublisher struct {
	// newService 可替换，测试时注入假服务
	newService func(ctx context.Context, conn *models.AccountConnection) (*youtube.Service, error)
}

func NewYouTubePublisher() *YouTubePublisher {
	return &YouTubePublisher{newService: youtubeService}
}

func (p *YouTubePublisher) Platform() string {
	return models.PlatformYouTube
}

// Upload 以账号令牌创建OAuth客户端并走可续传上传
func (p *YouTubePublisher) Upload(ctx context.Context, conn *models.AccountConnection, req UploadRequest) (*models.PublishResult, error) {
	if conn.AccessToken == "" {
		return nil, apperrors.NewConfigurationError("youtube账号缺少access_token", nil)
	}

	svc, err := p.newService(ctx, conn)
	if err != nil {
		return nil, apperrors.NewVendorError("创建youtube服务失败", err)
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = "private"
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: visibility,
		},
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	call.Media(req.Media)

	uploaded, err := call.Context(ctx).Do()
	if err != nil {
		return nil, apperrors.NewVendorError("youtube上传失败", err)
	}

	return &models.PublishResult{
		Platform: models.PlatformYouTube,
		VideoID:  uploaded.Id,
		URL:      fmt.Sprintf("https://www.youtube.com/watch?v=%s", uploaded.Id),
	}, nil
}

func youtubeService(ctx context.Context, conn *models.AccountConnection) (*youtube.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
	})
	return youtube.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, src)))
}
