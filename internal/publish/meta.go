// internal/publish/meta.go
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	apperrors "github.com/Corphon/CreatorStudioMCP/internal/errors"
	"github.com/Corphon/CreatorStudioMCP/internal/models"
)

// MetaPublisher 通过Graph API向Facebook主页或Instagram投稿
// facebook与instagram共用同一套Graph端点，仅路径不同
type MetaPublisher struct {
	platform string
	BaseURL  string
	Client   *http.Client
}

func NewMetaPublisher(platform string) *MetaPublisher {
	return &MetaPublisher{
		platform: platform,
		BaseURL:  "https://graph.facebook.com/v19.0",
		Client:   &http.Client{Timeout: 180 * time.Second},
	}
}

func (p *MetaPublisher) Platform() string {
	return p.platform
}

func (p *MetaPublisher) Upload(ctx context.Context, conn *models.AccountConnection, req UploadRequest) (*models.PublishResult, error) {
	if conn.AccessToken == "" {
		return nil, apperrors.NewConfigurationError(p.platform+"账号缺少access_token", nil)
	}

	// Graph API的视频接口按multipart接收文件与描述
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("description", req.Title); err != nil {
		return nil, err
	}
	part, err := mw.CreateFormFile("source", "video.mp4")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, req.Media); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/videos", p.BaseURL, conn.Username)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+conn.AccessToken)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewVendorError(p.platform+"请求失败", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewVendorError(
			fmt.Sprintf("%s API错误(%d): %s", p.platform, resp.StatusCode, string(body)), nil)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.NewVendorError("解析"+p.platform+"响应失败", err)
	}

	return &models.PublishResult{
		Platform: p.platform,
		VideoID:  result.ID,
	}, nil
}
