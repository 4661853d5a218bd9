// internal/publish/tiktok.go
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/Corphon/CreatorStudioMCP/internal/errors"
	"github.com/Corphon/CreatorStudioMCP/internal/models"
)

// TikTokPublisher 通过TikTok Content Posting API发起投稿
// 仅实现直传初始化加单次PUT上传，不轮询审核状态
type TikTokPublisher struct {
	BaseURL string
	Client  *http.Client
}

func NewTikTokPublisher() *TikTokPublisher {
	return &TikTokPublisher{
		BaseURL: "https://open.tiktokapis.com/v2",
		Client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *TikTokPublisher) Platform() string {
	return models.PlatformTikTok
}

func (p *TikTokPublisher) Upload(ctx context.Context, conn *models.AccountConnection, req UploadRequest) (*models.PublishResult, error) {
	if conn.AccessToken == "" {
		return nil, apperrors.NewConfigurationError("tiktok账号缺少access_token", nil)
	}

	initBody := map[string]interface{}{
		"post_info": map[string]interface{}{
			"title":         req.Title,
			"privacy_level": "SELF_ONLY",
		},
		"source_info": map[string]interface{}{
			"source":     "FILE_UPLOAD",
			"video_size": req.MediaSize,
		},
	}

	data, err := json.Marshal(initBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		p.BaseURL+"/post/publish/video/init/", bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+conn.AccessToken)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewVendorError("tiktok请求失败", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewVendorError(
			fmt.Sprintf("tiktok API错误(%d): %s", resp.StatusCode, string(body)), nil)
	}

	var result struct {
		Data struct {
			PublishID string `json:"publish_id"`
			UploadURL string `json:"upload_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.NewVendorError("解析tiktok响应失败", err)
	}
	if result.Data.UploadURL == "" {
		return nil, apperrors.NewVendorError("tiktok未返回上传地址", nil)
	}

	putReq, err := http.NewRequestWithContext(ctx, "PUT", result.Data.UploadURL, req.Media)
	if err != nil {
		return nil, err
	}
	putReq.Header.Set("Content-Type", "video/mp4")
	putReq.ContentLength = req.MediaSize

	putResp, err := p.Client.Do(putReq)
	if err != nil {
		return nil, apperrors.NewVendorError("tiktok上传失败", err)
	}
	defer putResp.Body.Close()
	if putResp.StatusCode >= 300 {
		return nil, apperrors.NewVendorError(
			fmt.Sprintf("tiktok上传错误(%d)", putResp.StatusCode), nil)
	}

	return &models.PublishResult{
		Platform: models.PlatformTikTok,
		VideoID:  result.Data.PublishID,
	}, nil
}
