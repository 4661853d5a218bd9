// internal/models/account.go
package models

import (
	"time"
)

// 社交平台接入方式
const (
	ConnectionModeAPI    = "api"    // 通过平台API直接发布
	ConnectionModeManual = "manual" // 人工转交，仅记录账号
)

// 支持的发布平台
const (
	PlatformYouTube   = "youtube"
	PlatformTikTok    = "tiktok"
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
)

// AccountConnection 一个已链接的社交发布目的地
// (platform, username)组合唯一，重新连接时原地覆盖
type AccountConnection struct {
	Platform     string         `json:"platform"`
	Username     string         `json:"username"`
	AccessToken  string         `json:"access_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	Mode         string         `json:"mode"`
	Stats        *AccountStats  `json:"stats,omitempty"`
	ConnectedAt  time.Time      `json:"connected_at"`
}

// AccountStats 平台侧统计快照
type AccountStats struct {
	Followers int       `json:"followers,omitempty"`
	Views     int64     `json:"views,omitempty"`
	Videos    int       `json:"videos,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// PublishResult 一次发布调用的结果
type PublishResult struct {
	Platform string `json:"platform"`
	VideoID  string `json:"video_id,omitempty"`
	URL      string `json:"url,omitempty"`
}
