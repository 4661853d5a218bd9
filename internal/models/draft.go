// internal/models/draft.go
package models

import (
	"time"
)

// 草稿内容类型
const (
	DraftTypeShorts  = "shorts"
	DraftTypeLong    = "long"
	DraftTypePodcast = "podcast"
)

// 场景/台词行状态
const (
	LineStatusPending    = "pending"
	LineStatusGenerating = "generating"
	LineStatusCompleted  = "completed"
	LineStatusFailed     = "failed"
)

// Draft 表示一个可恢复的创作项目
// ID在存储中唯一，UpdatedAt在每次保存时刷新
type Draft struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id,omitempty"`
	Type            string        `json:"type"`
	Title           string        `json:"title"`
	Subtitle        string        `json:"subtitle,omitempty"`
	PreviewImageURL string        `json:"preview_image_url,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Payload         *DraftPayload `json:"payload,omitempty"`
}

// DraftPayload 草稿的类型相关状态（脚本、逐行素材、生成配置）
type DraftPayload struct {
	Topic     string            `json:"topic,omitempty"`
	Style     string            `json:"style,omitempty"`
	Language  string            `json:"language,omitempty"`
	ModelID   string            `json:"model_id,omitempty"`
	VoiceMap  map[string]string `json:"voice_map,omitempty"` // 说话人槽位 -> 音色ID
	Script    *Script           `json:"script,omitempty"`
	Scenes    []*SceneAsset     `json:"scenes,omitempty"`
	StudioURL string            `json:"studio_url,omitempty"` // 共享的演播室/场景图
}

// SceneAsset 一条已合成的内容单元：台词文本 + 画面 + 音频
// AudioData是持久化的权威来源；AudioBuffer是解码后的易失缓存，
// 只在再水合(rehydration)之后存在，永不落盘
type SceneAsset struct {
	Index       int          `json:"index"`
	Speaker     string       `json:"speaker,omitempty"`
	Voiceover   string       `json:"voiceover"`
	ImageURL    string       `json:"image_url,omitempty"`
	VideoURL    string       `json:"video_url,omitempty"`
	AudioData   string       `json:"audio_data,omitempty"` // base64/data-URI编码音频
	AudioBuffer *AudioBuffer `json:"-"`
	Status      string       `json:"status"`
	DurationSec float64      `json:"duration_sec,omitempty"`
}

// AudioBuffer 解码后的PCM音频缓冲
type AudioBuffer struct {
	SampleRate int       `json:"-"`
	Channels   int       `json:"-"`
	Samples    []float32 `json:"-"`
}

// Duration 按采样数计算的时长（秒）
func (b *AudioBuffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate*b.Channels)
}

// HasHeavyMedia 判断某行是否仍携带大体积负载
func (s *SceneAsset) HasHeavyMedia() bool {
	return s.AudioData != "" || s.AudioBuffer != nil
}
