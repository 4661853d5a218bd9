// internal/services/synthesis_service.go
package services

import (
	"context"
	"fmt"

	"github.com/Corphon/CreatorStudioMCP/internal/audio"
	apperrors "github.com/Corphon/CreatorStudioMCP/internal/errors"
	"github.com/Corphon/CreatorStudioMCP/internal/models"
	"github.com/Corphon/CreatorStudioMCP/internal/utils"
)

// 管线状态机：idle -> script_ready -> image_pending -> image_ready
// -> audio_pending(i) -> complete，failed是任意一步可达的吸收态
const (
	StageIdle         = "idle"
	StageScriptReady  = "script_ready"
	StageImagePending = "image_pending"
	StageImageReady   = "image_ready"
	StageAudioPending = "audio_pending"
	StageComplete     = "complete"
	StageFailed       = "failed"
)

// SynthesisRequest 一次合成运行的输入
type SynthesisRequest struct {
	Draft        *models.Draft
	ImageModelID string
	VoiceModelID string
	Config       GenerationConfig
}

// SynthesisService 把已确认的脚本逐步合成为可播放媒体
// 所有供应商调用严格串行：保证行序、限速可控、进度可读
type SynthesisService struct {
	dispatch *DispatchService
	drafts   *DraftService
	logger   *utils.Logger
}

// NewSynthesisService 创建合成服务
func NewSynthesisService(dispatch *DispatchService, drafts *DraftService) *SynthesisService {
	return &SynthesisService{
		dispatch: dispatch,
		drafts:   drafts,
		logger:   utils.GetLogger(),
	}
}

// Run 执行整条合成管线
// 行i失败立即中止剩余行并返回一个错误；已完成的行连同草稿落盘保留，
// 重试时演播室图经StudioURL缓存复用。
// 重入由调用方把守（scenes已存在时不应再调用）；恢复语义为整条重跑。
func (s *SynthesisService) Run(ctx context.Context, req SynthesisRequest, tracker *ProgressTracker) error {
	draft := req.Draft
	if draft == nil || draft.Payload == nil || draft.Payload.Script == nil {
		return apperrors.NewValidationError("草稿缺少脚本，无法合成", nil)
	}

	script := draft.Payload.Script
	lines := script.Scenes
	total := len(lines)

	// 零行脚本：空场景列表，直接完成
	if total == 0 {
		draft.Payload.Scenes = []*models.SceneAsset{}
		s.drafts.Save(draft)
		s.report(tracker, 100, "合成完成")
		if tracker != nil {
			tracker.Complete("")
		}
		return nil
	}

	// 第一步：演播室图只请求一次，所有行复用
	if draft.Payload.StudioURL == "" {
		s.report(tracker, 5, "Generating studio image…")

		imagePrompt := buildStudioPrompt(draft.Payload.Topic, draft.Payload.Style, script.Title)
		imageResp, err := s.dispatch.GenerateImage(ctx, imagePrompt, req.ImageModelID, req.Config)
		if err != nil {
			s.fail(tracker, err)
			return apperrors.WrapError(err, "图像生成阶段失败", apperrors.ErrorTypeVendor)
		}
		// 提供者无图像能力时返回nil，管线继续，行上不带图
		if imageResp != nil {
			draft.Payload.StudioURL = imageResp.Data
		}
	}

	// 第二步：按脚本原始顺序逐行合成语音，顺序即播放顺序
	for i, line := range lines {
		s.report(tracker, 10+80*i/total, fmt.Sprintf("Recording Line %d of %d…", i+1, total))

		voiceID := voiceForSpeaker(draft.Payload.VoiceMap, line.Speaker)

		speechResp, err := s.dispatch.SynthesizeVoice(ctx, line.Voiceover, voiceID, req.VoiceModelID, req.Config)
		if err != nil {
			// 失败也落盘：已完成的行和演播室图保留下来供重试复用
			s.drafts.Save(draft)
			s.fail(tracker, err)
			return apperrors.WrapError(err,
				fmt.Sprintf("第%d行语音合成失败", i+1), apperrors.ErrorTypeVendor)
		}

		buf, err := audio.Decode(speechResp.Data)
		if err != nil {
			s.drafts.Save(draft)
			s.fail(tracker, err)
			return apperrors.NewDecodeError(
				fmt.Sprintf("第%d行音频解码失败", i+1), err)
		}

		draft.Payload.Scenes = append(draft.Payload.Scenes, &models.SceneAsset{
			Index:       i,
			Speaker:     line.Speaker,
			Voiceover:   line.Voiceover,
			ImageURL:    draft.Payload.StudioURL,
			AudioData:   speechResp.Data,
			AudioBuffer: buf,
			Status:      models.LineStatusCompleted,
			DurationSec: buf.Duration(),
		})
	}

	// 全部行成功后持久化一次
	s.report(tracker, 95, "Saving draft…")
	s.drafts.Save(draft)

	s.report(tracker, 100, "合成完成")
	if tracker != nil {
		tracker.Complete("")
	}
	return nil
}

// report 进度是旁路状态信号，不属于返回值
func (s *SynthesisService) report(tracker *ProgressTracker, progress int, message string) {
	s.logger.Infof("合成进度 %d%%: %s", progress, message)
	if tracker != nil {
		tracker.UpdateProgress(progress, message)
	}
}

func (s *SynthesisService) fail(tracker *ProgressTracker, err error) {
	if tracker != nil {
		tracker.Fail(err.Error())
	}
}

// voiceForSpeaker 取说话人槽位绑定的音色
func voiceForSpeaker(voiceMap map[string]string, speaker string) string {
	if voiceMap == nil {
		return ""
	}
	if voice, ok := voiceMap[speaker]; ok {
		return voice
	}
	return voiceMap["default"]
}

func buildStudioPrompt(topic, style, title string) string {
	if title == "" {
		title = topic
	}
	prompt := fmt.Sprintf("A cinematic studio scene illustrating: %s", title)
	if style != "" {
		prompt += ", " + style + " style"
	}
	return prompt
}
