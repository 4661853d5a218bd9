// internal/services/synthesis_service_test.go
package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/CreatorStudioMCP/internal/errors"
	"github.com/Corphon/CreatorStudioMCP/internal/models"
)

func newSynthesisService(t *testing.T, provider *fakeProvider) (*SynthesisService, *DraftService) {
	t.Helper()

	registerFake(t, provider)
	drafts := NewDraftService(newTestStore(t))
	return NewSynthesisService(NewDispatchService(nil), drafts), drafts
}

func synthesisRequest(draft *models.Draft) SynthesisRequest {
	return SynthesisRequest{
		Draft:        draft,
		ImageModelID: "gpt-image-1",
		VoiceModelID: "tts-1",
		Config:       testGenerationConfig(),
	}
}

func TestSynthesisProducesOrderedScenes(t *testing.T) {
	provider := &fakeProvider{}
	svc, drafts := newSynthesisService(t, provider)

	draft := scriptDraft(4)
	require.NoError(t, svc.Run(context.Background(), synthesisRequest(draft), nil))

	require.Len(t, draft.Payload.Scenes, 4, "每行脚本产出一条场景")
	for i, scene := range draft.Payload.Scenes {
		assert.Equal(t, i, scene.Index, "场景顺序应与脚本一致")
		assert.Equal(t, models.LineStatusCompleted, scene.Status)
		assert.Greater(t, scene.DurationSec, 0.0, "时长来自解码后的缓冲")
		assert.NotNil(t, scene.AudioBuffer)
		assert.NotEmpty(t, scene.AudioData, "紧凑编码形式保留在行上")
		assert.Equal(t, draft.Payload.StudioURL, scene.ImageURL)
	}

	// 演播室图只请求一次，全部行复用
	assert.Equal(t, 1, provider.imageCalls)
	assert.NotEmpty(t, draft.Payload.StudioURL)

	// 运行结束持久化一次
	saved := drafts.GetAll("user-1")
	require.Len(t, saved, 1)
	assert.Len(t, saved[0].Payload.Scenes, 4)
}

func TestSynthesisReusesCachedStudioImage(t *testing.T) {
	provider := &fakeProvider{}
	svc, _ := newSynthesisService(t, provider)

	draft := scriptDraft(2)
	draft.Payload.StudioURL = "https://cdn.example.com/studio.png"

	require.NoError(t, svc.Run(context.Background(), synthesisRequest(draft), nil))

	assert.Zero(t, provider.imageCalls, "已有演播室图时不再请求")
	assert.Equal(t, "https://cdn.example.com/studio.png", draft.Payload.Scenes[0].ImageURL)
}

func TestSynthesisZeroLinesCompletesImmediately(t *testing.T) {
	provider := &fakeProvider{}
	svc, drafts := newSynthesisService(t, provider)

	draft := scriptDraft(0)
	tracker := NewProgressService().CreateTracker("task-0")

	require.NoError(t, svc.Run(context.Background(), synthesisRequest(draft), tracker))

	assert.NotNil(t, draft.Payload.Scenes)
	assert.Empty(t, draft.Payload.Scenes)
	assert.Zero(t, provider.imageCalls)
	assert.Zero(t, provider.speechCalls)
	assert.Equal(t, 100, tracker.Snapshot().Progress)

	saved := drafts.GetAll("user-1")
	require.Len(t, saved, 1, "零行脚本也要落一次盘")
}

func TestSynthesisFailureAbortsRemainingLines(t *testing.T) {
	provider := &fakeProvider{failAtCall: 3}
	svc, _ := newSynthesisService(t, provider)

	draft := scriptDraft(5)
	tracker := NewProgressService().CreateTracker("task-f")

	err := svc.Run(context.Background(), synthesisRequest(draft), tracker)
	require.Error(t, err)
	assert.True(t, apperrors.IsVendorError(err))

	// 前两行保留，失败行之后不再尝试
	assert.Len(t, draft.Payload.Scenes, 2, "已完成的行不回滚")
	assert.Equal(t, 3, provider.speechCalls, "失败后剩余行不应再调用")
	assert.Equal(t, StatusFailed, tracker.Snapshot().Status)
}

func TestSynthesisFailurePersistsPartialProgress(t *testing.T) {
	provider := &fakeProvider{failAtCall: 3}
	svc, drafts := newSynthesisService(t, provider)

	draft := scriptDraft(5)
	err := svc.Run(context.Background(), synthesisRequest(draft), nil)
	require.Error(t, err)

	// 失败的运行也落盘：已完成的行和演播室图留给重试
	stored, err := drafts.GetByID("user-1", "draft-1")
	require.NoError(t, err, "失败后的草稿应仍可见")
	require.NotNil(t, stored.Payload)
	require.Len(t, stored.Payload.Scenes, 2, "已完成的行随失败一起落盘")

	drafts.Rehydrate(context.Background(), stored)
	assert.Equal(t, "data:image/png;base64,aW1n", stored.Payload.StudioURL, "演播室图可供重试复用")
	for i, scene := range stored.Payload.Scenes {
		require.NotEmpty(t, scene.AudioData, "第%d行应取回编码音频", i)
		require.NotNil(t, scene.AudioBuffer, "第%d行再水合后应有缓冲", i)
	}
}

func TestSynthesisContinuesWithoutImageCapability(t *testing.T) {
	provider := &fakeProvider{noImage: true}
	svc, _ := newSynthesisService(t, provider)

	draft := scriptDraft(2)
	require.NoError(t, svc.Run(context.Background(), synthesisRequest(draft), nil))

	assert.Empty(t, draft.Payload.StudioURL, "无图像能力时管线继续，行上不带图")
	require.Len(t, draft.Payload.Scenes, 2)
	assert.Empty(t, draft.Payload.Scenes[0].ImageURL)
}

func TestSynthesisUndecodableAudioFails(t *testing.T) {
	provider := &fakeProvider{speechPayload: "data:audio/wav;base64,不是音频"}
	svc, _ := newSynthesisService(t, provider)

	draft := scriptDraft(1)
	err := svc.Run(context.Background(), synthesisRequest(draft), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsDecodeError(err))
}

func TestSynthesisRejectsDraftWithoutScript(t *testing.T) {
	svc, _ := newSynthesisService(t, &fakeProvider{})

	draft := &models.Draft{ID: "empty", Payload: &models.DraftPayload{}}
	err := svc.Run(context.Background(), synthesisRequest(draft), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestSynthesisProgressMessages(t *testing.T) {
	provider := &fakeProvider{}
	svc, _ := newSynthesisService(t, provider)

	draft := scriptDraft(3)
	tracker := NewProgressService().CreateTracker("task-p")
	updates := tracker.Subscribe()

	require.NoError(t, svc.Run(context.Background(), synthesisRequest(draft), tracker))

	var messages []string
	for {
		select {
		case u := <-updates:
			messages = append(messages, u.Message)
		default:
			goto done
		}
	}
done:
	joined := fmt.Sprint(messages)
	for i := 1; i <= 3; i++ {
		assert.Contains(t, joined, fmt.Sprintf("Recording Line %d of 3…", i))
	}
}
