// internal/services/draft_service_test.go
package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/CreatorStudioMCP/internal/errors"
	"github.com/Corphon/CreatorStudioMCP/internal/models"
)

func TestDraftSaveAndReload(t *testing.T) {
	store := newTestStore(t)
	svc := NewDraftService(store)

	draft := scriptDraft(2)
	svc.Save(draft)

	assert.False(t, draft.CreatedAt.IsZero(), "保存时应补建立时间")
	assert.False(t, draft.UpdatedAt.IsZero())

	// 新服务实例模拟重启后的读取
	reload := NewDraftService(store)
	drafts := reload.GetAll("user-1")
	require.Len(t, drafts, 1)
	assert.Equal(t, "draft-1", drafts[0].ID)
	assert.Equal(t, "测试草稿", drafts[0].Title)
	assert.Equal(t, models.DraftTypeShorts, drafts[0].Type)
	require.NotNil(t, drafts[0].Payload)
	assert.Equal(t, "深海生物", drafts[0].Payload.Topic)
	require.NotNil(t, drafts[0].Payload.Script)
	assert.Len(t, drafts[0].Payload.Script.Scenes, 2)
}

func TestDraftCapKeepsMostRecent(t *testing.T) {
	store := newTestStore(t)
	svc := NewDraftService(store)

	for i := 0; i < MaxDrafts+5; i++ {
		draft := scriptDraft(0)
		draft.ID = fmt.Sprintf("draft-%02d", i)
		draft.Title = fmt.Sprintf("第%d篇", i)
		svc.Save(draft)
	}

	drafts := svc.GetAll("user-1")
	require.Len(t, drafts, MaxDrafts, "集合应裁剪到上限")

	// 最新的在最前，最旧的5篇被挤掉
	assert.Equal(t, "draft-24", drafts[0].ID)
	assert.Equal(t, "draft-05", drafts[MaxDrafts-1].ID)
}

func TestDraftResaveMovesToFront(t *testing.T) {
	store := newTestStore(t)
	svc := NewDraftService(store)

	for i := 0; i < 3; i++ {
		draft := scriptDraft(0)
		draft.ID = fmt.Sprintf("draft-%d", i)
		svc.Save(draft)
	}

	old := scriptDraft(0)
	old.ID = "draft-0"
	old.Title = "改过的标题"
	svc.Save(old)

	drafts := svc.GetAll("user-1")
	require.Len(t, drafts, 3, "重存同ID不应产生重复")
	assert.Equal(t, "draft-0", drafts[0].ID)
	assert.Equal(t, "改过的标题", drafts[0].Title)
}

func TestDraftStripsHeavyPayload(t *testing.T) {
	store := newTestStore(t)
	svc := NewDraftService(store)

	longVoiceover := strings.Repeat("旁白", 200)
	draft := scriptDraft(1)
	draft.Payload.StudioURL = "data:image/png;base64,aW1n"
	draft.Payload.Scenes = []*models.SceneAsset{{
		Index:       0,
		Speaker:     "host",
		Voiceover:   longVoiceover,
		ImageURL:    "data:image/png;base64,aW1n",
		AudioData:   wavDataURI(),
		AudioBuffer: &models.AudioBuffer{SampleRate: 24000, Channels: 1, Samples: make([]float32, 24000)},
		Status:      models.LineStatusCompleted,
		DurationSec: 1.0,
	}}
	svc.Save(draft)

	// 直读存储，验证落盘的是轻量形态
	var stored []*models.Draft
	require.NoError(t, store.LoadEntryFresh(DraftCollectionEntry, &stored))
	require.Len(t, stored, 1)
	require.Len(t, stored[0].Payload.Scenes, 1)

	scene := stored[0].Payload.Scenes[0]
	assert.Empty(t, scene.AudioData, "内联音频应被剥掉")
	assert.Nil(t, scene.AudioBuffer, "解码缓冲不应落盘")
	assert.Empty(t, scene.ImageURL, "内联图像应被剥掉")
	assert.Empty(t, stored[0].Payload.StudioURL)

	// 元数据保持完整
	assert.Equal(t, models.LineStatusCompleted, scene.Status)
	assert.InDelta(t, 1.0, scene.DurationSec, 1e-9)
	assert.Equal(t, "host", scene.Speaker)
	assert.LessOrEqual(t, len([]rune(scene.Voiceover)), excerptLimit+1, "旁白应裁到摘录长度")
	assert.True(t, strings.HasSuffix(scene.Voiceover, "…"))

	// 内存里的原对象不受剥离影响
	assert.NotEmpty(t, draft.Payload.Scenes[0].AudioData)
	assert.NotNil(t, draft.Payload.Scenes[0].AudioBuffer)
}

func TestDraftPreviewAutoPopulated(t *testing.T) {
	store := newTestStore(t)
	svc := NewDraftService(store)

	inlineImage := "data:image/png;base64,aW1n"
	draft := scriptDraft(1)
	draft.Payload.Scenes = []*models.SceneAsset{
		{Index: 0},
		{Index: 1, ImageURL: inlineImage},
	}
	svc.Save(draft)

	// 预览图取负载里第一条带图的行，内联形式原样保留
	assert.Equal(t, inlineImage, draft.PreviewImageURL)

	var stored []*models.Draft
	require.NoError(t, store.LoadEntryFresh(DraftCollectionEntry, &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, inlineImage, stored[0].PreviewImageURL, "预览字段不参与剥离")
}

func TestDraftOwnershipFiltering(t *testing.T) {
	store := newTestStore(t)
	svc := NewDraftService(store)

	owned := scriptDraft(0)
	owned.ID = "owned"
	owned.UserID = "alice"
	svc.Save(owned)

	legacy := scriptDraft(0)
	legacy.ID = "legacy"
	legacy.UserID = ""
	svc.Save(legacy)

	// 旧数据无归属，对任何用户可见
	aliceDrafts := svc.GetAll("alice")
	assert.Len(t, aliceDrafts, 2)

	bobDrafts := svc.GetAll("bob")
	require.Len(t, bobDrafts, 1)
	assert.Equal(t, "legacy", bobDrafts[0].ID)

	_, err := svc.GetByID("bob", "owned")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestDraftDelete(t *testing.T) {
	store := newTestStore(t)
	svc := NewDraftService(store)

	draft := scriptDraft(0)
	svc.Save(draft)

	require.NoError(t, svc.Delete("draft-1"))
	assert.Empty(t, svc.GetAll("user-1"))

	err := svc.Delete("draft-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestDraftQuotaFailureIsSwallowed(t *testing.T) {
	store := newTestStore(t)
	store.QuotaBytes = 128
	svc := NewDraftService(store)

	draft := scriptDraft(3)
	svc.Save(draft) // 超配额，只记日志

	// 当前会话内的对象仍然完整可用
	assert.Len(t, draft.Payload.Script.Scenes, 3)
	assert.Empty(t, svc.GetAll("user-1"), "写入失败时存储应保持原状")
}

func TestRehydrateRestoresStoredAudio(t *testing.T) {
	store := newTestStore(t)
	svc := NewDraftService(store)

	inlineImage := "data:image/png;base64,aW1n"
	draft := scriptDraft(0)
	draft.Payload.StudioURL = inlineImage
	draft.Payload.Scenes = []*models.SceneAsset{
		{Index: 0, AudioData: wavDataURI(), ImageURL: inlineImage, Status: models.LineStatusCompleted},
		{Index: 1, AudioData: wavDataURI(), Status: models.LineStatusCompleted},
	}
	svc.Save(draft)

	// 重启后集合里是轻量形态，编码音频在独立的重负载条目里
	assert.True(t, store.EntryExists(mediaEntryName("draft-1")))

	reload := NewDraftService(store)
	stored, err := reload.GetByID("user-1", "draft-1")
	require.NoError(t, err)
	require.Len(t, stored.Payload.Scenes, 2)
	assert.Empty(t, stored.Payload.Scenes[0].AudioData, "集合条目不携带编码音频")
	assert.Empty(t, stored.Payload.StudioURL)

	reload.Rehydrate(context.Background(), stored)

	for i, scene := range stored.Payload.Scenes {
		require.NotEmpty(t, scene.AudioData, "第%d行应取回编码音频", i)
		require.NotNil(t, scene.AudioBuffer, "第%d行再水合后应有缓冲", i)
		assert.InDelta(t, 0.5, scene.AudioBuffer.Duration(), 1e-6)
	}
	assert.Equal(t, inlineImage, stored.Payload.StudioURL, "演播室图从重负载条目取回")
	assert.Equal(t, inlineImage, stored.Payload.Scenes[0].ImageURL)
}

func TestDraftDeleteRemovesMediaEntry(t *testing.T) {
	store := newTestStore(t)
	svc := NewDraftService(store)

	draft := scriptDraft(0)
	draft.Payload.Scenes = []*models.SceneAsset{
		{Index: 0, AudioData: wavDataURI(), Status: models.LineStatusCompleted},
	}
	svc.Save(draft)
	require.True(t, store.EntryExists(mediaEntryName("draft-1")))

	require.NoError(t, svc.Delete("draft-1"))
	assert.False(t, store.EntryExists(mediaEntryName("draft-1")), "删除草稿应连带清理重负载")
}

func TestDraftEvictionCleansMediaEntry(t *testing.T) {
	store := newTestStore(t)
	svc := NewDraftService(store)

	for i := 0; i < MaxDrafts+1; i++ {
		draft := scriptDraft(0)
		draft.ID = fmt.Sprintf("draft-%02d", i)
		draft.Payload.Scenes = []*models.SceneAsset{
			{Index: 0, AudioData: wavDataURI(), Status: models.LineStatusCompleted},
		}
		svc.Save(draft)
	}

	// 被挤出上限的最旧草稿，重负载条目一并清理
	assert.False(t, store.EntryExists(mediaEntryName("draft-00")))
	assert.True(t, store.EntryExists(mediaEntryName("draft-20")))
}

func TestRehydrateDecodesValidLinesAndSkipsInvalid(t *testing.T) {
	store := newTestStore(t)
	svc := NewDraftService(store)

	draft := scriptDraft(0)
	draft.Payload.Scenes = []*models.SceneAsset{
		{Index: 0, AudioData: wavDataURI(), Status: models.LineStatusCompleted},
		{Index: 1, AudioData: "data:audio/wav;base64,坏数据", Status: models.LineStatusCompleted},
		{Index: 2, Status: models.LineStatusPending}, // 无音频，跳过
	}

	svc.Rehydrate(context.Background(), draft)

	valid := draft.Payload.Scenes[0]
	require.NotNil(t, valid.AudioBuffer, "有效行应解码出缓冲")
	assert.InDelta(t, 0.5, valid.AudioBuffer.Duration(), 1e-6)
	assert.Greater(t, valid.DurationSec, 0.0)

	invalid := draft.Payload.Scenes[1]
	assert.Nil(t, invalid.AudioBuffer)
	assert.Equal(t, models.LineStatusPending, invalid.Status, "坏行应回到待生成状态")

	assert.Nil(t, draft.Payload.Scenes[2].AudioBuffer)
}
