// internal/services/draft_service.go
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/CreatorStudioMCP/internal/audio"
	apperrors "github.com/Corphon/CreatorStudioMCP/internal/errors"
	"github.com/Corphon/CreatorStudioMCP/internal/models"
	"github.com/Corphon/CreatorStudioMCP/internal/storage"
	"github.com/Corphon/CreatorStudioMCP/internal/utils"
)

const (
	// DraftCollectionEntry 草稿集合在本地存储中的条目名
	DraftCollectionEntry = "drafts"

	// DraftMediaEntryPrefix 单个草稿重负载条目的名称前缀
	// 重负载与轻量集合分离存储，各自独立受条目配额约束
	DraftMediaEntryPrefix = "draft_media_"

	// MaxDrafts 集合保留的最近草稿数，写入前裁剪以约束存储体积
	MaxDrafts = 20

	// excerptLimit 轻量负载保留的文本摘录长度
	excerptLimit = 120
)

// draftMedia 草稿的重负载：编码音频是持久化的权威来源，
// 再水合时从这里取回并解码
type draftMedia struct {
	StudioURL string           `json:"studio_url,omitempty"`
	Lines     []draftMediaLine `json:"lines,omitempty"`
}

type draftMediaLine struct {
	Index     int    `json:"index"`
	AudioData string `json:"audio_data,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	VideoURL  string `json:"video_url,omitempty"`
}

func mediaEntryName(draftID string) string {
	return DraftMediaEntryPrefix + draftID
}

// DraftService 提供草稿的配额安全持久化
// 内存中的状态是当前会话的权威来源：写入失败只记日志，不打断调用方
type DraftService struct {
	store  *storage.FileStorage
	logger *utils.Logger
	mutex  sync.Mutex // 序列化本进程内的读-改-写
}

// NewDraftService 创建草稿服务
func NewDraftService(store *storage.FileStorage) *DraftService {
	return &DraftService{
		store:  store,
		logger: utils.GetLogger(),
	}
}

// Save 保存草稿
// 流程：补preview图 -> 生成轻量负载 -> 按ID插入或前移 -> 裁剪到上限 -> 写入
// 写入失败（如超配额）被吞掉只记日志；跨进程并发以后写者为准
func (s *DraftService) Save(draft *models.Draft) {
	if draft == nil || draft.ID == "" {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now

	// 未显式提供时，从负载里扫出第一张图作为历史列表缩略图
	if draft.PreviewImageURL == "" {
		draft.PreviewImageURL = scanPreviewImage(draft.Payload)
	}

	stored := *draft
	stored.Payload = lightweightPayload(draft.Payload)

	// 写入前必须读最新快照，避免覆盖其他进程刚保存的内容
	collection := s.loadCollectionFresh()

	// 按ID插入或前移
	updated := make([]*models.Draft, 0, len(collection)+1)
	updated = append(updated, &stored)
	for _, existing := range collection {
		if existing.ID != stored.ID {
			updated = append(updated, existing)
		}
	}

	// 裁剪到最近N条，被挤出的草稿连同其重负载一起清理
	if len(updated) > MaxDrafts {
		for _, evicted := range updated[MaxDrafts:] {
			if err := s.store.DeleteEntry(mediaEntryName(evicted.ID)); err != nil && !apperrors.IsNotFoundError(err) {
				s.logger.Warnf("草稿 %s 重负载清理失败: %v", evicted.ID, err)
			}
		}
		updated = updated[:MaxDrafts]
	}

	if err := s.store.SaveEntry(DraftCollectionEntry, updated); err != nil {
		// 配额等写入失败不抛给调用方，当前会话以内存状态为准
		s.logger.Warnf("草稿集合写入失败: %v", err)
	}

	s.saveMedia(draft)
}

// saveMedia 把编码音频等重负载存入草稿独立条目
// 没有重负载时删除陈旧条目；写入失败同样只记日志
func (s *DraftService) saveMedia(draft *models.Draft) {
	media := extractMedia(draft.Payload)
	if media == nil {
		if err := s.store.DeleteEntry(mediaEntryName(draft.ID)); err != nil && !apperrors.IsNotFoundError(err) {
			s.logger.Warnf("草稿 %s 重负载清理失败: %v", draft.ID, err)
		}
		return
	}

	if err := s.store.SaveEntry(mediaEntryName(draft.ID), media); err != nil {
		s.logger.Warnf("草稿 %s 重负载写入失败: %v", draft.ID, err)
	}
}

// extractMedia 从负载里收集内联的大体积内容，没有则返回nil
func extractMedia(payload *models.DraftPayload) *draftMedia {
	if payload == nil {
		return nil
	}

	media := &draftMedia{}
	if isInlineData(payload.StudioURL) {
		media.StudioURL = payload.StudioURL
	}

	for _, scene := range payload.Scenes {
		if scene == nil {
			continue
		}

		line := draftMediaLine{Index: scene.Index, AudioData: scene.AudioData}
		if isInlineData(scene.ImageURL) {
			line.ImageURL = scene.ImageURL
		}
		if isInlineData(scene.VideoURL) {
			line.VideoURL = scene.VideoURL
		}
		if line.AudioData != "" || line.ImageURL != "" || line.VideoURL != "" {
			media.Lines = append(media.Lines, line)
		}
	}

	if media.StudioURL == "" && len(media.Lines) == 0 {
		return nil
	}
	return media
}

// GetAll 返回属于该用户的草稿
// 没有记录归属的旧草稿视为遗留数据，对任何用户可见
func (s *DraftService) GetAll(userID string) []*models.Draft {
	collection := s.loadCollection()

	result := make([]*models.Draft, 0, len(collection))
	for _, draft := range collection {
		if draft.UserID == "" || draft.UserID == userID {
			result = append(result, draft)
		}
	}
	return result
}

// GetByID 按ID查找草稿
func (s *DraftService) GetByID(userID, draftID string) (*models.Draft, error) {
	for _, draft := range s.GetAll(userID) {
		if draft.ID == draftID {
			return draft, nil
		}
	}
	return nil, apperrors.NewNotFoundError("草稿不存在: "+draftID, nil)
}

// Delete 按ID删除草稿并重写集合
func (s *DraftService) Delete(draftID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	collection := s.loadCollectionFresh()

	found := false
	updated := make([]*models.Draft, 0, len(collection))
	for _, draft := range collection {
		if draft.ID == draftID {
			found = true
			continue
		}
		updated = append(updated, draft)
	}

	if !found {
		return apperrors.NewNotFoundError("草稿不存在: "+draftID, nil)
	}

	if err := s.store.SaveEntry(DraftCollectionEntry, updated); err != nil {
		s.logger.Warnf("草稿集合重写失败: %v", err)
	}
	if err := s.store.DeleteEntry(mediaEntryName(draftID)); err != nil && !apperrors.IsNotFoundError(err) {
		s.logger.Warnf("草稿 %s 重负载清理失败: %v", draftID, err)
	}
	return nil
}

// Rehydrate 从重负载条目取回编码音频并并发解码回可播放缓冲
// 单行解码失败按行恢复（置pending等待重新生成），不影响草稿整体加载
func (s *DraftService) Rehydrate(ctx context.Context, draft *models.Draft) {
	if draft == nil || draft.Payload == nil {
		return
	}

	s.mergeMedia(draft)

	var wg sync.WaitGroup
	for _, scene := range draft.Payload.Scenes {
		if scene == nil || scene.AudioBuffer != nil || scene.AudioData == "" {
			continue
		}

		wg.Add(1)
		go func(scene *models.SceneAsset) {
			defer wg.Done()

			buf, err := audio.Decode(scene.AudioData)
			if err != nil {
				s.logger.Warnf("草稿 %s 第%d行音频解码失败: %v", draft.ID, scene.Index, err)
				scene.Status = models.LineStatusPending
				return
			}

			scene.AudioBuffer = buf
			if scene.DurationSec == 0 {
				scene.DurationSec = buf.Duration()
			}
		}(scene)
	}
	wg.Wait()
}

// mergeMedia 把独立条目里的重负载按行号合回轻量草稿
func (s *DraftService) mergeMedia(draft *models.Draft) {
	var media draftMedia
	if err := s.store.LoadEntry(mediaEntryName(draft.ID), &media); err != nil {
		if !apperrors.IsNotFoundError(err) {
			s.logger.Warnf("草稿 %s 重负载读取失败: %v", draft.ID, err)
		}
		return
	}

	if draft.Payload.StudioURL == "" {
		draft.Payload.StudioURL = media.StudioURL
	}

	byIndex := make(map[int]draftMediaLine, len(media.Lines))
	for _, line := range media.Lines {
		byIndex[line.Index] = line
	}

	for _, scene := range draft.Payload.Scenes {
		if scene == nil {
			continue
		}
		line, ok := byIndex[scene.Index]
		if !ok {
			continue
		}
		if scene.AudioData == "" {
			scene.AudioData = line.AudioData
		}
		if scene.ImageURL == "" {
			scene.ImageURL = line.ImageURL
		}
		if scene.VideoURL == "" {
			scene.VideoURL = line.VideoURL
		}
	}
}

// loadCollection 读取草稿集合，缺失或损坏时返回空集合
func (s *DraftService) loadCollection() []*models.Draft {
	var collection []*models.Draft
	if err := s.store.LoadEntry(DraftCollectionEntry, &collection); err != nil {
		if !apperrors.IsNotFoundError(err) {
			s.logger.Warnf("草稿集合读取失败: %v", err)
		}
		return nil
	}
	return collection
}

func (s *DraftService) loadCollectionFresh() []*models.Draft {
	var collection []*models.Draft
	if err := s.store.LoadEntryFresh(DraftCollectionEntry, &collection); err != nil {
		if !apperrors.IsNotFoundError(err) {
			s.logger.Warnf("草稿集合读取失败: %v", err)
		}
		return nil
	}
	return collection
}

// scanPreviewImage 扫描负载，取第一条带图像或视频引用的行
func scanPreviewImage(payload *models.DraftPayload) string {
	if payload == nil {
		return ""
	}

	for _, scene := range payload.Scenes {
		if scene == nil {
			continue
		}
		if scene.ImageURL != "" {
			return scene.ImageURL
		}
		if scene.VideoURL != "" {
			return scene.VideoURL
		}
	}
	return ""
}

// lightweightPayload 生成存储安全的负载副本
// 剥掉内联图像、base64音频和解码缓冲，保留渲染历史列表所需的元数据
func lightweightPayload(payload *models.DraftPayload) *models.DraftPayload {
	if payload == nil {
		return nil
	}

	light := *payload
	if isInlineData(light.StudioURL) {
		light.StudioURL = ""
	}

	light.Scenes = make([]*models.SceneAsset, 0, len(payload.Scenes))
	for _, scene := range payload.Scenes {
		if scene == nil {
			continue
		}

		copied := *scene
		copied.AudioBuffer = nil
		copied.AudioData = ""
		if isInlineData(copied.ImageURL) {
			copied.ImageURL = ""
		}
		if isInlineData(copied.VideoURL) {
			copied.VideoURL = ""
		}
		copied.Voiceover = excerpt(copied.Voiceover)
		light.Scenes = append(light.Scenes, &copied)
	}
	return &light
}

// isInlineData 判断引用是否为内联的大体积data-URI
func isInlineData(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLimit {
		return text
	}
	return string(runes[:excerptLimit]) + "…"
}
