// internal/services/usage_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/CreatorStudioMCP/internal/llm"
	"github.com/Corphon/CreatorStudioMCP/internal/models"
)

// fixedClock 可拨动的测试时钟
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func newClockedUsageService(t *testing.T, start time.Time) (*UsageService, *fixedClock) {
	t.Helper()

	svc := NewUsageService(newTestStore(t))
	clock := &fixedClock{now: start}
	svc.now = clock.Now
	return svc, clock
}

func TestUsageAppendAndSummary(t *testing.T) {
	svc, _ := newClockedUsageService(t, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))

	svc.ObserveUsage(llm.Usage{ModelID: "gpt-4.1-mini", Kind: llm.KindText, PromptTokens: 100, OutputTokens: 50, CostUSD: 0.01})
	svc.ObserveUsage(llm.Usage{ModelID: "tts-1", Kind: llm.KindSpeech, Characters: 500, CostUSD: 0.0075})

	records := svc.GetRecords()
	require.Len(t, records, 2)
	assert.Equal(t, "gpt-4.1-mini", records[0].ModelID, "记录按到达顺序追加")

	summary := svc.GetSummary()
	assert.Equal(t, 2, summary.TodayRequests)
	assert.Equal(t, 150, summary.TodayTokens)
	assert.Equal(t, 2, summary.WindowCalls)
	assert.InDelta(t, 0.0175, summary.WindowCostUSD, 1e-9)
}

func TestUsagePrunesThirtyDayWindow(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	svc, clock := newClockedUsageService(t, start)

	svc.ObserveUsage(llm.Usage{ModelID: "gpt-4.1-mini", Kind: llm.KindText, PromptTokens: 10})

	// 40天后再记一笔，旧记录应被裁掉
	clock.now = start.AddDate(0, 0, 40)
	svc.ObserveUsage(llm.Usage{ModelID: "tts-1", Kind: llm.KindSpeech, Characters: 100})

	records := svc.GetRecords()
	require.Len(t, records, 1)
	assert.Equal(t, "tts-1", records[0].ModelID)

	// 窗口边界内的记录保留
	clock.now = clock.now.AddDate(0, 0, 29)
	records = svc.GetRecords()
	assert.Len(t, records, 1)
}

func TestUsageDailyCountersResetOnNewDay(t *testing.T) {
	day1 := time.Date(2026, 8, 29, 23, 50, 0, 0, time.UTC)
	svc, clock := newClockedUsageService(t, day1)

	svc.ObserveUsage(llm.Usage{ModelID: "gpt-4.1-mini", Kind: llm.KindText, PromptTokens: 100, OutputTokens: 100})
	svc.ObserveUsage(llm.Usage{ModelID: "gpt-4.1-mini", Kind: llm.KindText, PromptTokens: 100, OutputTokens: 100})

	summary := svc.GetSummary()
	assert.Equal(t, 2, summary.TodayRequests)
	assert.Equal(t, 400, summary.TodayTokens)

	// 跨过午夜，日期标记不再匹配，两个计数器一起归零
	clock.now = time.Date(2026, 8, 30, 0, 10, 0, 0, time.UTC)
	svc.ObserveUsage(llm.Usage{ModelID: "gpt-4.1-mini", Kind: llm.KindText, PromptTokens: 30, OutputTokens: 20})

	summary = svc.GetSummary()
	assert.Equal(t, 1, summary.TodayRequests)
	assert.Equal(t, 50, summary.TodayTokens)

	// 30天窗口不受日切影响
	assert.Equal(t, 3, summary.WindowCalls)
}

func TestUsagePruneFlushesPersistedLog(t *testing.T) {
	store := newTestStore(t)
	svc := NewUsageService(store)
	clock := &fixedClock{now: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)}
	svc.now = clock.Now

	svc.ObserveUsage(llm.Usage{ModelID: "gpt-4.1-mini", Kind: llm.KindText, PromptTokens: 10})
	require.NoError(t, svc.Close()) // 旧记录已在盘上

	// 40天后再记一笔；把保存窗口拨到刚刷新过，
	// 只有裁剪本身能触发这次落盘
	clock.now = clock.now.AddDate(0, 0, 40)
	svc.lastSaveTime = clock.now
	svc.ObserveUsage(llm.Usage{ModelID: "tts-1", Kind: llm.KindSpeech, Characters: 100})

	var persisted []models.UsageRecord
	require.NoError(t, store.LoadEntryFresh(UsageLogEntry, &persisted))
	require.Len(t, persisted, 1, "持久副本不应保留窗口外的记录")
	assert.Equal(t, "tts-1", persisted[0].ModelID)
}

func TestUsageSurvivesRestart(t *testing.T) {
	store := newTestStore(t)

	svc := NewUsageService(store)
	svc.ObserveUsage(llm.Usage{ModelID: "dall-e-3", Kind: llm.KindImage, Units: 1, CostUSD: 0.04})
	require.NoError(t, svc.Close())

	// 新实例从存储恢复
	restarted := NewUsageService(store)
	records := restarted.GetRecords()
	require.Len(t, records, 1)
	assert.Equal(t, "dall-e-3", records[0].ModelID)

	var counters models.DailyCounters
	require.NoError(t, store.LoadEntryFresh(DailyCountersEntry, &counters))
	assert.Equal(t, 1, counters.Requests)
}
