// internal/services/usage_service.go
package services

import (
	"sync"
	"time"

	apperrors "github.com/Corphon/CreatorStudioMCP/internal/errors"
	"github.com/Corphon/CreatorStudioMCP/internal/llm"
	"github.com/Corphon/CreatorStudioMCP/internal/models"
	"github.com/Corphon/CreatorStudioMCP/internal/storage"
	"github.com/Corphon/CreatorStudioMCP/internal/utils"
)

const (
	// UsageLogEntry 用量日志在本地存储中的条目名
	UsageLogEntry = "usage_log"

	// DailyCountersEntry 当日计数器的条目名
	DailyCountersEntry = "daily_counters"

	// UsageWindowDays 用量日志保留的滚动窗口天数
	UsageWindowDays = 30
)

// UsageService 记录每次计费API调用并维护滚动汇总
// 实现llm.UsageObserver；所有持久化都是尽力而为，错误只记日志，
// 绝不传染到生成调用链路
type UsageService struct {
	store  *storage.FileStorage
	logger *utils.Logger
	mutex  sync.Mutex

	cachedLog      []models.UsageRecord
	cachedCounters *models.DailyCounters

	// 批量保存控制
	isDirty      bool
	lastSaveTime time.Time
	saveInterval time.Duration

	now func() time.Time // 测试可替换的时钟
}

// NewUsageService 创建用量服务实例
func NewUsageService(store *storage.FileStorage) *UsageService {
	service := &UsageService{
		store:        store,
		logger:       utils.GetLogger(),
		saveInterval: 30 * time.Second,
		now:          time.Now,
	}

	service.startPeriodicSave()

	return service
}

// ObserveUsage 实现llm.UsageObserver
// 按到达顺序追加记录（不是逻辑请求顺序），随手裁掉30天窗口外的旧记录
func (s *UsageService) ObserveUsage(usage llm.Usage) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.ensureLoadedUnlocked()

	now := s.now()
	record := models.UsageRecord{
		Timestamp:    now,
		ModelID:      usage.ModelID,
		Provider:     usage.Provider,
		Kind:         usage.Kind,
		PromptTokens: usage.PromptTokens,
		OutputTokens: usage.OutputTokens,
		Characters:   usage.Characters,
		Units:        usage.Units,
		CostUSD:      usage.CostUSD,
	}

	s.cachedLog = append(s.cachedLog, record)
	sizeBeforePrune := len(s.cachedLog)
	s.cachedLog = pruneWindow(s.cachedLog, now)
	prunedAny := len(s.cachedLog) < sizeBeforePrune

	// 当日计数器：日期标记不匹配时先归零
	s.rolloverCountersUnlocked(now)
	s.cachedCounters.Requests++
	s.cachedCounters.Tokens += usage.PromptTokens + usage.OutputTokens

	s.isDirty = true
	// 裁掉了旧记录时跳过批量窗口立即落盘，持久副本不保留窗口外数据
	if prunedAny || now.Sub(s.lastSaveTime) > s.saveInterval {
		s.saveUnlocked()
	}
}

// GetSummary 返回当日与30天窗口的汇总
func (s *UsageService) GetSummary() models.UsageSummary {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.ensureLoadedUnlocked()

	now := s.now()
	s.rolloverCountersUnlocked(now)
	s.cachedLog = pruneWindow(s.cachedLog, now)

	summary := models.UsageSummary{
		TodayRequests: s.cachedCounters.Requests,
		TodayTokens:   s.cachedCounters.Tokens,
		WindowDays:    UsageWindowDays,
	}
	for _, record := range s.cachedLog {
		summary.WindowCalls++
		summary.WindowTokens += record.PromptTokens + record.OutputTokens
		summary.WindowCostUSD += record.CostUSD
	}
	return summary
}

// GetRecords 返回窗口内全部记录的副本，新到的在后
func (s *UsageService) GetRecords() []models.UsageRecord {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.ensureLoadedUnlocked()
	s.cachedLog = pruneWindow(s.cachedLog, s.now())

	records := make([]models.UsageRecord, len(s.cachedLog))
	copy(records, s.cachedLog)
	return records
}

// ensureLoadedUnlocked 首次访问时从存储加载
func (s *UsageService) ensureLoadedUnlocked() {
	if s.cachedLog == nil {
		var log []models.UsageRecord
		if err := s.store.LoadEntry(UsageLogEntry, &log); err != nil && !apperrors.IsNotFoundError(err) {
			s.logger.Warnf("用量日志读取失败: %v", err)
		}
		if log == nil {
			log = []models.UsageRecord{}
		}
		s.cachedLog = log
	}

	if s.cachedCounters == nil {
		var counters models.DailyCounters
		if err := s.store.LoadEntry(DailyCountersEntry, &counters); err != nil && !apperrors.IsNotFoundError(err) {
			s.logger.Warnf("当日计数器读取失败: %v", err)
		}
		s.cachedCounters = &counters
	}
}

// rolloverCountersUnlocked 存储的日期标记不再是今天时，两个计数器都归零
func (s *UsageService) rolloverCountersUnlocked(now time.Time) {
	today := now.Format("2006-01-02")
	if s.cachedCounters.Date != today {
		s.cachedCounters.Date = today
		s.cachedCounters.Requests = 0
		s.cachedCounters.Tokens = 0
		s.isDirty = true
	}
}

// pruneWindow 只保留尾随30天窗口内的记录
func pruneWindow(log []models.UsageRecord, now time.Time) []models.UsageRecord {
	cutoff := now.AddDate(0, 0, -UsageWindowDays)

	pruned := log[:0]
	for _, record := range log {
		if record.Timestamp.After(cutoff) {
			pruned = append(pruned, record)
		}
	}
	return pruned
}

// saveUnlocked 立即落盘
func (s *UsageService) saveUnlocked() {
	if !s.isDirty {
		return
	}

	if err := s.store.SaveEntry(UsageLogEntry, s.cachedLog); err != nil {
		s.logger.Warnf("用量日志保存失败: %v", err)
		return
	}
	if err := s.store.SaveEntry(DailyCountersEntry, s.cachedCounters); err != nil {
		s.logger.Warnf("当日计数器保存失败: %v", err)
		return
	}

	s.isDirty = false
	s.lastSaveTime = s.now()
}

// 定时保存机制
func (s *UsageService) startPeriodicSave() {
	go func() {
		ticker := time.NewTicker(s.saveInterval)
		defer ticker.Stop()

		for range ticker.C {
			s.mutex.Lock()
			s.saveUnlocked()
			s.mutex.Unlock()
		}
	}()
}

// Close 关闭前保存任何未保存的数据
func (s *UsageService) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.saveUnlocked()
	return nil
}
