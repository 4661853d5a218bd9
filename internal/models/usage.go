// internal/models/usage.go
package models

import (
	"time"
)

// UsageRecord 一次计费API调用的不可变日志条目
// 只追加和按时间裁剪，不更新不删除
type UsageRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	ModelID      string    `json:"model_id"`
	Provider     string    `json:"provider"`
	Kind         string    `json:"kind"` // text / image / speech
	PromptTokens int       `json:"prompt_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
	Characters   int       `json:"characters,omitempty"`
	Units        int       `json:"units,omitempty"`
	CostUSD      float64   `json:"cost_usd"`
}

// DailyCounters 当日请求数和token数，日期变化时归零
type DailyCounters struct {
	Date     string `json:"date"` // 2006-01-02
	Requests int    `json:"requests"`
	Tokens   int    `json:"tokens"`
}

// UsageSummary 滚动窗口汇总，用于展示
type UsageSummary struct {
	TodayRequests int     `json:"today_requests"`
	TodayTokens   int     `json:"today_tokens"`
	WindowDays    int     `json:"window_days"`
	WindowCalls   int     `json:"window_calls"`
	WindowTokens  int     `json:"window_tokens"`
	WindowCostUSD float64 `json:"window_cost_usd"`
}
