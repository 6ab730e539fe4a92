// 包 model 定义跨包共享的数据模型（单页结果/统计/导出结构）与错误类型。
package model

import "time"

// PageStatus 为单个来源页的处理结论。
type PageStatus string

const (
	StatusSaved     PageStatus = "saved"
	StatusUnchanged PageStatus = "unchanged"
	StatusDryRun    PageStatus = "dry-run"
	StatusFailed    PageStatus = "failed"
)

// PageResult 表示一个来源页（声明了配置的讨论页）一次处理的结果。
type PageResult struct {
	RunID            string     `json:"run_id"`
	Origin           string     `json:"origin"`
	Target           string     `json:"target"`
	Threads          int        `json:"threads"`
	Status           PageStatus `json:"status"`
	Error            string     `json:"error,omitempty"`
	TemplateFallback bool       `json:"template_fallback,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Stats 为一轮运行的汇总。
type Stats struct {
	PagesTotal     int       `json:"pages_total"`
	PagesSaved     int       `json:"pages_saved"`
	PagesUnchanged int       `json:"pages_unchanged"`
	PagesFailed    int       `json:"pages_failed"`
	ThreadsTotal   int       `json:"threads_total"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Run 为一轮运行的记录。
type Run struct {
	ID         string    `json:"id"`
	Site       string    `json:"site"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Stats      Stats     `json:"stats"`
}

// Export 为 JSON 报告的顶层结构。
type Export struct {
	RunID string       `json:"run_id"`
	Stats Stats        `json:"stats"`
	Pages []PageResult `json:"pages"`
}

// Summarize 根据单页结果计算汇总。
func Summarize(results []PageResult) Stats {
	st := Stats{PagesTotal: len(results), UpdatedAt: time.Now()}
	for _, r := range results {
		switch r.Status {
		case StatusSaved, StatusDryRun:
			st.PagesSaved++
		case StatusUnchanged:
			st.PagesUnchanged++
		case StatusFailed:
			st.PagesFailed++
		}
		st.ThreadsTotal += r.Threads
	}
	return st
}
