// 包 aggregate 负责主流程编排：
// - 读取并编译站点默认模板（整轮共享、只读）
// - 列出启用了索引的来源页，在有界并发池中逐页处理
// - 汇总失败日志、落库与过期清理
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"hbcai/internal/config"
	"hbcai/internal/export"
	"hbcai/internal/history"
	"hbcai/internal/logx"
	"hbcai/internal/metrics"
	"hbcai/internal/model"
	"hbcai/internal/parsoid"
	"hbcai/internal/report"
	"hbcai/internal/rules"
	"hbcai/internal/store"
	"hbcai/internal/wiki"
)

// Lister 列出嵌入了指定模板的页面。
type Lister interface {
	EmbeddedIn(ctx context.Context, template string) ([]string, error)
}

// ListerFunc 将函数适配为 Lister。
type ListerFunc func(ctx context.Context, template string) ([]string, error)

func (f ListerFunc) EmbeddedIn(ctx context.Context, template string) ([]string, error) {
	return f(ctx, template)
}

// HistoryReader 返回页面最近一次修订。
type HistoryReader interface {
	LastEdit(ctx context.Context, title string) (history.Edit, error)
}

// Runner 聚合执行器，持有配置/站点约定/页面存储/结果存储。
type Runner struct {
	cfg     *config.Config
	profile rules.Profile
	pages   wiki.PageStore
	store   *store.SQLite
	lister  Lister
	history HistoryReader
	metrics metrics.Recorder
	now     func() time.Time
	// 简洁模式：仅收集内存数据，不落库
	buf *SimpleBuffer
}

// New 创建 Runner。st 为 nil 或配置为简洁模式时结果只保存在内存中。
func New(cfg *config.Config, profile rules.Profile, pages wiki.PageStore, st *store.SQLite) *Runner {
	r := &Runner{cfg: cfg, profile: profile, store: st, metrics: metrics.Nop{}, now: time.Now}
	r.pages = countingStore{PageStore: pages, r: r}
	if cfg.SimpleMode || st == nil {
		r.buf = NewSimpleBuffer()
	}
	return r
}

// WithLister 设置来源页列表的获取方式（通常为 wiki.Client）。
func (r *Runner) WithLister(l Lister) *Runner { r.lister = l; return r }

// WithHistory 启用目标页近期编辑提示。
func (r *Runner) WithHistory(h HistoryReader) *Runner { r.history = h; return r }

// WithMetrics 设置指标收集器。
func (r *Runner) WithMetrics(m metrics.Recorder) *Runner {
	if m != nil {
		r.metrics = m
	}
	return r
}

// DefaultTemplate 读取并编译站点默认模板。
func (r *Runner) DefaultTemplate(ctx context.Context) (*report.Template, error) {
	src, err := r.pages.Wikitext(ctx, r.profile.DefaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("load default template [[%s]]: %w", r.profile.DefaultTemplate, err)
	}
	return report.Compile(src), nil
}

// Origins 返回待处理的来源页：显式给出时按给定顺序，否则列出嵌入了配置模板的页面。
// 结果去重。
func (r *Runner) Origins(ctx context.Context, explicit []string) ([]string, error) {
	titles := explicit
	if len(titles) == 0 {
		if r.lister == nil {
			return nil, errors.New("no pages given and no page lister configured")
		}
		var err error
		titles, err = r.lister.EmbeddedIn(ctx, r.profile.OptInTemplate)
		if err != nil {
			return nil, fmt.Errorf("list [[%s]] transclusions: %w", r.profile.OptInTemplate, err)
		}
	}
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if _, ok := seen[t]; ok || t == "" {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// Run 执行一轮：编译默认模板→列出来源页→并发处理→记录结果→写失败日志→清理过期。
// 单页失败不会中断整轮；只有默认模板或来源页列表无法获取时返回错误。
func (r *Runner) Run(ctx context.Context, pages []string) (model.Run, []model.PageResult, error) {
	run := model.Run{ID: store.NewRunID(), Site: r.cfg.Site, DryRun: r.cfg.DryRun, StartedAt: r.now().UTC()}
	def, err := r.DefaultTemplate(ctx)
	if err != nil {
		return run, nil, err
	}
	origins, err := r.Origins(ctx, pages)
	if err != nil {
		return run, nil, err
	}
	logx.Infof("开始处理：来源页=%d 并发=%d 演练=%v", len(origins), r.cfg.Concurrency.Pages, r.cfg.DryRun)

	results := make([]model.PageResult, len(origins))
	var g errgroup.Group
	g.SetLimit(max(1, r.cfg.Concurrency.Pages))
	for i, origin := range origins {
		g.Go(func() error {
			res := r.ProcessPage(ctx, origin, def)
			res.RunID = run.ID
			results[i] = res
			r.record(ctx, res)
			return nil
		})
	}
	_ = g.Wait()

	run.FinishedAt = r.now().UTC()
	run.Stats = model.Summarize(results)
	logx.Infof("处理完成：保存=%d 未变=%d 失败=%d 讨论串=%d",
		run.Stats.PagesSaved, run.Stats.PagesUnchanged, run.Stats.PagesFailed, run.Stats.ThreadsTotal)
	r.writeLog(ctx, results)

	if r.buf == nil {
		if err := r.store.RecordRun(ctx, run); err != nil {
			logx.Warnf("写入运行记录失败：%v", err)
		}
		if err := r.store.CleanOld(ctx, r.cfg.HistoryKeepDays); err != nil {
			logx.Warnf("清理过期记录失败：%v", err)
		}
	}
	return run, results, nil
}

func (r *Runner) record(ctx context.Context, res model.PageResult) {
	if r.buf != nil {
		r.buf.Add(res)
		return
	}
	if err := r.store.UpsertResult(ctx, res); err != nil {
		logx.Warnf("写入结果失败：%v", err)
	}
}

// writeLog 打印失败列表，并在非演练模式下写入站点的日志页。
func (r *Runner) writeLog(ctx context.Context, results []model.PageResult) {
	text := export.FailureLog(results)
	if text != "" {
		logx.Warnf("失败列表：\n%s", text)
	}
	if r.profile.LogPage == "" || r.cfg.DryRun {
		return
	}
	if text == "" {
		text = "No errors."
	}
	if err := r.pages.Save(ctx, r.profile.LogPage, text, "Bot: Updating log"); err != nil {
		logx.Warnf("写入日志页 [[%s]] 失败：%v", r.profile.LogPage, err)
	}
}

// BufferData 返回极简模式下收集的内存结果。
func (r *Runner) BufferData() []model.PageResult {
	if r == nil || r.buf == nil {
		return nil
	}
	return r.buf.Snapshot()
}

// countingStore 在页面存储外记录抓取指标。
type countingStore struct {
	wiki.PageStore
	r *Runner
}

func (c countingStore) Document(ctx context.Context, title string) (doc *parsoid.Document, err error) {
	doc, err = c.PageStore.Document(ctx, title)
	switch {
	case err == nil:
		c.r.metrics.RecordFetch(metrics.FetchFound)
	case errors.Is(err, wiki.ErrPageNotFound):
		c.r.metrics.RecordFetch(metrics.FetchMissing)
	default:
		c.r.metrics.RecordFetch(metrics.FetchError)
	}
	return doc, err
}
