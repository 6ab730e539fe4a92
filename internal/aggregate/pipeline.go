package aggregate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"hbcai/internal/instructions"
	"hbcai/internal/logx"
	"hbcai/internal/mask"
	"hbcai/internal/model"
	"hbcai/internal/parsoid"
	"hbcai/internal/report"
	"hbcai/internal/thread"
	"hbcai/internal/wiki"
)

// ProcessPage 执行单个来源页的完整流水线：解析配置→检查目标→展开掩码→渲染→保存。
// 任何错误都记录在返回结果中（Status=failed），不会影响其他页面。
func (r *Runner) ProcessPage(ctx context.Context, origin string, def *report.Template) model.PageResult {
	start := time.Now()
	res := model.PageResult{Origin: origin}
	if err := r.process(ctx, origin, def, &res); err != nil {
		res.Status = model.StatusFailed
		res.Error = label(origin, err)
		logx.Page(origin).Warn("处理失败", "error", err)
	}
	res.UpdatedAt = time.Now().UTC()
	r.metrics.RecordPage(string(res.Status), time.Since(start))
	return res
}

// label 为错误加上 [[来源页]] 前缀；已带前缀的配置错误保持原样。
func label(origin string, err error) string {
	msg := err.Error()
	if strings.HasPrefix(msg, "[[") {
		return msg
	}
	return fmt.Sprintf("[[%s]]: %s", origin, msg)
}

func (r *Runner) process(ctx context.Context, origin string, def *report.Template, res *model.PageResult) error {
	log := logx.Page(origin)
	doc, err := r.pages.Document(ctx, origin)
	if err != nil {
		return fmt.Errorf("fetch origin: %w", err)
	}
	ins, err := instructions.Parse(doc, instructions.Options{
		OptInTemplate:   r.profile.OptInTemplate,
		DefaultTemplate: r.profile.DefaultTemplate,
	})
	if err != nil {
		return err
	}
	res.Target = ins.Target
	log.Debug("已解析配置", "target", ins.Target, "masks", len(ins.Masks), "template", ins.Template)

	target, err := r.checkTarget(ctx, ins.Target)
	if err != nil {
		return err
	}
	res.Target = target
	r.noticeRecentEdit(ctx, target)

	threads, err := r.expand(ctx, ins.Masks)
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		return model.ErrNoThreads
	}
	res.Threads = len(threads)
	r.metrics.RecordThreads(len(threads))

	tpl, fallback := r.template(ctx, ins, def)
	res.TemplateFallback = fallback
	text := tpl.Render(threads, ins)

	old, err := r.pages.Wikitext(ctx, target)
	if err != nil {
		return fmt.Errorf("read target [[%s]]: %w", target, err)
	}
	if strings.TrimSpace(old) == strings.TrimSpace(text) {
		res.Status = model.StatusUnchanged
		logx.Infof("[[%s]] 无需更新", target)
		return nil
	}
	if r.cfg.DryRun {
		res.Status = model.StatusDryRun
		logx.Infof("演练模式：[[%s]] 将被更新（%d 个讨论串）", target, len(threads))
		return nil
	}
	if err := r.pages.Save(ctx, target, text, r.profile.Summary); err != nil {
		return fmt.Errorf("save [[%s]]: %w", target, err)
	}
	r.metrics.RecordSave()
	res.Status = model.StatusSaved
	logx.Infof("已保存 [[%s]]", target)
	return nil
}

// checkTarget 确认目标页存在（重定向时跟随一次），且带有允许机器人覆盖的注释标记。
// 返回最终要写入的标题。
func (r *Runner) checkTarget(ctx context.Context, title string) (string, error) {
	doc, err := r.targetDocument(ctx, title)
	if err != nil {
		return "", err
	}
	if doc.Redirect != "" {
		logx.Debugf("[[%s]] 重定向至 [[%s]]", title, doc.Redirect)
		title = doc.Redirect
		if doc, err = r.targetDocument(ctx, title); err != nil {
			return "", err
		}
	}
	if !doc.HasComment(r.profile.SafeMarkers...) {
		return "", fmt.Errorf("target ([[%s]]) %w", title, model.ErrMissingSafeMarker)
	}
	return title, nil
}

func (r *Runner) targetDocument(ctx context.Context, title string) (*parsoid.Document, error) {
	doc, err := r.pages.Document(ctx, title)
	if errors.Is(err, wiki.ErrPageNotFound) {
		return nil, fmt.Errorf("target [[%s]] %w", title, model.ErrTargetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch target [[%s]]: %w", title, err)
	}
	return doc, nil
}

// noticeRecentEdit 目标页近期被编辑过时输出提示，仅供参考，不阻止更新。
func (r *Runner) noticeRecentEdit(ctx context.Context, target string) {
	window := time.Duration(r.cfg.RecentEditHours) * time.Hour
	if r.history == nil || window <= 0 {
		return
	}
	e, err := r.history.LastEdit(ctx, target)
	if err != nil {
		logx.Debugf("读取 [[%s]] 历史失败：%v", target, err)
		return
	}
	if since := e.Since(r.now()); since < window {
		logx.Infof("[[%s]] 在 %s 前由 %s 编辑过（%s）", target, since.Round(time.Minute), e.Author, e.Comment)
	}
}

// expand 并发展开各掩码（单页内限流），按声明顺序合并后稳定排序。
func (r *Runner) expand(ctx context.Context, masks []mask.Mask) ([]thread.Thread, error) {
	parts := make([][]thread.Thread, len(masks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.cfg.Concurrency.Masks))
	for i, m := range masks {
		g.Go(func() error {
			threads, err := mask.Expand(gctx, r.pages, m)
			if err != nil {
				return fmt.Errorf("expand %s: %w", m, err)
			}
			parts[i] = threads
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	threads := slices.Concat(parts...)
	SortThreads(threads)
	return threads, nil
}

// SortThreads 按首条时间升序稳定排序，相同时按末条时间。
func SortThreads(threads []thread.Thread) {
	slices.SortStableFunc(threads, func(a, b thread.Thread) int {
		if c := a.First.Compare(b.First); c != 0 {
			return c
		}
		return a.Last.Compare(b.Last)
	})
}

// template 返回本页使用的模板；自定义模板读取失败时回退到默认模板并给出警告。
func (r *Runner) template(ctx context.Context, ins instructions.Instructions, def *report.Template) (*report.Template, bool) {
	if ins.UsesDefaultTemplate(r.profile.DefaultTemplate) {
		return def, false
	}
	src, err := r.pages.Wikitext(ctx, ins.Template)
	if err != nil {
		logx.Warnf("[[%s]]: 模板 [[%s]] 读取失败，改用默认模板：%v", ins.Origin, ins.Template, err)
		return def, true
	}
	return report.Compile(src), false
}
