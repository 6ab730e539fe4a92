// 命令行入口：
// - 解析 settings.yaml / rules.yaml，初始化日志、HTTP 客户端与维基会话
// - run：处理全部（或 --page 指定的）来源页并更新索引
// - inspect：只读地打印某页的解析结果与讨论串，用于排查配置
// - history：查看最近几轮的运行记录与失败页
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"hbcai/internal/aggregate"
	"hbcai/internal/config"
	"hbcai/internal/export"
	"hbcai/internal/fetch"
	"hbcai/internal/history"
	"hbcai/internal/instructions"
	"hbcai/internal/logx"
	"hbcai/internal/mask"
	"hbcai/internal/metrics"
	"hbcai/internal/model"
	"hbcai/internal/rules"
	"hbcai/internal/store"
	"hbcai/internal/thread"
	"hbcai/internal/wiki"
)

var (
	configPath string
	rulesPath  string

	runPages   []string
	runDryRun  bool
	runReset   bool
	exportPath string

	inspectPage string
	historyN    int
)

var (
	rootCmd = &cobra.Command{
		Use:           "hbcai",
		Short:         "Archive index bot for wiki talk pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Update archive indexes for every opted-in page",
		RunE:  runIndex,
	}
	inspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Print parsed instructions and threads of one page without saving",
		RunE:  runInspect,
	}
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recent runs and failed pages from the result database",
		RunE:  runHistory,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "settings.yaml", "path to settings.yaml")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "rules.yaml", "path to rules.yaml (optional)")

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSliceVar(&runPages, "page", nil, "process only these origin pages (repeatable)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "render and compare but never save")
	runCmd.Flags().BoolVar(&runReset, "reset", false, "clear stored results before running")
	runCmd.Flags().StringVar(&exportPath, "export", "", "write a JSON report to this path (overrides EXPORT)")

	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectPage, "page", "", "origin page to inspect")
	_ = inspectCmd.MarkFlagRequired("page")

	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyN, "limit", 10, "number of runs to show")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "hbcai:", err)
		os.Exit(1)
	}
}

// env 为各子命令共用的运行环境。
type env struct {
	cfg     *config.Config
	profile rules.Profile
	http    *fetch.Client
	wiki    *wiki.Client
}

// setup 加载配置与规则，初始化日志、HTTP 客户端与维基客户端。
func setup() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logx.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogLocale, cfg.LogColor)

	var rl *rules.Rules
	if rulesPath != "" {
		if r, err := rules.Load(rulesPath); err == nil {
			rl = r
		} else if !errors.Is(err, fs.ErrNotExist) {
			logx.Warnf("加载 rules 失败，使用内置配置：%v", err)
		}
	}
	profile, ok := rl.GetProfile(cfg.Site)
	if !ok && rl != nil {
		logx.Warnf("rules 中没有站点 %s，使用默认配置档", cfg.Site)
	}

	cl, err := fetch.New(fetch.Options{
		ProxyHTTP:     cfg.Proxy.HTTP,
		ProxyHTTPS:    cfg.Proxy.HTTPS,
		Timeout:       30 * time.Second,
		Retry:         cfg.Concurrency.Retry,
		RatePerSecond: cfg.Concurrency.Rate,
		Burst:         cfg.Concurrency.Burst,
		UserAgent:     cfg.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}
	return &env{cfg: cfg, profile: profile, http: cl, wiki: wiki.New(cl, cfg.SiteURL)}, nil
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := setup()
	if err != nil {
		return err
	}
	cfg := e.cfg
	if runDryRun {
		cfg.DryRun = true
	}
	if user, pass, ok := config.Credentials(); ok {
		if err := e.wiki.Login(ctx, user, pass); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	} else if !cfg.DryRun {
		logx.Warnf("未设置 %s/%s，以匿名身份运行，保存可能失败", config.EnvUsername, config.EnvPassword)
	}

	// 数据存储：极简模式不打开数据库
	var st *store.SQLite
	if !cfg.SimpleMode {
		st, err = store.OpenSQLite(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer st.Close()
		if runReset {
			if err := st.Reset(ctx); err != nil {
				logx.Warnf("清理数据库失败：%v", err)
			} else {
				logx.Infof("已清理数据库表（page_results/runs）")
			}
		}
	}

	runner := aggregate.New(cfg, e.profile, e.wiki, st).
		WithLister(e.wiki).
		WithHistory(history.NewReader(e.http, e.wiki.HistoryFeedURL))
	var (
		reg *prometheus.Registry
		col *metrics.Collector
	)
	if cfg.MetricsFile != "" {
		reg = prometheus.NewRegistry()
		col = metrics.NewCollector(reg)
		runner.WithMetrics(col)
	}

	logx.Infof("开始运行：站点=%s 极简模式=%v", cfg.Site, cfg.SimpleMode)
	run, results, err := runner.Run(ctx, runPages)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	if col != nil {
		col.MarkRun(run.FinishedAt)
		if err := metrics.WriteTextfile(reg, cfg.MetricsFile); err != nil {
			logx.Warnf("写入指标文件失败：%v", err)
		}
	}
	path := cfg.Export
	if exportPath != "" {
		path = exportPath
	}
	if path != "" {
		if st != nil {
			err = export.ToJSON(ctx, st, run.ID, path)
		} else {
			err = export.ToJSONData(run.ID, results, path)
		}
		if err != nil {
			return fmt.Errorf("export json: %w", err)
		}
		logx.Infof("已导出 %s", path)
	}
	return nil
}

func runInspect(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := setup()
	if err != nil {
		return err
	}
	doc, err := e.wiki.Document(ctx, inspectPage)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", inspectPage, err)
	}
	ins, err := instructions.Parse(doc, instructions.Options{
		OptInTemplate:   e.profile.OptInTemplate,
		DefaultTemplate: e.profile.DefaultTemplate,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "origin:   %s\ntarget:   %s\ntemplate: %s\n", ins.Origin, ins.Target, ins.Template)
	var all []thread.Thread
	for _, m := range ins.Masks {
		threads, err := mask.Expand(ctx, e.wiki, m)
		if err != nil {
			return fmt.Errorf("expand %s: %w", m, err)
		}
		fmt.Fprintf(out, "mask (%s): %s -> %d threads\n", m.Kind, m, len(threads))
		all = append(all, threads...)
	}
	aggregate.SortThreads(all)
	for _, th := range all {
		fmt.Fprintf(out, "  %s | %d | %s .. %s | %s\n", th.Link, th.Replies, th.FirstText(), th.LastText(), th.Duration())
	}
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()
	runs, err := st.ListRuns(ctx, historyN)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range runs {
		s := r.Stats
		fmt.Fprintf(out, "%s  %s  pages=%d saved=%d unchanged=%d failed=%d threads=%d dry-run=%v\n",
			r.StartedAt.Format(time.RFC3339), r.ID, s.PagesTotal, s.PagesSaved, s.PagesUnchanged, s.PagesFailed, s.ThreadsTotal, r.DryRun)
	}
	results, err := st.ListResults(ctx, "")
	if err != nil {
		return err
	}
	var failed []model.PageResult
	for _, r := range results {
		if r.Status == model.StatusFailed {
			failed = append(failed, r)
		}
	}
	if log := export.FailureLog(failed); log != "" {
		fmt.Fprintf(out, "\nfailing pages:\n%s\n", log)
	}
	return nil
}
