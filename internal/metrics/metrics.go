// 包 metrics 收集运行指标，并以 Prometheus textfile 格式落盘
// （供 node_exporter 的 textfile collector 读取；机器人是一次性任务，不常驻 HTTP 端口）。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder 为流水线使用的指标接口。
type Recorder interface {
	RecordPage(status string, elapsed time.Duration)
	RecordThreads(n int)
	RecordFetch(outcome string)
	RecordSave()
}

// 页面抓取结果标签。
const (
	FetchFound   = "found"
	FetchMissing = "missing"
	FetchError   = "error"
)

// Collector 为 Recorder 的 Prometheus 实现。
type Collector struct {
	pages        *prometheus.CounterVec
	threads      prometheus.Counter
	fetches      *prometheus.CounterVec
	saves        prometheus.Counter
	pageDuration prometheus.Histogram
	lastRun      prometheus.Gauge
}

// NewCollector 创建 Collector 并注册到 reg。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hbcai_pages_total",
			Help: "按结果统计的已处理来源页数",
		}, []string{"status"}),
		threads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hbcai_threads_total",
			Help: "写入索引的讨论串总数",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hbcai_page_fetches_total",
			Help: "按结果统计的页面抓取次数",
		}, []string{"outcome"}),
		saves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hbcai_saves_total",
			Help: "实际保存的索引页数",
		}),
		pageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hbcai_page_duration_seconds",
			Help:    "单个来源页的处理耗时（秒）",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hbcai_last_run_timestamp_seconds",
			Help: "最近一次运行结束的 Unix 时间",
		}),
	}
	reg.MustRegister(c.pages, c.threads, c.fetches, c.saves, c.pageDuration, c.lastRun)
	return c
}

func (c *Collector) RecordPage(status string, elapsed time.Duration) {
	c.pages.WithLabelValues(status).Inc()
	c.pageDuration.Observe(elapsed.Seconds())
}

func (c *Collector) RecordThreads(n int) { c.threads.Add(float64(n)) }

func (c *Collector) RecordFetch(outcome string) { c.fetches.WithLabelValues(outcome).Inc() }

func (c *Collector) RecordSave() { c.saves.Inc() }

// MarkRun 记录运行结束时间。
func (c *Collector) MarkRun(at time.Time) { c.lastRun.Set(float64(at.Unix())) }

// WriteTextfile 将 g 中的全部指标原子写入 path。
func WriteTextfile(g prometheus.Gatherer, path string) error {
	return prometheus.WriteToTextfile(path, g)
}

// Nop 丢弃所有指标。
type Nop struct{}

func (Nop) RecordPage(string, time.Duration) {}
func (Nop) RecordThreads(int)                {}
func (Nop) RecordFetch(string)               {}
func (Nop) RecordSave()                      {}
