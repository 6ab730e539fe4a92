// 包 mask 描述归档页命名规则（掩码）并负责按规则逐页展开：
// - Numerical：Talk:Foo/Archive <#>，从 1 开始递增
// - SinglePage：固定标题
// - Monthly/Yearly：从 first_archive 推出起点，按月/年递增
// 序列中下一页不存在即视为结束，并非错误。
package mask

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"hbcai/internal/logx"
	"hbcai/internal/model"
	"hbcai/internal/parsoid"
	"hbcai/internal/thread"
	"hbcai/internal/wiki"
)

// 掩码占位符。
const (
	PlaceholderNumber = "<#>"
	PlaceholderMonth  = "<month>"
	PlaceholderYear   = "<year>"
)

// Kind 为掩码种类。
type Kind int

const (
	Numerical Kind = iota
	SinglePage
	Monthly
	Yearly
)

func (k Kind) String() string {
	switch k {
	case Numerical:
		return "numerical"
	case SinglePage:
		return "single"
	case Monthly:
		return "monthly"
	case Yearly:
		return "yearly"
	default:
		return "unknown"
	}
}

// Mask 为不可变的掩码值。按 Kind 使用对应字段：
// Numerical 用 Pattern+LeadingZeros，SinglePage 用 Pattern（即标题），
// Monthly/Yearly 用 Pattern+FirstArchive。
type Mask struct {
	Kind         Kind
	Pattern      string
	LeadingZeros int
	FirstArchive string
}

func NewNumerical(pattern string, leadingZeros int) Mask {
	return Mask{Kind: Numerical, Pattern: pattern, LeadingZeros: leadingZeros}
}

func NewSinglePage(title string) Mask {
	return Mask{Kind: SinglePage, Pattern: title}
}

func NewMonthly(pattern, firstArchive string) Mask {
	return Mask{Kind: Monthly, Pattern: pattern, FirstArchive: firstArchive}
}

func NewYearly(pattern, firstArchive string) Mask {
	return Mask{Kind: Yearly, Pattern: pattern, FirstArchive: firstArchive}
}

// String 为报告中展示的形式：掩码原样（单页为标题）。
func (m Mask) String() string { return m.Pattern }

// Fetcher 为展开所需的页面能力；页面不存在时返回包装了 wiki.ErrPageNotFound 的错误。
type Fetcher interface {
	Document(ctx context.Context, title string) (*parsoid.Document, error)
}

// Expand 按掩码种类展开为讨论串序列（保持页面顺序）。
func Expand(ctx context.Context, f Fetcher, m Mask) ([]thread.Thread, error) {
	logx.Debugf("展开掩码（%s）：%s", m.Kind, m.Pattern)
	switch m.Kind {
	case Numerical:
		return expandNumerical(ctx, f, m)
	case SinglePage:
		return expandSingle(ctx, f, m.Pattern)
	case Monthly:
		return expandMonthly(ctx, f, m)
	case Yearly:
		return expandYearly(ctx, f, m)
	default:
		return nil, fmt.Errorf("unknown mask kind %d", m.Kind)
	}
}

// fetch 将“页面不存在”与其他错误区分开：found=false 且 err=nil 表示序列结束。
func fetch(ctx context.Context, f Fetcher, title string) (doc *parsoid.Document, found bool, err error) {
	doc, err = f.Document(ctx, title)
	if errors.Is(err, wiki.ErrPageNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func expandSingle(ctx context.Context, f Fetcher, title string) ([]thread.Thread, error) {
	doc, found, err := fetch(ctx, f, title)
	if err != nil || !found {
		return nil, err
	}
	return thread.Extract(doc), nil
}

// walk 依次抓取 next() 给出的标题，直到某页不存在。
func walk(ctx context.Context, f Fetcher, next func() string) ([]thread.Thread, error) {
	var out []thread.Thread
	for {
		title := next()
		doc, found, err := fetch(ctx, f, title)
		if err != nil {
			return nil, err
		}
		if !found {
			logx.Debugf("%s 不存在，展开结束", title)
			return out, nil
		}
		out = append(out, thread.Extract(doc)...)
	}
}

func expandNumerical(ctx context.Context, f Fetcher, m Mask) ([]thread.Thread, error) {
	count := 0
	return walk(ctx, f, func() string {
		count++
		return strings.ReplaceAll(m.Pattern, PlaceholderNumber, thread.PadNumber(count, m.LeadingZeros))
	})
}

func expandMonthly(ctx context.Context, f Fetcher, m Mask) ([]thread.Thread, error) {
	month, year, err := Seed(m)
	if err != nil {
		return nil, err
	}
	return walk(ctx, f, func() string {
		title := Substitute(m.Pattern, month, year)
		month++
		if month > time.December {
			month = time.January
			year++
		}
		return title
	})
}

func expandYearly(ctx context.Context, f Fetcher, m Mask) ([]thread.Thread, error) {
	_, year, err := Seed(m)
	if err != nil {
		return nil, err
	}
	return walk(ctx, f, func() string {
		title := Substitute(m.Pattern, 0, year)
		year++
		return title
	})
}

// Substitute 将月/年代入掩码；month 为 0 时不替换 <month>。
func Substitute(pattern string, month time.Month, year int) string {
	out := strings.ReplaceAll(pattern, PlaceholderYear, strconv.Itoa(year))
	if month != 0 {
		out = strings.ReplaceAll(out, PlaceholderMonth, month.String())
	}
	return out
}

// Matcher 将掩码转换为匹配完整标题的正则：字面部分转义，
// 首个 <month>/<year> 为命名分组，其后的重复占位符为非捕获分组。
func Matcher(pattern string) (*regexp.Regexp, error) {
	expr := regexp.QuoteMeta(pattern)
	expr = strings.Replace(expr, PlaceholderMonth, "(?P<month>"+monthAlternation+")", 1)
	expr = strings.ReplaceAll(expr, PlaceholderMonth, "(?:"+monthAlternation+")")
	expr = strings.Replace(expr, PlaceholderYear, `(?P<year>\d{4})`, 1)
	expr = strings.ReplaceAll(expr, PlaceholderYear, `(?:\d{4})`)
	return regexp.Compile("^" + expr + "$")
}

var monthAlternation = strings.Trim(thread.MonthPattern, "()")

// Seed 从 FirstArchive 中解析起始月份（Yearly 时为 0）与年份。
// 不匹配时返回配置错误，此时不会发生任何抓取。
func Seed(m Mask) (time.Month, int, error) {
	re, err := Matcher(m.Pattern)
	if err != nil {
		return 0, 0, &model.ConfigError{Reason: fmt.Sprintf("invalid mask %s", m.Pattern), Err: err}
	}
	sub := re.FindStringSubmatch(strings.TrimSpace(m.FirstArchive))
	if sub == nil {
		return 0, 0, model.NewConfigError("", "first_archive of %s does not match mask %s", m.FirstArchive, m.Pattern)
	}
	var month time.Month
	year := 0
	if i := re.SubexpIndex("month"); i > 0 && m.Kind == Monthly {
		month, _ = thread.ParseMonth(sub[i])
	}
	if i := re.SubexpIndex("year"); i > 0 {
		year, _ = strconv.Atoi(sub[i])
	}
	if m.Kind == Monthly && month == 0 {
		return 0, 0, model.NewConfigError("", "mask %s has no <month> placeholder", m.Pattern)
	}
	return month, year, nil
}
