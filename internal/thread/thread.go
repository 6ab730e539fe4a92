// 包 thread 从解析后的讨论页中抽取讨论串（章节），并提供时间戳/时长格式化。
package thread

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"hbcai/internal/logx"
	"hbcai/internal/parsoid"
)

// MonthPattern 为十二个英文月份名的正则分组。
const MonthPattern = "(January|February|March|April|May|June|July|August|September|October|November|December)"

// 签名时间戳：HH:MM(:SS)?, D Month YYYY；秒数被忽略，精度到分钟。
var timestampRE = regexp.MustCompile(`(\d{2}):(\d{2})(?::\d{2})?, (\d{1,2}) ` + MonthPattern + ` (\d{4})`)

// Thread 为一个讨论串的元数据，抽取后不再修改。
type Thread struct {
	Topic   string
	Replies int
	Link    string
	First   time.Time
	Last    time.Time
}

// FirstText 返回首条时间的维基格式。
func (t Thread) FirstText() string { return FormatTimestamp(t.First) }

// LastText 返回末条时间的维基格式。
func (t Thread) LastText() string { return FormatTimestamp(t.Last) }

func (t Thread) FirstEpoch() int64 { return t.First.Unix() }
func (t Thread) LastEpoch() int64  { return t.Last.Unix() }

// DurationSecs 为末条与首条之间的秒数。
func (t Thread) DurationSecs() int64 { return t.LastEpoch() - t.FirstEpoch() }

// Duration 返回可读时长，如 "1 day, 1:01:01"。
func (t Thread) Duration() string { return FormatDuration(t.DurationSecs()) }

// FormatTimestamp 输出 "HH:MM, D Month YYYY"（UTC）。
func FormatTimestamp(ts time.Time) string {
	ts = ts.UTC()
	return fmt.Sprintf("%s:%s, %d %s %d",
		PadNumber(ts.Hour(), 1), PadNumber(ts.Minute(), 1), ts.Day(), ts.Month(), ts.Year())
}

// FormatDuration 将秒数格式化为 "D day(s), H:MM:SS"，不足一天时仅 "H:MM:SS"。
func FormatDuration(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	days := secs / 86400
	rest := secs % 86400
	clock := fmt.Sprintf("%d:%s:%s", rest/3600, PadNumber(int(rest%3600/60), 1), PadNumber(int(rest%60), 1))
	switch {
	case days == 1:
		return "1 day, " + clock
	case days > 1:
		return fmt.Sprintf("%d days, %s", days, clock)
	default:
		return clock
	}
}

// PadNumber 将 n 左补零到至少 leading+1 位，超出时不截断。
func PadNumber(n, leading int) string {
	s := strconv.Itoa(n)
	if pad := leading + 1 - len(s); pad > 0 {
		return strings.Repeat("0", pad) + s
	}
	return s
}

// ParseMonth 将英文月份全名解析为 time.Month。
func ParseMonth(name string) (time.Month, bool) {
	for m := time.January; m <= time.December; m++ {
		if m.String() == name {
			return m, true
		}
	}
	return 0, false
}

// Extract 抽取文档中所有二级章节的讨论串。
// 单个时间戳非法（如 2 月 30 日、25 点）只跳过该时间戳，不影响其余部分。
func Extract(doc *parsoid.Document) []Thread {
	var out []Thread
	for _, sec := range doc.Sections {
		if sec.Level != 2 {
			continue
		}
		stamps := scanTimestamps(doc.Title, sec.Text)
		if len(stamps) == 0 {
			continue
		}
		slices.SortFunc(stamps, func(a, b time.Time) int { return a.Compare(b) })
		out = append(out, Thread{
			Topic:   sec.Title,
			Replies: len(stamps),
			Link:    fmt.Sprintf("[[%s#%s]]", doc.Title, strings.ReplaceAll(sec.Anchor, "_", " ")),
			First:   stamps[0],
			Last:    stamps[len(stamps)-1],
		})
	}
	return out
}

func scanTimestamps(page, text string) []time.Time {
	var out []time.Time
	for _, m := range timestampRE.FindAllStringSubmatch(text, -1) {
		ts, err := parseMatch(m)
		if err != nil {
			logx.Debugf("[[%s]]: 跳过时间戳 %q：%v", page, m[0], err)
			continue
		}
		out = append(out, ts)
	}
	return out
}

// parseMatch 校验日历日期与时刻；time.Date 会自动进位，因此需显式比对。
func parseMatch(m []string) (time.Time, error) {
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	month, _ := ParseMonth(m[4])
	year, _ := strconv.Atoi(m[5])
	if hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid time %02d:%02d", hour, minute)
	}
	ts := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	if ts.Day() != day || ts.Month() != month || ts.Year() != year {
		return time.Time{}, fmt.Errorf("invalid date %d %s %d", day, month, year)
	}
	return ts, nil
}
