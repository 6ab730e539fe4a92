// 包 history 读取维基页面历史的 Atom 订阅，获取最近一次编辑。
// 用于在覆盖索引页前提示“近期有人手动编辑过”。
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"hbcai/internal/fetch"
)

// ErrNoEdits 表示订阅中没有任何修订。
var ErrNoEdits = errors.New("history feed has no entries")

// Edit 为一次修订的摘要信息。
type Edit struct {
	Author  string
	Comment string
	When    time.Time
}

// Since 返回该修订距 now 的时长。
func (e Edit) Since(now time.Time) time.Duration { return now.Sub(e.When) }

// Reader 通过 fetch.Client 抓取历史订阅；FeedURL 将页面标题映射为订阅地址。
type Reader struct {
	http    *fetch.Client
	feedURL func(title string) string
}

func NewReader(cl *fetch.Client, feedURL func(title string) string) *Reader {
	return &Reader{http: cl, feedURL: feedURL}
}

// LastEdit 返回页面最近一次修订。
func (r *Reader) LastEdit(ctx context.Context, title string) (Edit, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	u := r.feedURL(title)
	// gofeed 不直接接收自定义 http.Client，先用自己的客户端抓取再交给解析器
	resp, err := r.http.Get(reqCtx, u)
	if err != nil {
		return Edit{}, fmt.Errorf("GET history %s: %w", title, err)
	}
	defer resp.Body.Close()
	e, err := Parse(resp.Body)
	if err != nil {
		return Edit{}, fmt.Errorf("parse history %s: %w", title, err)
	}
	return e, nil
}

// Parse 解析历史订阅，返回时间最新的条目。
func Parse(body io.Reader) (Edit, error) {
	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return Edit{}, err
	}
	var latest Edit
	for _, it := range feed.Items {
		when := pickTime(it.UpdatedParsed, it.PublishedParsed)
		if when.IsZero() || !when.After(latest.When) {
			continue
		}
		latest = Edit{Author: authorName(it), Comment: strings.TrimSpace(it.Title), When: when.UTC()}
	}
	if latest.When.IsZero() {
		return Edit{}, ErrNoEdits
	}
	return latest, nil
}

func pickTime(a, b *time.Time) time.Time {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return time.Time{}
}

func authorName(it *gofeed.Item) string {
	if it.Author != nil && it.Author.Name != "" {
		return strings.TrimSpace(it.Author.Name)
	}
	for _, a := range it.Authors {
		if a != nil && a.Name != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	return ""
}
