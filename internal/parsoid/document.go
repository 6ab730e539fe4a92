// 包 parsoid 将 Parsoid 生成的 HTML 解析为只读文档模型：
// - 章节（标题层级/标题文本/锚点/正文文本）
// - 模板调用（data-mw 中的名称与参数）
// - HTML 注释与重定向目标
package parsoid

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document 为单个页面的解析结果，构造后不再修改。
type Document struct {
	Title     string
	Sections  []Section
	Templates []Transclusion
	Comments  []string
	// Redirect 非空时表示该页是重定向页，值为目标标题。
	Redirect string
}

// Section 对应 Parsoid 的 <section data-mw-section-id>。
// Text 包含嵌套子章节的文本。
type Section struct {
	Level  int
	Title  string
	Anchor string
	Text   string
}

// HasHeading 报告章节是否带标题（导言章节没有）。
func (s Section) HasHeading() bool { return s.Level > 0 }

// Transclusion 为一次模板调用。
type Transclusion struct {
	Name   string
	Params map[string]string
}

// Param 返回去除首尾空白的参数值；第二个返回值表示参数是否存在。
func (t Transclusion) Param(name string) (string, bool) {
	v, ok := t.Params[name]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Parse 读取 Parsoid HTML。title 为页面标题（HTML 中的 <title> 不可靠，由调用方给出）。
func Parse(title string, r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse parsoid html %s: %w", title, err)
	}
	d := &Document{Title: title}
	doc.Find("section[data-mw-section-id]").Each(func(_ int, s *goquery.Selection) {
		d.Sections = append(d.Sections, readSection(s))
	})
	doc.Find("[typeof~='mw:Transclusion']").Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr("data-mw")
		if !ok {
			return
		}
		d.Templates = append(d.Templates, readTransclusions(raw)...)
	})
	if href, ok := doc.Find("link[rel~='mw:PageProp/redirect']").First().Attr("href"); ok {
		d.Redirect = TitleFromHref(href)
	}
	for _, n := range doc.Nodes {
		collectComments(n, &d.Comments)
	}
	return d, nil
}

// ParseString 为测试与调试提供的便捷入口。
func ParseString(title, src string) (*Document, error) {
	return Parse(title, strings.NewReader(src))
}

// HasComment 判断文档中是否存在（去空白后）与任一候选完全相同的注释。
func (d *Document) HasComment(candidates ...string) bool {
	for _, c := range d.Comments {
		c = strings.TrimSpace(c)
		for _, want := range candidates {
			if c == want {
				return true
			}
		}
	}
	return false
}

// FindTemplate 按名称查找第一个模板调用，名称比较忽略下划线/空格差异与首字母大小写。
func (d *Document) FindTemplate(name string) (Transclusion, bool) {
	want := NormalizeTitle(name)
	for _, t := range d.Templates {
		if NormalizeTitle(t.Name) == want {
			return t, true
		}
	}
	return Transclusion{}, false
}

func readSection(s *goquery.Selection) Section {
	sec := Section{Text: s.Text()}
	h := s.ChildrenFiltered("h1, h2, h3, h4, h5, h6").First()
	if h.Length() == 0 {
		// 新版 Parsoid 将标题包在 <div class="mw-heading"> 中
		h = s.ChildrenFiltered("div.mw-heading").ChildrenFiltered("h1, h2, h3, h4, h5, h6").First()
	}
	if h.Length() == 0 {
		return sec
	}
	tag := goquery.NodeName(h)
	sec.Level = int(tag[1] - '0')
	sec.Title = strings.TrimSpace(h.Text())
	sec.Anchor, _ = h.Attr("id")
	return sec
}

// dataMW 为 data-mw 属性中我们关心的部分。
type dataMW struct {
	Parts []json.RawMessage `json:"parts"`
}

type templatePart struct {
	Template *struct {
		Target struct {
			WT   string `json:"wt"`
			Href string `json:"href"`
		} `json:"target"`
		Params map[string]struct {
			WT string `json:"wt"`
		} `json:"params"`
	} `json:"template"`
}

func readTransclusions(raw string) []Transclusion {
	var mw dataMW
	if err := json.Unmarshal([]byte(raw), &mw); err != nil {
		return nil
	}
	var out []Transclusion
	for _, p := range mw.Parts {
		// 纯文本片段是 JSON 字符串，直接跳过
		var part templatePart
		if err := json.Unmarshal(p, &part); err != nil || part.Template == nil {
			continue
		}
		name := strings.TrimSpace(part.Template.Target.WT)
		if part.Template.Target.Href != "" {
			name = TitleFromHref(part.Template.Target.Href)
		}
		params := make(map[string]string, len(part.Template.Params))
		for k, v := range part.Template.Params {
			params[strings.TrimSpace(k)] = v.WT
		}
		out = append(out, Transclusion{Name: name, Params: params})
	}
	return out
}

func collectComments(n *html.Node, out *[]string) {
	if n.Type == html.CommentNode {
		*out = append(*out, n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectComments(c, out)
	}
}

// TitleFromHref 将 Parsoid 链接（"./Talk:Foo_bar"）还原为标题（"Talk:Foo bar"）。
func TitleFromHref(href string) string {
	href = strings.TrimPrefix(href, "./")
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if u, err := url.PathUnescape(href); err == nil {
		href = u
	}
	return strings.ReplaceAll(href, "_", " ")
}

// NormalizeTitle 统一标题写法：下划线视为空格、折叠首尾空白、首字母大写。
func NormalizeTitle(t string) string {
	t = strings.TrimSpace(strings.ReplaceAll(t, "_", " "))
	if t == "" {
		return t
	}
	r, size := utf8.DecodeRuneInString(t)
	return string(unicode.ToUpper(r)) + t[size:]
}
