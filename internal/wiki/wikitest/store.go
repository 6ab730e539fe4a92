// Package wikitest 提供内存版 PageStore，供各包测试使用。
package wikitest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"hbcai/internal/parsoid"
	"hbcai/internal/wiki"
)

// Page 为一个内存页面：HTML 供 Document 使用，Wikitext 供源码读取。
type Page struct {
	HTML     string
	Wikitext string
}

// Edit 记录一次保存。
type Edit struct {
	Title, Text, Summary string
}

// Store 是并发安全的内存 PageStore。
type Store struct {
	mu      sync.Mutex
	pages   map[string]Page
	fails   map[string]error
	fetched []string
	edits   []Edit
}

func New() *Store {
	return &Store{pages: map[string]Page{}, fails: map[string]error{}}
}

// Put 写入（或覆盖）页面。
func (s *Store) Put(title string, p Page) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[title] = p
	return s
}

// Fail 让对 title 的任何访问都返回 err。
func (s *Store) Fail(title string, err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[title] = err
	return s
}

// Fetched 返回按顺序记录的 Document 请求标题。
func (s *Store) Fetched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

// Edits 返回全部保存记录。
func (s *Store) Edits() []Edit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Edit(nil), s.edits...)
}

func (s *Store) lookup(title string) (Page, error) {
	if err, ok := s.fails[title]; ok {
		return Page{}, err
	}
	p, ok := s.pages[title]
	if !ok {
		return Page{}, fmt.Errorf("[[%s]]: %w", title, wiki.ErrPageNotFound)
	}
	return p, nil
}

func (s *Store) Document(_ context.Context, title string) (*parsoid.Document, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, title)
	p, err := s.lookup(title)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return parsoid.ParseString(title, p.HTML)
}

func (s *Store) Wikitext(_ context.Context, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(title)
	if err != nil {
		return "", err
	}
	return p.Wikitext, nil
}

func (s *Store) Save(_ context.Context, title, text, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fails[title]; ok {
		return err
	}
	p := s.pages[title]
	p.Wikitext = text
	s.pages[title] = p
	s.edits = append(s.edits, Edit{Title: title, Text: text, Summary: summary})
	return nil
}

// Section 为 ArchiveHTML 的一个二级章节。
type Section struct {
	Topic      string
	Timestamps []string
}

// ArchiveHTML 生成一个只含二级章节的 Parsoid 风格页面。
func ArchiveHTML(sections ...Section) string {
	var b strings.Builder
	b.WriteString(`<html><body><section data-mw-section-id="0"></section>`)
	for i, sec := range sections {
		anchor := strings.ReplaceAll(sec.Topic, " ", "_")
		fmt.Fprintf(&b, `<section data-mw-section-id="%d"><h2 id="%s">%s</h2>`, i+1, anchor, sec.Topic)
		for _, ts := range sec.Timestamps {
			fmt.Fprintf(&b, `<p>Comment. User (talk) %s (UTC)</p>`, ts)
		}
		b.WriteString(`</section>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// OptInHTML 生成带配置模板调用的页面；params 为模板参数。
func OptInHTML(template string, params map[string]string, extra string) string {
	var pb strings.Builder
	first := true
	for k, v := range params {
		if !first {
			pb.WriteString(",")
		}
		first = false
		fmt.Fprintf(&pb, `%q:{"wt":%q}`, k, v)
	}
	href := "./" + strings.ReplaceAll(template, " ", "_")
	dataMW := fmt.Sprintf(`{"parts":[{"template":{"target":{"wt":%q,"href":%q},"params":{%s},"i":0}}]}`, template, href, pb.String())
	return `<html><body><section data-mw-section-id="0"><span typeof="mw:Transclusion" data-mw='` +
		strings.ReplaceAll(dataMW, "'", "&#39;") + `'></span>` + extra + `</section></body></html>`
}

// TargetHTML 生成带安全注释的目标页；redirect 非空时生成重定向页。
func TargetHTML(comment, redirect string) string {
	head := ""
	if redirect != "" {
		head = `<link rel="mw:PageProp/redirect" href="./` + strings.ReplaceAll(redirect, " ", "_") + `"/>`
	}
	body := ""
	if comment != "" {
		body = "<!-- " + comment + " -->"
	}
	return `<html><head>` + head + `</head><body>` + body + `</body></html>`
}
