// 包 wiki 实现基于 MediaWiki REST/Action API 的页面存取：
// - Document：获取 Parsoid HTML 并解析为文档
// - Wikitext/Save：读取与保存源码
// - EmbeddedIn：列出嵌入了某模板的页面（即选择加入的讨论页）
package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"hbcai/internal/fetch"
	"hbcai/internal/logx"
	"hbcai/internal/parsoid"
)

// ErrPageNotFound 表示页面不存在；掩码展开以此作为序列结束信号。
var ErrPageNotFound = errors.New("page does not exist")

// PageStore 为流水线所需的全部页面能力。
type PageStore interface {
	Document(ctx context.Context, title string) (*parsoid.Document, error)
	Wikitext(ctx context.Context, title string) (string, error)
	Save(ctx context.Context, title, text, summary string) error
}

// Client 通过 HTTP 访问一个维基站点。
type Client struct {
	http *fetch.Client
	// base 为脚本路径，如 https://en.wikipedia.org/w/
	base string
}

// New 创建客户端；base 为站点脚本路径（api.php/rest.php/index.php 所在目录）。
func New(cl *fetch.Client, base string) *Client {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Client{http: cl, base: base}
}

func (c *Client) apiURL() string { return c.base + "api.php" }

func (c *Client) restURL(title, suffix string) string {
	return c.base + "rest.php/v1/page/" + url.PathEscape(strings.ReplaceAll(title, " ", "_")) + suffix
}

// HistoryFeedURL 返回页面历史的 Atom 订阅地址。
func (c *Client) HistoryFeedURL(title string) string {
	q := url.Values{"title": {title}, "action": {"history"}, "feed": {"atom"}}
	return c.base + "index.php?" + q.Encode()
}

// Document 获取页面的 Parsoid HTML（不跟随重定向）。
func (c *Client) Document(ctx context.Context, title string) (*parsoid.Document, error) {
	resp, err := c.http.Get(ctx, c.restURL(title, "/html?redirect=no"))
	if err != nil {
		if fetch.IsNotFound(err) {
			return nil, fmt.Errorf("[[%s]]: %w", title, ErrPageNotFound)
		}
		return nil, fmt.Errorf("GET html %s: %w", title, err)
	}
	defer resp.Body.Close()
	return parsoid.Parse(title, io.LimitReader(resp.Body, 32<<20))
}

// Wikitext 获取页面源码。
func (c *Client) Wikitext(ctx context.Context, title string) (string, error) {
	resp, err := c.http.Get(ctx, c.restURL(title, ""))
	if err != nil {
		if fetch.IsNotFound(err) {
			return "", fmt.Errorf("[[%s]]: %w", title, ErrPageNotFound)
		}
		return "", fmt.Errorf("GET source %s: %w", title, err)
	}
	defer resp.Body.Close()
	var page struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return "", fmt.Errorf("decode source %s: %w", title, err)
	}
	return page.Source, nil
}

// apiError 为 Action API 的错误结构（formatversion=2）。
type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) Error() string { return fmt.Sprintf("api error %s: %s", e.Code, e.Info) }

// call 调用 Action API 并解码结果到 out；API 层错误转换为 error。
func (c *Client) call(ctx context.Context, post bool, params url.Values, out any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	var body io.ReadCloser
	if post {
		resp, err := c.http.PostForm(ctx, c.apiURL(), params)
		if err != nil {
			return fmt.Errorf("POST api %s: %w", params.Get("action"), err)
		}
		body = resp.Body
	} else {
		resp, err := c.http.Get(ctx, c.apiURL()+"?"+params.Encode())
		if err != nil {
			return fmt.Errorf("GET api %s: %w", params.Get("action"), err)
		}
		body = resp.Body
	}
	defer body.Close()
	raw, err := io.ReadAll(io.LimitReader(body, 16<<20))
	if err != nil {
		return fmt.Errorf("read api %s: %w", params.Get("action"), err)
	}
	var envelope struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode api %s: %w", params.Get("action"), err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode api %s: %w", params.Get("action"), err)
	}
	return nil
}

func (c *Client) token(ctx context.Context, kind string) (string, error) {
	var out struct {
		Query struct {
			Tokens map[string]string `json:"tokens"`
		} `json:"query"`
	}
	if err := c.call(ctx, false, url.Values{"action": {"query"}, "meta": {"tokens"}, "type": {kind}}, &out); err != nil {
		return "", err
	}
	tok := out.Query.Tokens[kind+"token"]
	if tok == "" {
		return "", fmt.Errorf("empty %s token", kind)
	}
	return tok, nil
}

// Login 使用 bot password 登录，会话保存在 fetch.Client 的 Cookie 中。
func (c *Client) Login(ctx context.Context, username, password string) error {
	tok, err := c.token(ctx, "login")
	if err != nil {
		return fmt.Errorf("login token: %w", err)
	}
	var out struct {
		Login struct {
			Result string `json:"result"`
			Reason string `json:"reason"`
		} `json:"login"`
	}
	params := url.Values{"action": {"login"}, "lgname": {username}, "lgpassword": {password}, "lgtoken": {tok}}
	if err := c.call(ctx, true, params, &out); err != nil {
		return fmt.Errorf("login %s: %w", username, err)
	}
	if out.Login.Result != "Success" {
		return fmt.Errorf("login %s: %s %s", username, out.Login.Result, out.Login.Reason)
	}
	logx.Infof("已登录为 %s", username)
	return nil
}

// Save 保存页面；nocreate 保证不会意外创建新页面。
func (c *Client) Save(ctx context.Context, title, text, summary string) error {
	tok, err := c.token(ctx, "csrf")
	if err != nil {
		return fmt.Errorf("csrf token: %w", err)
	}
	var out struct {
		Edit struct {
			Result string `json:"result"`
		} `json:"edit"`
	}
	params := url.Values{
		"action":   {"edit"},
		"title":    {title},
		"text":     {text},
		"summary":  {summary},
		"bot":      {"1"},
		"nocreate": {"1"},
		"token":    {tok},
	}
	if err := c.call(ctx, true, params, &out); err != nil {
		return fmt.Errorf("save %s: %w", title, err)
	}
	if out.Edit.Result != "Success" {
		return fmt.Errorf("save %s: result %q", title, out.Edit.Result)
	}
	return nil
}

// EmbeddedIn 列出嵌入了模板 template 的全部页面标题（自动翻页）。
func (c *Client) EmbeddedIn(ctx context.Context, template string) ([]string, error) {
	var titles []string
	cont := url.Values{}
	for {
		params := url.Values{
			"action":  {"query"},
			"list":    {"embeddedin"},
			"eititle": {template},
			"eilimit": {"max"},
		}
		for k, v := range cont {
			params[k] = v
		}
		var out struct {
			Continue map[string]string `json:"continue"`
			Query    struct {
				EmbeddedIn []struct {
					Title string `json:"title"`
				} `json:"embeddedin"`
			} `json:"query"`
		}
		if err := c.call(ctx, false, params, &out); err != nil {
			return nil, fmt.Errorf("embeddedin %s: %w", template, err)
		}
		for _, p := range out.Query.EmbeddedIn {
			titles = append(titles, p.Title)
		}
		if len(out.Continue) == 0 {
			return titles, nil
		}
		cont = url.Values{}
		for k, v := range out.Continue {
			cont.Set(k, v)
		}
	}
}
