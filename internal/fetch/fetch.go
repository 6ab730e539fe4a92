// 包 fetch 封装访问维基站点的 HTTP 客户端（代理/超时/重试/限速/Cookie）。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultUserAgent 遵循维基媒体的 UA 规范：名称/版本 + 联系方式。
const DefaultUserAgent = "hbcai/1.0 (archive index bot; https://github.com/legoktm/hbcai)"

// Client 为带重试与限速的 HTTP 客户端。
type Client struct {
	http    *http.Client
	retry   int
	limiter *rate.Limiter
	ua      string
}

// Options 为客户端构造参数。
type Options struct {
	ProxyHTTP  string
	ProxyHTTPS string
	Timeout    time.Duration
	Retry      int
	// RatePerSecond 为每秒请求上限，<=0 表示不限速。
	RatePerSecond float64
	Burst         int
	UserAgent     string
}

// StatusError 表示服务端返回了非 2xx 状态码。
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string { return fmt.Sprintf("http status %s: %s", e.Status, e.URL) }

// IsNotFound 判断错误是否为 404。
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// New 创建客户端，支持 http/https 代理、超时、限速与会话 Cookie。
func New(opts Options) (*Client, error) {
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && opts.ProxyHTTPS != "" {
				return url.Parse(opts.ProxyHTTPS)
			}
			if req.URL.Scheme == "http" && opts.ProxyHTTP != "" {
				return url.Parse(opts.ProxyHTTP)
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	cl := &http.Client{Transport: transport, Jar: jar, Timeout: opts.Timeout}
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	ua := opts.UserAgent
	if v := os.Getenv("INDEXBOT_UA"); v != "" {
		ua = v
	}
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Client{http: cl, retry: opts.Retry, limiter: lim, ua: ua}, nil
}

// Get 发起 GET 请求。
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil)
}

// PostForm 以 application/x-www-form-urlencoded 提交表单。
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, rawURL, form)
}

// do 对网络错误、429 与 5xx 做线性回退重试；其余 4xx 立即返回 *StatusError。
func (c *Client) do(ctx context.Context, method, rawURL string, form url.Values) (*http.Response, error) {
	var lastErr error
	attempts := c.retry + 1
	for i := 0; i < attempts; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		req, reqErr := http.NewRequestWithContext(ctx, method, rawURL, body)
		if reqErr != nil {
			return nil, fmt.Errorf("new request: %w", reqErr)
		}
		req.Header.Set("User-Agent", c.ua)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		resp, err := c.http.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		if err == nil {
			resp.Body.Close()
			se := &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: rawURL}
			if !retryable(resp.StatusCode) {
				return nil, se
			}
			lastErr = se
		} else {
			lastErr = err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * 300 * time.Millisecond):
		}
	}
	return nil, lastErr
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
