// Package network は、GBDのHTTP通信に関する機能を提供します。
// Cookie Jarとホストごとのレートリミッターをカプセル化した、より高レベルな
// HTTPクライアントを実装しています。
package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"GoBooruDownloader/internal/config"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// HTTPError は、HTTPリクエストで発生したエラーとステータスコードを保持します。
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// IsRetryable は、このエラーがリトライ可能かどうかを判定します。
// 4xxエラー（クライアントエラー）はリトライ不可、5xxエラー（サーバーエラー）はリトライ可能とします。
func (e *HTTPError) IsRetryable() bool {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		// 429 Too Many Requests だけは待てば通る
		return e.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// IsAuthFailure は、認証情報が拒否されたことを示すステータスかどうかを返します。
func (e *HTTPError) IsAuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// BasicAuth は、Basic認証の資格情報です。
type BasicAuth struct {
	Username string
	Password string
}

// Client は、Cookie Jarとホストごとのレートリミッターを内包するHTTPクライアントです。
// 複数のゴルーチンから同時に使用できます。
type Client struct {
	httpClient        *http.Client
	jar               *cookiejar.Jar
	userAgent         string
	defaultHeaders    map[string]string
	rateLimiters      map[string]*rate.Limiter // ホスト名ごとのレートリミッター
	rateLimitersMutex sync.Mutex               // rateLimitersへのアクセスを保護するMutex
}

// NewClient は NetworkSettings に基づいて HTTP クライアントを初期化し、
// ドメインごとのレートリミッターを設定します。
func NewClient(settings config.NetworkSettings) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jarの作成に失敗しました: %w", err)
	}

	timeout := time.Duration(settings.RequestTimeoutMillis) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rateLimiters := make(map[string]*rate.Limiter)
	for domain, intervalMillis := range settings.PerDomainIntervalMillis {
		if intervalMillis <= 0 {
			continue
		}
		rateLimiters[strings.ToLower(domain)] = rate.NewLimiter(rate.Every(time.Duration(intervalMillis)*time.Millisecond), 1)
	}

	return &Client{
		httpClient:     &http.Client{Jar: jar, Timeout: timeout},
		jar:            jar,
		userAgent:      settings.UserAgent,
		defaultHeaders: settings.DefaultHeaders,
		rateLimiters:   rateLimiters,
	}, nil
}

// SetCookie は、指定されたURLのドメインに対して、任意のCookieを設定します。
func (c *Client) SetCookie(domainURL string, cookie *http.Cookie) error {
	if !strings.HasPrefix(domainURL, "http") {
		domainURL = "https://" + domainURL
	}
	parsedURL, err := url.Parse(domainURL)
	if err != nil {
		return fmt.Errorf("Cookie設定のためのURL解析に失敗しました: %w", err)
	}
	c.jar.SetCookies(parsedURL, []*http.Cookie{cookie})
	return nil
}

// Get は、指定されたURLにGETリクエストを送信し、レスポンスボディを返します。
// auth が nil でなければBasic認証ヘッダーを付与します。
func (c *Client) Get(ctx context.Context, reqURL string, auth *BasicAuth) ([]byte, error) {
	resp, err := c.do(ctx, reqURL, auth)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み込みに失敗しました (%s): %w", reqURL, err)
	}
	return body, nil
}

// Download は、指定されたURLの内容を w にストリーミングし、書き込んだバイト数を返します。
func (c *Client) Download(ctx context.Context, reqURL string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, reqURL, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("レスポンスボディの書き込みに失敗しました (%s): %w", reqURL, err)
	}
	return n, nil
}

// do は、レートリミッターで待機した後にリクエストを送信します。
// 200以外のステータスは HTTPError として返し、ボディはクローズ済みです。
func (c *Client) do(ctx context.Context, reqURL string, auth *BasicAuth) (*http.Response, error) {
	parsedURL, err := url.Parse(reqURL)
	if err != nil {
		return nil, fmt.Errorf("リクエストURLの解析に失敗しました (%s): %w", reqURL, err)
	}

	if limiter := c.getLimiterForHost(parsedURL.Hostname()); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("レートリミッター待機中にエラーが発生しました: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("GETリクエストの作成に失敗しました (%s): %w", reqURL, err)
	}
	for key, value := range c.defaultHeaders {
		req.Header.Set(key, value)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if auth != nil {
		req.SetBasicAuth(auth.Username, auth.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GETリクエストの送信に失敗しました (%s): %w", reqURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		message := http.StatusText(resp.StatusCode)
		if snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024)); len(snippet) > 0 {
			if summary := SummarizeBody(snippet); summary != "" {
				message = summary
			}
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: reqURL, Message: message}
	}
	return resp, nil
}

// getLimiterForHost は、指定されたホスト名に設定されたレートリミッターを返します。
// 設定がないホストには制限をかけません（サイトごとの待機はアダプタ側が担います）。
func (c *Client) getLimiterForHost(host string) *rate.Limiter {
	c.rateLimitersMutex.Lock()
	defer c.rateLimitersMutex.Unlock()

	host = strings.ToLower(host)
	if limiter, exists := c.rateLimiters[host]; exists {
		return limiter
	}
	return nil
}

// SummarizeBody は、レスポンス本文の短い要約を返します。
// HTMLのエラーページ（Cloudflare、メンテナンス画面など）であれば <title> と本文の先頭を、
// それ以外は先頭の数十文字を返します。
func SummarizeBody(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '<' {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(trimmed))
		if err == nil {
			title := strings.TrimSpace(doc.Find("title").First().Text())
			heading := strings.TrimSpace(doc.Find("h1").First().Text())
			switch {
			case title != "" && heading != "" && heading != title:
				return truncate(title+": "+heading, 120)
			case title != "":
				return truncate(title, 120)
			case heading != "":
				return truncate(heading, 120)
			}
			return truncate(strings.Join(strings.Fields(doc.Text()), " "), 120)
		}
	}
	return truncate(strings.Join(strings.Fields(string(trimmed)), " "), 80)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
