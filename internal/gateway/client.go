// Package gateway はバックエンドREST APIへの唯一の送信口を提供する。
//
// すべてのリクエストは同じCookieJarを共有し、失敗はTranslateで
// model.APIErrorに一度だけ正規化される。401を受け取った場合は
// 保存済みログイン情報を削除し、event.SessionExpiredを発行したうえで
// 呼び出し元にもエラーを返す。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/blogclient/internal/event"
	"github.com/hitoshi/blogclient/internal/metrics"
	"github.com/hitoshi/blogclient/internal/model"
)

// RequestIDHeader はリクエストごとに付与する相関IDのヘッダー名。
const RequestIDHeader = "X-Request-ID"

// LoginPath はログインのパス。ここでの401は認証情報の誤りであり、
// セッション失効としては扱わない。
const LoginPath = "/auth/login"

// CredentialClearer は401受信時に保存済みログイン情報を削除する。
type CredentialClearer interface {
	Clear(ctx context.Context) error
}

// Publisher はセッション失効を通知する。
type Publisher interface {
	Publish(topic event.Topic)
}

// Options はClientの生成オプション。
type Options struct {
	// BaseURL はベースパスまで含めたAPIのルート（例: http://localhost:8080/api/v1）。
	BaseURL string
	Timeout time.Duration
	// Rate と Burst は送信レートの上限。Rateが0以下なら無制限。
	Rate  float64
	Burst int

	Credentials CredentialClearer
	Bus         Publisher
	Metrics     metrics.MetricsCollector
	Logger      *slog.Logger
	// Transport はテストや計測用に差し替える場合のみ指定する。
	Transport http.RoundTripper
}

// Client はバックエンドAPIのHTTPクライアント。
type Client struct {
	httpClient  *http.Client
	jar         *resettableJar
	baseURL     string
	cookieURL   *url.URL
	limiter     *rate.Limiter
	credentials CredentialClearer
	bus         Publisher
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
}

// New はClientを生成する。
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	u, err := url.Parse(base + "/")
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	jar := newResettableJar()
	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Jar:       jar,
			Transport: opts.Transport,
		},
		jar:         jar,
		baseURL:     base,
		cookieURL:   u,
		limiter:     limiter,
		credentials: opts.Credentials,
		bus:         opts.Bus,
		metrics:     metrics.OrNop(opts.Metrics),
		logger:      logger,
	}, nil
}

// Get はGETリクエストを送信し、レスポンスをoutにデコードする。
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post はbodyをJSONで送信する。
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Put はbodyをJSONで送信する。
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Delete はDELETEリクエストを送信する。ユーザー削除のようにbodyを伴う場合がある。
func (c *Client) Delete(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, body, out)
}

// Do は1回だけリクエストを送信する。自動リトライは行わない。
// 返すエラーは常に*model.APIError。
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	requestID := uuid.NewString()
	start := time.Now()

	status, err := c.do(ctx, method, path, query, body, out, requestID)
	duration := time.Since(start)
	c.metrics.RecordRequest(method, status, duration)

	if err == nil {
		c.logger.Debug("API呼び出しが完了しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", status),
			slog.Int64("duration_ms", duration.Milliseconds()),
			slog.String("request_id", requestID),
		)
		return nil
	}

	apiErr := Translate(err)
	if apiErr.Status == http.StatusUnauthorized && !isLogin(method, path) {
		c.handleUnauthorized(ctx, method, path, requestID)
	}

	level := slog.LevelWarn
	if apiErr.Kind() == model.KindServer || apiErr.Kind() == model.KindTransient {
		level = slog.LevelError
	}
	if apiErr.Kind() == model.KindCanceled {
		level = slog.LevelDebug
	}
	c.logger.Log(ctx, level, "API呼び出しが失敗しました",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("http_status", apiErr.Status),
		slog.String("error", apiErr.Message),
		slog.Int64("duration_ms", duration.Milliseconds()),
		slog.String("request_id", requestID),
	)
	return apiErr
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, requestID string) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, err
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, translateStatus(resp.StatusCode, raw)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response body: %w", err)
	}
	return resp.StatusCode, nil
}

func isLogin(method, path string) bool {
	return method == http.MethodPost && path == LoginPath
}

// handleUnauthorized は401受信時の共通処理。
// 呼び出し元のコンテキストがキャンセルされていても削除は完了させる。
func (c *Client) handleUnauthorized(ctx context.Context, method, path, requestID string) {
	c.jar.Reset()
	if c.credentials != nil {
		if err := c.credentials.Clear(context.WithoutCancel(ctx)); err != nil {
			c.logger.Error("保存済みログイン情報の削除に失敗しました",
				slog.String("error", err.Error()),
				slog.String("request_id", requestID),
			)
		}
	}
	c.logger.Warn("セッションが失効しました",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("request_id", requestID),
	)
	if c.bus != nil {
		c.bus.Publish(event.SessionExpired)
	}
}

// Cookies は現在保持しているバックエンドのCookieを返す。
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.cookieURL)
}

// SetCookies は保存済みのCookieをJarに戻す。
func (c *Client) SetCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	c.jar.SetCookies(c.cookieURL, cookies)
}

// ResetCookies は保持しているCookieをすべて破棄する。
func (c *Client) ResetCookies() {
	c.jar.Reset()
}
