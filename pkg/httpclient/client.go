package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout はリクエスト1件あたりの既定のタイムアウト。
const DefaultTimeout = 30 * time.Second

// CSRFFormField はCSRFトークンを運ぶフォームフィールド名。
// 値が設定されている場合は同じ値を HeaderCSRFToken にも設定する。
const CSRFFormField = "csrfmiddlewaretoken"

// HeaderCSRFToken はCSRFトークンを伝えるHTTPヘッダーキー。
const HeaderCSRFToken = "X-CSRFToken"

// Client はコントロールパネルのエンドポイントへフォームを送信するHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先のベースURL。
	baseURL string
}

// New は新しいHTTPクライアントを生成する。
// baseURLには接続先のベースURL（例: "http://panel:8000"）を指定する。
func New(baseURL string) *Client {
	return NewWithTimeout(baseURL, DefaultTimeout)
}

// NewWithTimeout はタイムアウトを指定してHTTPクライアントを生成する。
func NewWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// BaseURL は接続先のベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostForm は指定パスにapplication/x-www-form-urlencoded形式でPOSTリクエストを送信する。
// 2xx以外のステータスはエラーとして返す。レスポンスボディは読み捨てる。
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	// jQueryの$.ajaxと同じくXHRであることを示す
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if token := form.Get(CSRFFormField); token != "" {
		req.Header.Set(HeaderCSRFToken, token)
	}

	// コンテキストからユーザーIDを伝播する
	if userID, ok := ctx.Value(contextKeyUserID).(string); ok {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// StatusError は2xx以外のレスポンスを表すエラー。
type StatusError struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Body はレスポンスボディの先頭部分。
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPエラー: status=%d, body=%s", e.StatusCode, e.Body)
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyUserID はコンテキストにユーザーIDを格納するためのキー。
const contextKeyUserID contextKey = "user_id"

// WithUserID はコンテキストにユーザーIDを設定する。
// 送信先に操作したユーザーを伝えるために使用する。
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}
