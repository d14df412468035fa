package invitation

import (
	"context"
	"net/url"

	"github.com/nao1215/invitation/internal/widget"
)

// フォームのフィールド名。コントロールパネル側のエンドポイントが受け付ける名前に合わせる。
const (
	FieldID        = "id"
	FieldAction    = "action"
	FieldRecipient = "recipient"
	FieldMeeting   = "meeting"
	FieldCSRFToken = "csrfmiddlewaretoken"
)

// Endpoints は判断の送信先パス。
type Endpoints struct {
	// Dismiss は通知を既読にするエンドポイント。
	Dismiss string
	// Respond は招待への応答を記録するエンドポイント。
	Respond string
}

// DefaultEndpoints はコントロールパネルの標準のエンドポイント。
var DefaultEndpoints = Endpoints{
	Dismiss: "/dismiss_message/",
	Respond: "/read_message/",
}

// Transport はサーバーへの非同期リクエストを発行する。
// Postはネットワーク通信の完了を待たずに戻らなければならない。
// doneは任意の後の時点で通信結果（成功時はnil）を引数に呼ばれる。
type Transport interface {
	Post(ctx context.Context, endpoint string, form url.Values, done func(error))
}

// Ignore は送信結果を捨てる完了コールバック。
// 送信の失敗は利用者に通知せず、記録も再送もしない。
func Ignore(error) {}

// Page はハンドラが操作するページの状態。
// *widget.Model が実装する。
type Page interface {
	// CSRFToken はリクエストに添付するCSRFトークンを返す。
	CSRFToken() string
	// Update は表示状態の一連の変更を1つの単位として実行する。
	Update(fn func(v widget.View))
}

// BadgeUpdater はバッジ更新を外部に依頼する。件数の計算規則は実装側が持つ。
type BadgeUpdater interface {
	UpdateBadge(refresh bool)
}

// BadgeUpdaterFunc は関数をBadgeUpdaterとして扱うためのアダプタ。
type BadgeUpdaterFunc func(refresh bool)

// UpdateBadge はf(refresh)を呼び出す。
func (f BadgeUpdaterFunc) UpdateBadge(refresh bool) {
	f(refresh)
}

// Handler は招待通知への操作を処理する。
type Handler struct {
	// transport はサーバーへの送信に使用する。
	transport Transport
	// badge はバッジ更新の依頼先。nilなら依頼しない。
	badge BadgeUpdater
	// endpoints は送信先パス。
	endpoints Endpoints
}

// Option はHandlerの設定を変更する。
type Option func(*Handler)

// WithEndpoints は送信先パスを差し替える。
func WithEndpoints(e Endpoints) Option {
	return func(h *Handler) {
		h.endpoints = e
	}
}

// WithBadgeUpdater はバッジ更新の依頼先を設定する。
func WithBadgeUpdater(b BadgeUpdater) Option {
	return func(h *Handler) {
		h.badge = b
	}
}

// NewHandler は新しいHandlerを生成する。
func NewHandler(transport Transport, opts ...Option) *Handler {
	h := &Handler{
		transport: transport,
		endpoints: DefaultEndpoints,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Dismiss は通知を既読にするリクエストを1件送信する。
// 表示状態は変更しない。messageIDは検証せずそのまま送信する。
func (h *Handler) Dismiss(ctx context.Context, page Page, messageID string) {
	form := url.Values{}
	form.Set(FieldID, messageID)
	form.Set(FieldCSRFToken, page.CSRFToken())

	h.transport.Post(ctx, h.endpoints.Dismiss, form, Ignore)
}

// Result は応答処理後の表示状態。
type Result struct {
	// Removed は取り除いた要素の数。
	Removed int `json:"removed"`
	// Remaining は残っている通知の数。バッジの表示と一致する。
	Remaining int `json:"remaining"`
}

// Respond は招待への応答を表示状態に反映してからサーバーへ送信する。
//
// バッジ更新を依頼した後、IDがmessageIDで始まる要素をすべて取り除き、
// 残りの通知数をバッジに表示する。残りが0件なら通知エリアを
// EmptyMessageに置き換える。その後、応答を1件送信する。
// 既に取り除かれたmessageIDに対して呼んでも安全で、その場合も件数は再計算される。
func (h *Handler) Respond(ctx context.Context, page Page, messageID, choice, recipient, meeting string) Result {
	if h.badge != nil {
		h.badge.UpdateBadge(true)
	}

	var res Result
	page.Update(func(v widget.View) {
		res.Removed = v.RemoveByPrefix(messageID)
		res.Remaining = v.Remaining()
		if res.Remaining == 0 {
			v.SetAlert(widget.EmptyMessage)
		}
		v.SetBadge(res.Remaining)
	})

	form := url.Values{}
	form.Set(FieldID, messageID)
	form.Set(FieldAction, choice)
	form.Set(FieldRecipient, recipient)
	form.Set(FieldMeeting, meeting)
	form.Set(FieldCSRFToken, page.CSRFToken())

	h.transport.Post(ctx, h.endpoints.Respond, form, Ignore)

	return res
}
