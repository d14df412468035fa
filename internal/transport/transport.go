// Package transport は招待通知の判断をコントロールパネルへ非同期に送信する。
package transport

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/nao1215/invitation/pkg/httpclient"
)

// HTTP はhttpclient.Clientを使ってフォームを送信するTransport。
// Postは送信をゴルーチンに任せてすぐに戻る。再送・キャンセルは行わない。
type HTTP struct {
	// client はフォーム送信に使うHTTPクライアント。
	client *httpclient.Client
	// timeout は1リクエストあたりの上限時間。
	timeout time.Duration
	// wg は送信中のリクエストを数える。
	wg sync.WaitGroup
}

// NewHTTP は新しいHTTP Transportを生成する。
// timeoutが0以下の場合はhttpclient.DefaultTimeoutを使う。
func NewHTTP(client *httpclient.Client, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = httpclient.DefaultTimeout
	}
	return &HTTP{client: client, timeout: timeout}
}

// Post はendpointへformを送信するゴルーチンを起動する。
// 呼び出し元のコンテキストがキャンセルされても送信は継続する。
// doneは送信完了後に1回だけ呼ばれる。nilの場合は呼ばない。
func (t *HTTP) Post(ctx context.Context, endpoint string, form url.Values, done func(error)) {
	ctx = context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		err := t.client.PostForm(ctx, endpoint, form)
		if done != nil {
			done(err)
		}
	}()
}

// Wait は送信中のリクエストがすべて完了するまで待つ。
func (t *HTTP) Wait() {
	t.wg.Wait()
}
