package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/invitation/internal/invitation"
	"github.com/nao1215/invitation/internal/widget"
	"github.com/nao1215/invitation/pkg/httpclient"
)

// HTTPがinvitation.Transportを満たすことをコンパイル時に確認する
var _ invitation.Transport = (*HTTP)(nil)

// TestHTTPPost はPostの非同期送信を検証する。
func TestHTTPPost(t *testing.T) {
	t.Parallel()

	t.Run("送信完了を待たずに戻りdoneが呼ばれること", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		var mu sync.Mutex
		var gotBody string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			gotBody = string(b)
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		tr := NewHTTP(httpclient.New(ts.URL), time.Second)
		doneCh := make(chan error, 1)

		tr.Post(context.Background(), "/read_message/", url.Values{"id": {"A2"}}, func(err error) {
			doneCh <- err
		})

		// サーバーはまだ応答していないのでdoneは呼ばれていない
		select {
		case <-doneCh:
			t.Fatal("Post()が送信完了まで戻らなかった")
		default:
		}

		close(release)
		select {
		case err := <-doneCh:
			if err != nil {
				t.Errorf("done(err) = %v, want nil", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("doneが呼ばれなかった")
		}

		mu.Lock()
		defer mu.Unlock()
		if gotBody != "id=A2" {
			t.Errorf("body = %q, want %q", gotBody, "id=A2")
		}
	})

	t.Run("送信失敗時にdoneへエラーが渡されること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer ts.Close()

		tr := NewHTTP(httpclient.New(ts.URL), 0)
		var got error
		tr.Post(context.Background(), "/dismiss_message/", url.Values{}, func(err error) { got = err })
		tr.Wait()

		if got == nil {
			t.Fatal("done(err)がnilだった")
		}
	})

	t.Run("呼び出し元のコンテキストがキャンセルされても送信されること", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		hits := 0
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			mu.Lock()
			hits++
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		ctx, cancel := context.WithCancel(context.Background())
		tr := NewHTTP(httpclient.New(ts.URL), time.Second)
		var got error
		tr.Post(ctx, "/dismiss_message/", url.Values{}, func(err error) { got = err })
		cancel()
		tr.Wait()

		if got != nil {
			t.Errorf("done(err) = %v, want nil", got)
		}
		mu.Lock()
		defer mu.Unlock()
		if hits != 1 {
			t.Errorf("受信数 = %d, want 1", hits)
		}
	})

	t.Run("doneがnilでもパニックしないこと", func(t *testing.T) {
		t.Parallel()

		tr := NewHTTP(httpclient.New("http://127.0.0.1:1"), 100*time.Millisecond)
		tr.Post(context.Background(), "/dismiss_message/", url.Values{}, nil)
		tr.Wait()
	})
}

// TestHTTPWithHandler はinvitation.Handlerと組み合わせた送信を検証する。
func TestHTTPWithHandler(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	received := map[string]url.Values{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received[r.URL.Path] = r.PostForm
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	tr := NewHTTP(httpclient.New(ts.URL), time.Second)
	h := invitation.NewHandler(tr)
	page := widget.New("csrf-transport",
		widget.Element{ID: "A1", Classes: []string{widget.MarkerClass}},
		widget.Element{ID: "A2", Classes: []string{widget.MarkerClass}},
	)

	h.Dismiss(context.Background(), page, "A1")
	h.Respond(context.Background(), page, "A2", "accept", "bob", "m1")
	tr.Wait()

	mu.Lock()
	defer mu.Unlock()
	if got := received["/dismiss_message/"].Get("id"); got != "A1" {
		t.Errorf("dismiss id = %q, want %q", got, "A1")
	}
	respond := received["/read_message/"]
	if respond.Get("id") != "A2" || respond.Get("action") != "accept" ||
		respond.Get("recipient") != "bob" || respond.Get("meeting") != "m1" {
		t.Errorf("respond form = %v", respond)
	}
	if respond.Get("csrfmiddlewaretoken") != "csrf-transport" {
		t.Errorf("csrfmiddlewaretoken = %q, want %q", respond.Get("csrfmiddlewaretoken"), "csrf-transport")
	}
}
