// 招待通知ウィジェットのホストのエントリポイント。
// ウィジェットの状態を配信し、利用者の判断をコントロールパネルへ転送する。
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"

	"github.com/nao1215/invitation/internal/config"
	"github.com/nao1215/invitation/internal/panel"
)

// shutdownTimeout は終了時に送信中のリクエストを待つ上限。
const shutdownTimeout = 10 * time.Second

func main() {
	envFile := flag.String("envFile", "", "指定された場合、このパスの.envファイルから環境変数を読み込む")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	if cfg.DevMode {
		log.Printf("WARN: 開発モードで起動します")
	}

	server, err := panel.NewServer(cfg)
	if err != nil {
		log.Fatalf("サーバーの初期化に失敗: %v", err)
	}

	osSignal := make(chan os.Signal, 1)
	signal.Notify(osSignal, syscall.SIGINT, syscall.SIGTERM)

	g := run.Group{}

	g.Add(func() error {
		sig, ok := <-osSignal
		if ok {
			log.Printf("シグナルを受信しました: %v", sig)
		}
		return nil
	}, func(error) {
		signal.Stop(osSignal)
		close(osSignal)
	})

	g.Add(func() error {
		log.Printf("招待通知ウィジェットを起動します: :%s (送信先: %s)", cfg.Port, cfg.UpstreamURL)
		return server.Run()
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("サーバーの停止に失敗: %v", err)
		}
	})

	if err := g.Run(); err != nil {
		log.Fatalf("招待通知ウィジェットが異常終了しました: %v", err)
	}
	log.Printf("招待通知ウィジェットを停止しました")
}
