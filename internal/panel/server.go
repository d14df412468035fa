package panel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nao1215/invitation/internal/config"
	"github.com/nao1215/invitation/internal/invitation"
	"github.com/nao1215/invitation/internal/transport"
	"github.com/nao1215/invitation/internal/widget"
	"github.com/nao1215/invitation/pkg/event"
	"github.com/nao1215/invitation/pkg/httpclient"
	"github.com/nao1215/invitation/pkg/middleware"
)

// Server はウィジェットをホストするHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// httpServer はrouterを公開するHTTPサーバー。
	httpServer *http.Server
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store は描画済みの招待通知のストア。
	store *store
	// transport はコントロールパネルへの非同期送信を行う。
	transport *transport.HTTP
	// endpoints は判断の送信先パス。
	endpoints invitation.Endpoints
	// jwtSecret はセッションJWTの署名鍵。
	jwtSecret string
	// serviceToken は内部APIの共有シークレット。
	serviceToken string
	// devMode が有効な場合は開発用トークンを発行する。
	devMode bool

	mu sync.Mutex
	// sessions はユーザーIDごとのウィジェットのモデル。
	sessions map[string]*widget.Model
}

// NewServer は設定から新しいサーバーを生成する。
// SQLiteデータベースを開き、マイグレーションを適用する。
func NewServer(cfg *config.Config) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	s, err := newServer(sqlDB, cfg)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// newServer は開いたデータベース接続からサーバーを組み立てる。
func newServer(sqlDB *sql.DB, cfg *config.Config) (*Server, error) {
	st, err := openStore(sqlDB)
	if err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	client := httpclient.NewWithTimeout(cfg.UpstreamURL, cfg.RequestTimeout)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.FrontendURLs))

	s := &Server{
		router:    router,
		db:        sqlDB,
		store:     st,
		transport: transport.NewHTTP(client, cfg.RequestTimeout),
		endpoints: invitation.Endpoints{
			Dismiss: cfg.DismissPath,
			Respond: cfg.RespondPath,
		},
		jwtSecret:    cfg.JWTSecret,
		serviceToken: cfg.ServiceToken,
		devMode:      cfg.DevMode,
		sessions:     make(map[string]*widget.Model),
	}
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。Shutdownされるまで戻らない。
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown はHTTPサーバーを停止し、送信中のリクエストの完了を待ってからデータベースを閉じる。
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.transport.Wait()
	if cerr := s.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	if s.devMode {
		// 開発用トークン発行
		s.router.POST("/auth/dev-token", s.handleDevToken())
	}

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.jwtSecret))
	{
		w := api.Group("/widget")
		w.Use(middleware.CSRF(s.lookupToken))
		{
			// ウィジェットの状態取得
			w.GET("", s.handleState())
			// ウィジェットのHTML断片
			w.GET("/page", s.handlePage())
			// 通知の破棄
			w.POST("/dismiss", s.handleDismiss())
			// 招待への応答
			w.POST("/respond", s.handleRespond())
			// 操作履歴
			w.GET("/events", s.handleListEvents())
		}
	}

	// 描画済み招待の登録（内部API）。ユーザーのJWTではなく共有シークレットで認証する。
	internal := s.router.Group("/api/v1/internal")
	internal.Use(middleware.ServiceAuth(s.serviceToken))
	{
		internal.POST("/invitations", s.handleCreateInvitation())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "invitation-panel"})
	})
}

// session はユーザーのウィジェットのモデルを返す。
// 初回はストアの招待通知から生成し、CSRFトークンを発行する。
func (s *Server) session(ctx context.Context, userID string) (*widget.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.sessions[userID]; ok {
		return m, nil
	}

	records, err := s.store.listByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var elements []widget.Element
	for _, r := range records {
		elements = append(elements, r.elements()...)
	}

	m := widget.New(uuid.New().String(), elements...)
	s.sessions[userID] = m
	return m, nil
}

// lookupToken はCSRFミドルウェアにセッションのトークンを渡す。
func (s *Server) lookupToken(c *gin.Context) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return "", false
	}
	m, err := s.session(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[Widget] セッション取得エラー: %v", err)
		return "", false
	}
	return m.CSRFToken(), true
}

// handlerFor はモデルごとのバッジ更新依頼先を持つハンドラを生成する。
func (s *Server) handlerFor(m *widget.Model) *invitation.Handler {
	return invitation.NewHandler(s.transport,
		invitation.WithEndpoints(s.endpoints),
		invitation.WithBadgeUpdater(invitation.BadgeUpdaterFunc(func(bool) { m.Touch() })),
	)
}

// sessionFromContext は認証済みユーザーのモデルを取得する。失敗時はレスポンスを書いてfalseを返す。
func (s *Server) sessionFromContext(c *gin.Context) (*widget.Model, string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
		return nil, "", false
	}

	m, err := s.session(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ウィジェットの読み込みに失敗しました"})
		log.Printf("[Widget] セッション取得エラー: %v", err)
		return nil, "", false
	}
	return m, userID, true
}

// handleState はウィジェットの状態をJSONで返すハンドラ。
func (s *Server) handleState() gin.HandlerFunc {
	return func(c *gin.Context) {
		m, _, ok := s.sessionFromContext(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, m.Snapshot())
	}
}

// handlePage はウィジェットをHTML断片として返すハンドラ。
func (s *Server) handlePage() gin.HandlerFunc {
	return func(c *gin.Context) {
		m, _, ok := s.sessionFromContext(c)
		if !ok {
			return
		}
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		if err := widget.Render(c.Writer, m.Snapshot()); err != nil {
			log.Printf("[Widget] 描画エラー: %v", err)
		}
	}
}

// dismissRequest は通知破棄リクエストのJSON構造。
type dismissRequest struct {
	// ID は破棄する通知の識別子。
	ID string `json:"id" binding:"required"`
}

// handleDismiss は通知の既読化をコントロールパネルへ送信するハンドラ。
// ウィジェットの表示は変更しない。
func (s *Server) handleDismiss() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dismissRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		m, userID, ok := s.sessionFromContext(c)
		if !ok {
			return
		}

		ctx := httpclient.WithUserID(c.Request.Context(), userID)
		s.handlerFor(m).Dismiss(ctx, m, req.ID)
		if err := s.store.markDismissed(c.Request.Context(), userID, req.ID); err != nil {
			log.Printf("[Widget] 既読化エラー: %v", err)
		}
		s.record(c.Request.Context(), userID, req.ID, event.TypeNotificationDismissed, event.NotificationDismissedData{})

		c.JSON(http.StatusAccepted, gin.H{"message": "通知の破棄を送信しました"})
	}
}

// respondRequest は招待応答リクエストのJSON構造。
type respondRequest struct {
	// ID は応答する招待通知の識別子。
	ID string `json:"id" binding:"required"`
	// Action は承諾・拒否の区分。
	Action string `json:"action"`
	// Recipient は受信者。
	Recipient string `json:"recipient"`
	// Meeting は会議。
	Meeting string `json:"meeting"`
}

// respondResponse は招待応答のJSONレスポンス構造。
type respondResponse struct {
	// Result は応答処理後の件数。
	Result invitation.Result `json:"result"`
	// Widget は応答処理後のウィジェットの状態。
	Widget widget.Snapshot `json:"widget"`
}

// handleRespond は招待への応答をウィジェットに反映してから送信するハンドラ。
func (s *Server) handleRespond() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req respondRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		m, userID, ok := s.sessionFromContext(c)
		if !ok {
			return
		}

		ctx := httpclient.WithUserID(c.Request.Context(), userID)
		res := s.handlerFor(m).Respond(ctx, m, req.ID, req.Action, req.Recipient, req.Meeting)
		if _, err := s.store.markRespondedByPrefix(c.Request.Context(), userID, req.ID); err != nil {
			log.Printf("[Widget] 既読化エラー: %v", err)
		}
		s.record(c.Request.Context(), userID, req.ID, event.TypeInvitationResponded, event.InvitationRespondedData{
			Action:    req.Action,
			Recipient: req.Recipient,
			Meeting:   req.Meeting,
			Removed:   res.Removed,
			Remaining: res.Remaining,
		})

		c.JSON(http.StatusOK, respondResponse{Result: res, Widget: m.Snapshot()})
	}
}

// handleCreateInvitation は描画済みの招待通知を登録するハンドラ。
// 対象ユーザーのモデルが既に存在する場合はその末尾に追加する。
func (s *Server) handleCreateInvitation() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req invitationRecord
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		if err := s.store.create(c.Request.Context(), req); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "招待通知の登録に失敗しました"})
			log.Printf("[Widget] 招待通知登録エラー: %v", err)
			return
		}

		s.record(c.Request.Context(), req.UserID, req.ID, event.TypeInvitationStored, event.InvitationStoredData{Title: req.Title})

		s.mu.Lock()
		m, ok := s.sessions[req.UserID]
		s.mu.Unlock()
		if ok {
			// サーバー側で再描画したページと同じく、追加後の件数でバッジを表示する
			m.Add(req.elements()...)
			m.Update(func(v widget.View) { v.SetBadge(v.Remaining()) })
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":      req.ID,
			"message": "招待通知を登録しました",
		})
	}
}

// defaultEventLimit は操作履歴の既定の取得件数。
const defaultEventLimit = 50

// record は操作履歴を保存する。失敗してもリクエストは失敗させない。
func (s *Server) record(ctx context.Context, userID, invitationID string, eventType event.Type, data any) {
	ev, err := event.New(userID, invitationID, eventType, data)
	if err != nil {
		log.Printf("[Widget] イベント生成エラー: %v", err)
		return
	}
	if err := s.store.appendEvent(ctx, ev); err != nil {
		log.Printf("[Widget] イベント保存エラー: %v", err)
	}
}

// handleListEvents は認証済みユーザーの操作履歴を新しい順に返すハンドラ。
// クエリパラメータlimitで件数を指定できる（1〜200）。
func (s *Server) handleListEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		limit := defaultEventLimit
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 200 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limitは1〜200の整数で指定してください"})
				return
			}
			limit = n
		}

		events, err := s.store.listEvents(c.Request.Context(), userID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "操作履歴の取得に失敗しました"})
			log.Printf("[Widget] 操作履歴取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"events": events,
			"total":  len(events),
		})
	}
}

// devTokenRequest は開発用トークン発行リクエストのJSON構造。
type devTokenRequest struct {
	// Username はコントロールパネル上のユーザー名。
	Username string `json:"username" binding:"required"`
}

// handleDevToken は開発用セッションJWTを発行するハンドラを返す。
// ユーザーIDはユーザー名から決定的に導出する。
func (s *Server) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req devTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		userID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("invitation-panel:"+req.Username)).String()
		token, err := middleware.GenerateJWT(s.jwtSecret, userID, req.Username, 0)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			log.Printf("JWT生成エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":   token,
			"user_id": userID,
		})
	}
}
