package panel

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nao1215/invitation/internal/widget"
	"github.com/nao1215/invitation/pkg/event"
	"github.com/nao1215/invitation/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// eventTimeLayout は操作履歴の作成日時の保存形式。文字列順が時刻順になるよう桁を固定する。
const eventTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// invitationRecord は描画済みの招待通知1件。
type invitationRecord struct {
	// ID は招待通知の識別子。
	ID string `json:"id" binding:"required"`
	// UserID は通知先のユーザーID。
	UserID string `json:"user_id" binding:"required"`
	// Title は通知のタイトル。
	Title string `json:"title" binding:"required"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// Recipient は応答時に送信する受信者。
	Recipient string `json:"recipient"`
	// Meeting は応答時に送信する会議。
	Meeting string `json:"meeting"`
}

// elements は招待通知1件をウィジェットの要素に変換する。
// 本体とボタン行の2要素で描画し、どちらのIDも招待IDを接頭辞に持つ。
func (r invitationRecord) elements() []widget.Element {
	text := r.Title
	if r.Message != "" {
		text += ": " + r.Message
	}
	return []widget.Element{
		{ID: r.ID, Classes: []string{widget.MarkerClass}, Text: text},
		{ID: r.ID + "-actions", Classes: []string{"actions"}, Text: r.Recipient + " / " + r.Meeting},
	}
}

// store は招待通知のSQLiteストア。
type store struct {
	db *sql.DB
}

// openStore はマイグレーションを適用してストアを生成する。
func openStore(db *sql.DB) (*store, error) {
	if err := migration.Run(db, migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	return &store{db: db}, nil
}

// create は招待通知を保存する。
func (s *store) create(ctx context.Context, r invitationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invitations (id, user_id, title, message, recipient, meeting) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Title, r.Message, r.Recipient, r.Meeting,
	)
	if err != nil {
		return fmt.Errorf("招待通知の保存に失敗: %w", err)
	}
	return nil
}

// listByUser はユーザーの未読の招待通知を作成順に返す。
func (s *store) listByUser(ctx context.Context, userID string) ([]invitationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, message, recipient, meeting FROM invitations
		WHERE user_id = ? AND read_at IS NULL ORDER BY created_at, rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("招待通知の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []invitationRecord
	for rows.Next() {
		var r invitationRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.Message, &r.Recipient, &r.Meeting); err != nil {
			return nil, fmt.Errorf("招待通知の読み込みに失敗: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// markRespondedByPrefix はIDがprefixで始まるユーザーの招待通知を既読にし、更新した件数を返す。
// ウィジェットから取り除いた要素と同じ範囲を対象にする。
func (s *store) markRespondedByPrefix(ctx context.Context, userID, prefix string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invitations SET read_at = datetime('now')
		WHERE user_id = ? AND read_at IS NULL AND substr(id, 1, length(?)) = ?`,
		userID, prefix, prefix,
	)
	if err != nil {
		return 0, fmt.Errorf("招待通知の既読化に失敗: %w", err)
	}
	return res.RowsAffected()
}

// markDismissed は招待通知1件を既読にする。
func (s *store) markDismissed(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE invitations SET read_at = datetime('now') WHERE user_id = ? AND id = ? AND read_at IS NULL`,
		userID, id,
	)
	if err != nil {
		return fmt.Errorf("招待通知の既読化に失敗: %w", err)
	}
	return nil
}

// appendEvent は操作履歴を1件追記する。
func (s *store) appendEvent(ctx context.Context, ev *event.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO widget_events (id, user_id, invitation_id, event_type, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.UserID, ev.InvitationID, string(ev.EventType), string(ev.Data), ev.CreatedAt.Format(eventTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("操作履歴の保存に失敗: %w", err)
	}
	return nil
}

// listEvents はユーザーの操作履歴を新しい順に最大limit件返す。
func (s *store) listEvents(ctx context.Context, userID string, limit int) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, invitation_id, event_type, data, created_at FROM widget_events
		WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("操作履歴の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []event.Event{}
	for rows.Next() {
		var (
			ev        event.Event
			eventType string
			data      string
			createdAt string
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.InvitationID, &eventType, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("操作履歴の読み込みに失敗: %w", err)
		}
		ev.EventType = event.Type(eventType)
		ev.Data = json.RawMessage(data)
		if ev.CreatedAt, err = time.Parse(eventTimeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("作成日時の解析に失敗: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
