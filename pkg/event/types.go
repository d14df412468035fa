// Package event はウィジェットで発生した操作の履歴レコードを定義する。
package event

import (
	"encoding/json"
	"time"
)

// Type は操作の種類を表す。
type Type string

const (
	// TypeInvitationStored は描画済みの招待通知が登録されたことを表す。
	TypeInvitationStored Type = "InvitationStored"
	// TypeInvitationResponded は利用者が招待に応答したことを表す。
	TypeInvitationResponded Type = "InvitationResponded"
	// TypeNotificationDismissed は利用者が通知を破棄したことを表す。
	TypeNotificationDismissed Type = "NotificationDismissed"
)

// Event はユーザーごとに追記される操作履歴の1件。
// コントロールパネルへの送信結果は記録しない。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// UserID は操作したユーザーのID。
	UserID string `json:"user_id"`
	// InvitationID は対象の招待通知のID。
	InvitationID string `json:"invitation_id"`
	// EventType は操作の種類。
	EventType Type `json:"event_type"`
	// Data は操作固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// InvitationStoredData はInvitationStoredイベントのデータ。
type InvitationStoredData struct {
	// Title は通知のタイトル。
	Title string `json:"title"`
}

// InvitationRespondedData はInvitationRespondedイベントのデータ。
type InvitationRespondedData struct {
	// Action は承諾・拒否の区分。
	Action string `json:"action"`
	// Recipient は受信者。
	Recipient string `json:"recipient"`
	// Meeting は会議。
	Meeting string `json:"meeting"`
	// Removed は表示から取り除いた要素数。
	Removed int `json:"removed"`
	// Remaining は応答後に残った招待の件数。
	Remaining int `json:"remaining"`
}

// NotificationDismissedData はNotificationDismissedイベントのデータ。
type NotificationDismissedData struct{}
