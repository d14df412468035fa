package widget

import (
	"slices"
	"strconv"
	"strings"
	"sync"
)

const (
	// MarkerClass は通知アイテムが共通して持つCSSクラス。
	// 残り件数はこのクラスを持つ要素の数として数える。
	MarkerClass = "thumbnail"
	// EmptyMessage は表示できる招待が無くなったときに通知エリアへ表示する文言。
	EmptyMessage = "You have no available invitations"
)

// Element は描画される1つの要素を表す。
// 1つの招待が複数の兄弟要素として描画される場合、各要素のIDは招待のIDを接頭辞に持つ。
type Element struct {
	// ID は要素の識別子。
	ID string `json:"id"`
	// Classes は要素に付与されたCSSクラス。
	Classes []string `json:"classes"`
	// Text は要素の表示テキスト。
	Text string `json:"text"`
}

// HasClass は要素が指定されたCSSクラスを持つかを返す。
func (e Element) HasClass(class string) bool {
	return slices.Contains(e.Classes, class)
}

// View はModel.Updateの中でのみ有効な操作の集合。
// ロックはUpdate側で取得済みのため、各操作はロックを取らない。
type View interface {
	// RemoveByPrefix はIDがprefixで始まる要素をすべて取り除き、取り除いた数を返す。
	RemoveByPrefix(prefix string) int
	// Remaining はMarkerClassを持つ要素の数を返す。
	Remaining() int
	// SetBadge はバッジの表示テキストを設定する。
	SetBadge(n int)
	// SetAlert は通知エリアの内容を固定テキストに置き換える。
	SetAlert(text string)
}

// Model はウィジェットの表示状態。ゴルーチンセーフ。
type Model struct {
	mu sync.Mutex
	// elements は表示中の要素（描画順）。
	elements []Element
	// badge はバッジに表示されているテキスト。
	badge string
	// alert は通知エリアを置き換えた固定テキスト。空なら要素一覧を表示する。
	alert string
	// token はページが発行したCSRFトークン。
	token string
	// revision はバッジ更新が要求されるたびに増える番号。
	revision int64
}

// New は要素とCSRFトークンから新しいModelを生成する。
// バッジは初期状態の残り件数で表示する。
func New(token string, elements ...Element) *Model {
	m := &Model{
		elements: slices.Clone(elements),
		token:    token,
	}
	m.badge = strconv.Itoa(m.remaining())
	return m
}

// CSRFToken はページのCSRFトークンを返す。
func (m *Model) CSRFToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Update はfnをロックを保持したまま実行する。
// 1回の呼び出しの中では要素の削除が必ず件数の再計算より先に完了する。
func (m *Model) Update(fn func(v View)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(lockedView{m: m})
}

// Add は要素を末尾に追加する。サーバー側で描画された招待を取り込むために使用する。
// MarkerClassを持つ要素が含まれる場合は通知エリアの固定テキストを外し、一覧表示に戻す。
// バッジの表示はUpdateで再計算されるまで変更しない。
func (m *Model) Add(elements ...Element) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elements = append(m.elements, elements...)
	if slices.ContainsFunc(elements, func(e Element) bool { return e.HasClass(MarkerClass) }) {
		m.alert = ""
	}
}

// Touch はバッジの再描画要求を記録する。
func (m *Model) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revision++
}

// Snapshot はある時点のModelの状態。
type Snapshot struct {
	// Elements は表示中の要素。
	Elements []Element `json:"elements"`
	// Badge はバッジの表示テキスト。
	Badge string `json:"badge"`
	// Alert は通知エリアを置き換えた固定テキスト。
	Alert string `json:"alert,omitempty"`
	// Token はCSRFトークン。
	Token string `json:"csrf_token"`
	// Revision はバッジ更新要求の回数。
	Revision int64 `json:"revision"`
}

// Snapshot は現在の状態のコピーを返す。
func (m *Model) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	elements := make([]Element, 0, len(m.elements))
	for _, e := range m.elements {
		e.Classes = slices.Clone(e.Classes)
		elements = append(elements, e)
	}
	return Snapshot{
		Elements: elements,
		Badge:    m.badge,
		Alert:    m.alert,
		Token:    m.token,
		Revision: m.revision,
	}
}

// remaining はMarkerClassを持つ要素を数える。呼び出し側でロックを保持すること。
func (m *Model) remaining() int {
	n := 0
	for _, e := range m.elements {
		if e.HasClass(MarkerClass) {
			n++
		}
	}
	return n
}

// lockedView はロック取得済みのModelに対するView実装。
type lockedView struct {
	m *Model
}

func (v lockedView) RemoveByPrefix(prefix string) int {
	before := len(v.m.elements)
	v.m.elements = slices.DeleteFunc(v.m.elements, func(e Element) bool {
		return strings.HasPrefix(e.ID, prefix)
	})
	return before - len(v.m.elements)
}

func (v lockedView) Remaining() int {
	return v.m.remaining()
}

func (v lockedView) SetBadge(n int) {
	v.m.badge = strconv.Itoa(n)
}

func (v lockedView) SetAlert(text string) {
	v.m.alert = text
}
