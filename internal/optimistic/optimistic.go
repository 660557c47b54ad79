// Package optimistic は楽観的更新の共通手順を提供する。
//
// 手順は「直前の値を控える → 次の値を即座に反映 → バックエンドを呼ぶ →
// 失敗なら直前の値に戻す」。目的の状態に既になっていることを示すエラー
// （作成時の409、削除時の404）は成功として吸収し、必要なら権威値で上書きする。
package optimistic

import (
	"context"
	"errors"
	"sync"
)

// ErrInFlight は同じキーの更新が処理中であることを示す。
// この場合セルは変更されない。
var ErrInFlight = errors.New("同じ対象への更新が処理中です")

// Outcome は1回のRunの結果。
type Outcome string

const (
	// Committed はバックエンド呼び出しが成功した。
	Committed Outcome = "committed"
	// Absorbed は吸収対象のエラーを成功として扱った。
	Absorbed Outcome = "absorbed"
	// Reconciled は吸収後に権威値で上書きした。
	Reconciled Outcome = "reconciled"
	// RolledBack は失敗により直前の値に戻した。
	RolledBack Outcome = "rolled_back"
	// Rejected は処理中の更新があったため何もしなかった。
	Rejected Outcome = "rejected"
)

// Cell は楽観的更新の対象となる値。並行アクセスに安全。
type Cell[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewCell は初期値を持つCellを生成する。
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
}

// Update はfnの結果で値を置き換える。読み取りと書き込みの間に他の更新は入らない。
func (c *Cell[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = fn(c.value)
	return c.value
}

// Mutation は1回の楽観的更新の定義。
type Mutation[T any] struct {
	// Key は更新対象の識別子。同じKeyの更新は同時に1つだけ実行される。
	Key string
	// Kind はメトリクス・ログ用の種別（like, followなど）。
	Kind string
	// Next は直前の値から楽観的に反映する値を求める。
	Next func(prev T) T
	// Call はバックエンドを呼び出す。prevは反映前の値。
	Call func(ctx context.Context, prev T) error
	// Absorb がtrueを返すエラーは成功として扱う。nilなら吸収しない。
	Absorb func(prev T, err error) bool
	// Reconcile は吸収後に権威値を取得する。nilなら楽観値のまま。
	// 失敗した場合も楽観値のままにする。
	Reconcile func(ctx context.Context, optimistic T) (T, error)
}

// Recorder は結果を記録する。
type Recorder interface {
	RecordMutation(kind, outcome string)
}

// Controller は処理中のキーを管理する。
type Controller struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	recorder Recorder
}

// NewController はControllerを生成する。recorderはnilでもよい。
func NewController(recorder Recorder) *Controller {
	return &Controller{
		inFlight: make(map[string]struct{}),
		recorder: recorder,
	}
}

// InFlight はkeyの更新が処理中かどうかを返す。
func (c *Controller) InFlight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[key]
	return ok
}

func (c *Controller) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inFlight[key]; ok {
		return false
	}
	c.inFlight[key] = struct{}{}
	return true
}

func (c *Controller) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, key)
}

func (c *Controller) record(kind string, outcome Outcome) {
	if c.recorder != nil && kind != "" {
		c.recorder.RecordMutation(kind, string(outcome))
	}
}

// Run は楽観的更新を1回実行する。
//
// 終了時のセルの値は、Next(prev)、prev、または吸収後に再取得した権威値のいずれか。
// 吸収されなかったエラーはそのまま返し、セルはprevに戻る。
func Run[T any](ctx context.Context, c *Controller, cell *Cell[T], m Mutation[T]) (Outcome, error) {
	if !c.acquire(m.Key) {
		c.record(m.Kind, Rejected)
		return Rejected, ErrInFlight
	}
	defer c.release(m.Key)

	prev := cell.Get()
	optimistic := m.Next(prev)
	cell.Set(optimistic)

	err := m.Call(ctx, prev)
	if err == nil {
		c.record(m.Kind, Committed)
		return Committed, nil
	}

	if m.Absorb == nil || !m.Absorb(prev, err) {
		cell.Set(prev)
		c.record(m.Kind, RolledBack)
		return RolledBack, err
	}

	if m.Reconcile == nil {
		c.record(m.Kind, Absorbed)
		return Absorbed, nil
	}

	authoritative, rerr := m.Reconcile(ctx, optimistic)
	if rerr != nil {
		c.record(m.Kind, Absorbed)
		return Absorbed, nil
	}
	cell.Set(authoritative)
	c.record(m.Kind, Reconciled)
	return Reconciled, nil
}
