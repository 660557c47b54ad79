// Package follow はフォロー関係の推定・トグル・一覧表示を提供する。
//
// バックエンドにはフォロー状態を問い合わせるAPIがないため、実際にフォローを
// 試みて結果から状態を推定する。フォローに成功した場合は直ちに解除して元に戻す。
package follow

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/blogclient/internal/metrics"
	"github.com/hitoshi/blogclient/internal/model"
)

// Backend はフォロー関連API。
type Backend interface {
	Follow(ctx context.Context, userID int64) (*model.FollowResult, error)
	Unfollow(ctx context.Context, userID int64) (*model.FollowResult, error)
	ListFollowers(ctx context.Context, userID int64, page, size int) (*model.Page[model.FollowEntry], error)
	ListFollowings(ctx context.Context, userID int64, page, size int) (*model.Page[model.FollowEntry], error)
}

// Resolver はフォロー状態を推定する。
// 同じ対象への推定が同時に要求された場合は1回だけ実行し、結果を共有する。
//
// 推定のフォローと解除の間に利用者のフォローが割り込むと、解除で本物のフォローを
// 消してしまう。そのため対象ごとのロックで推定とフォロー操作を直列化する。
type Resolver struct {
	backend Backend
	group   singleflight.Group
	metrics metrics.MetricsCollector
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[int64]*targetLock
}

type targetLock struct {
	mu   sync.Mutex
	refs int
}

// NewResolver はResolverを生成する。
func NewResolver(backend Backend, m metrics.MetricsCollector, logger *slog.Logger) *Resolver {
	return &Resolver{
		backend: backend,
		metrics: metrics.OrNop(m),
		logger:  logger,
		locks:   make(map[int64]*targetLock),
	}
}

// lock は対象ユーザーのロックを取得し、解放用の関数を返す。
func (r *Resolver) lock(targetID int64) (unlock func()) {
	r.mu.Lock()
	l, ok := r.locks[targetID]
	if !ok {
		l = &targetLock{}
		r.locks[targetID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, targetID)
		}
		r.mu.Unlock()
	}
}

// Probe はtargetIDをフォロー中かどうかを推定する。
//
// フォローに成功した場合はフォローしていなかったと判断し、解除してfalseを返す。
// 解除の失敗は無視する。409ならフォロー中としてtrueを返す。
// それ以外のエラーはフォローしていないものとしてfalseを返す。
func (r *Resolver) Probe(ctx context.Context, targetID int64) bool {
	return r.probeThen(ctx, targetID, nil)
}

// probeThen は推定し、結果をapplyに渡す。applyは対象のロックを保持したまま
// 1回の推定につき1度だけ呼ばれる。
func (r *Resolver) probeThen(ctx context.Context, targetID int64, apply func(following bool)) bool {
	v, _, _ := r.group.Do(strconv.FormatInt(targetID, 10), func() (any, error) {
		unlock := r.lock(targetID)
		defer unlock()
		following := r.probe(ctx, targetID)
		if apply != nil {
			apply(following)
		}
		return following, nil
	})
	return v.(bool)
}

func (r *Resolver) probe(ctx context.Context, targetID int64) bool {
	_, err := r.backend.Follow(ctx, targetID)
	if err == nil {
		// 推定のために付けたフォローは呼び出し元がキャンセルしても外す
		if _, uerr := r.backend.Unfollow(context.WithoutCancel(ctx), targetID); uerr != nil {
			r.logger.Warn("推定用フォローの解除に失敗しました",
				slog.Int64("target_id", targetID),
				slog.String("error", uerr.Error()),
			)
		}
		r.metrics.RecordFollowProbe("not_following")
		return false
	}
	if model.IsConflict(err) {
		r.metrics.RecordFollowProbe("following")
		return true
	}
	r.logger.Debug("フォロー状態の推定に失敗しました",
		slog.Int64("target_id", targetID),
		slog.Int("http_status", model.StatusOf(err)),
	)
	r.metrics.RecordFollowProbe("error")
	return false
}
