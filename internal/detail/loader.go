// Package detail は記事詳細の取得を管理する。
//
// Loaderは1つの画面に相当し、同時に表示できる記事は1つだけ。別の記事を開くと
// 取得中のリクエストはキャンセルされる。ただしサーバーから応答が返った後の
// リクエストは閲覧数が既に加算されているためキャンセルしない。
// 追い越されたリクエストの結果は状態に反映しない。
//
// 複数の利用者から同時に呼ばれるサーバーでは、状態を持たないReaderを使う。
package detail

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hitoshi/blogclient/internal/like"
	"github.com/hitoshi/blogclient/internal/model"
)

// ErrSuperseded は後から開かれた記事によって結果が破棄されたことを示す。
var ErrSuperseded = errors.New("別の記事の表示により取得が中断されました")

// PostFetcher は記事詳細API。
type PostFetcher interface {
	GetPost(ctx context.Context, postID int64) (*model.Post, error)
}

// LikeLoader はいいね情報の読み込み。
type LikeLoader interface {
	Load(ctx context.Context, postID, fallbackCount int64) like.State
}

// View は記事詳細といいね状態。
type View struct {
	Post *model.Post `json:"post"`
	Like like.State  `json:"like"`
}

type request struct {
	postID    int64
	cancel    context.CancelFunc
	committed bool
}

// Loader は表示中の記事を1つ保持する。
// いいね状態はLikeLoader側が保持し、セッション終了時の消去もそちらで行う。
type Loader struct {
	posts  PostFetcher
	likes  LikeLoader
	logger *slog.Logger

	mu         sync.Mutex
	generation uint64
	inflight   *request
	post       *model.Post
}

// NewLoader はLoaderを生成する。
func NewLoader(posts PostFetcher, likes LikeLoader, logger *slog.Logger) *Loader {
	return &Loader{
		posts:  posts,
		likes:  likes,
		logger: logger,
	}
}

// Open は記事を取得して表示中の記事にする。
//
// 直前に表示していた記事と同じ記事を開き直した場合は、応答を待たずに閲覧数を1加算しておく。
// 取得後にいいね情報を読み込む。途中で別の記事が開かれた場合はErrSupersededを返し、
// 状態は変更しない。
func (l *Loader) Open(ctx context.Context, postID int64) (View, error) {
	l.mu.Lock()
	l.cancelInflightLocked()
	l.generation++
	gen := l.generation
	rctx, cancel := context.WithCancel(ctx)
	req := &request{postID: postID, cancel: cancel}
	l.inflight = req
	if l.post != nil && l.post.PostID == postID {
		bumped := *l.post
		views := bumped.ViewCountOrZero() + 1
		bumped.ViewCount = &views
		l.post = &bumped
	}
	l.mu.Unlock()
	defer cancel()

	post, err := l.posts.GetPost(rctx, postID)

	l.mu.Lock()
	if err == nil {
		req.committed = true
	}
	if l.generation != gen {
		l.mu.Unlock()
		return View{}, ErrSuperseded
	}
	if err != nil {
		l.inflight = nil
		canceled := model.IsCanceled(err)
		if !canceled {
			l.post = nil
		}
		l.mu.Unlock()
		if !canceled {
			l.logger.Error("記事の取得に失敗しました",
				slog.Int64("post_id", postID),
				slog.Int("http_status", model.StatusOf(err)),
				slog.String("error", err.Error()),
			)
		}
		return View{}, err
	}
	l.post = post
	l.mu.Unlock()

	st := l.likes.Load(rctx, postID, post.LikeCountOrZero())

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.generation != gen {
		return View{}, ErrSuperseded
	}
	l.inflight = nil
	p := *l.post
	return View{Post: &p, Like: st}, nil
}

// Close は表示を終える。応答前のリクエストはキャンセルする。
// 表示していた記事は保持し、同じ記事を開き直したときの閲覧数加算に使う。
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelInflightLocked()
	l.generation++
	l.inflight = nil
}

func (l *Loader) cancelInflightLocked() {
	if l.inflight != nil && !l.inflight.committed {
		l.inflight.cancel()
	}
}
