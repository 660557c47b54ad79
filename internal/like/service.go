// Package like は記事のいいね状態の読み込みと楽観的なトグルを提供する。
package like

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/hitoshi/blogclient/internal/model"
	"github.com/hitoshi/blogclient/internal/optimistic"
	"github.com/hitoshi/blogclient/internal/session"
)

// ErrLoginRequired は未ログインでトグルしようとした場合のエラー。
var ErrLoginRequired = errors.New("いいねするにはログインが必要です")

// State は1記事分のいいね表示状態。
type State struct {
	Count int64 `json:"likeCount"`
	Liked bool  `json:"liked"`
}

// Backend はいいねAPI。
type Backend interface {
	GetLikeInfo(ctx context.Context, postID int64) (*model.LikeInfo, error)
	AddLike(ctx context.Context, postID int64) (*model.LikeInfo, error)
	RemoveLike(ctx context.Context, postID int64) (*model.LikeInfo, error)
}

// SessionReader はセッション状態の読み取りと購読。
type SessionReader interface {
	Current() session.Snapshot
	Subscribe(fn func(session.Snapshot)) (unsubscribe func())
}

// Service は記事ごとのいいね状態を保持する。
type Service struct {
	backend    Backend
	controller *optimistic.Controller
	session    SessionReader
	logger     *slog.Logger

	mu    sync.Mutex
	cells map[int64]*optimistic.Cell[State]

	unsubscribe func()
}

// NewService はServiceを生成する。
// ログアウトやセッション失効を検知すると、保持中のいいね済みフラグをすべて下ろす。
func NewService(backend Backend, controller *optimistic.Controller, sess SessionReader, logger *slog.Logger) *Service {
	s := &Service{
		backend:    backend,
		controller: controller,
		session:    sess,
		logger:     logger,
		cells:      make(map[int64]*optimistic.Cell[State]),
	}
	s.unsubscribe = sess.Subscribe(func(snap session.Snapshot) {
		if !snap.IsAuthenticated() {
			s.clearLiked()
		}
	})
	return s
}

// Close はセッションの購読を解除する。
func (s *Service) Close() {
	s.unsubscribe()
}

// Load はいいね情報を取得して状態を置き換える。
// 取得に失敗した場合は記事のいいね数を使い、いいね済みはfalseとする。
// いいね済みフラグはログイン中の場合のみバックエンドの値を採用する。
func (s *Service) Load(ctx context.Context, postID, fallbackCount int64) State {
	st := State{Count: fallbackCount}

	info, err := s.backend.GetLikeInfo(ctx, postID)
	switch {
	case err == nil:
		st.Count = info.LikeCount
		if s.session.Current().IsAuthenticated() {
			st.Liked = info.CheckLike
		}
	case model.StatusOf(err) == http.StatusInternalServerError, model.IsCanceled(err):
		s.logger.Debug("いいね情報の取得に失敗したため記事の値を使用します",
			slog.Int64("post_id", postID),
			slog.String("error", err.Error()),
		)
	default:
		s.logger.Warn("いいね情報の取得に失敗したため記事の値を使用します",
			slog.Int64("post_id", postID),
			slog.Int("http_status", model.StatusOf(err)),
			slog.String("error", err.Error()),
		)
	}

	s.cell(postID, st).Set(st)
	return st
}

// Get は保持中の状態を返す。
func (s *Service) Get(postID int64) (State, bool) {
	s.mu.Lock()
	c, ok := s.cells[postID]
	s.mu.Unlock()
	if !ok {
		return State{}, false
	}
	return c.Get(), true
}

// Toggle はいいね状態を楽観的に反転する。
//
// いいね時の409と取り消し時の404は目的の状態に既になっているとみなして成功扱いにする。
// いいね時の409では最新のいいね情報を取得し直して上書きする。
// それ以外の失敗では元の状態に戻してエラーを返す。
func (s *Service) Toggle(ctx context.Context, postID int64) (State, error) {
	if !s.session.Current().IsAuthenticated() {
		return State{}, ErrLoginRequired
	}

	s.mu.Lock()
	cell, ok := s.cells[postID]
	s.mu.Unlock()
	if !ok {
		s.Load(ctx, postID, 0)
		cell = s.cell(postID, State{})
	}

	_, err := optimistic.Run(ctx, s.controller, cell, optimistic.Mutation[State]{
		Key:  "like:" + strconv.FormatInt(postID, 10),
		Kind: "like",
		Next: next,
		Call: func(ctx context.Context, prev State) error {
			if prev.Liked {
				_, err := s.backend.RemoveLike(ctx, postID)
				return err
			}
			_, err := s.backend.AddLike(ctx, postID)
			return err
		},
		Absorb: func(prev State, err error) bool {
			if prev.Liked {
				return model.IsNotFound(err)
			}
			return model.IsConflict(err)
		},
		Reconcile: func(ctx context.Context, applied State) (State, error) {
			if !applied.Liked {
				return applied, nil
			}
			info, err := s.backend.GetLikeInfo(ctx, postID)
			if err != nil {
				return applied, err
			}
			if info.LikeCount < 0 {
				return applied, nil
			}
			return State{Count: info.LikeCount, Liked: info.CheckLike}, nil
		},
	})
	if err != nil {
		if !errors.Is(err, optimistic.ErrInFlight) {
			s.logger.Error("いいねの処理に失敗しました",
				slog.Int64("post_id", postID),
				slog.Int("http_status", model.StatusOf(err)),
				slog.String("error", err.Error()),
			)
		}
		return cell.Get(), err
	}
	return cell.Get(), nil
}

// next は楽観的に反映する次の状態。いいね数は0未満にならない。
func next(prev State) State {
	if prev.Liked {
		return State{Count: max(0, prev.Count-1), Liked: false}
	}
	return State{Count: prev.Count + 1, Liked: true}
}

func (s *Service) cell(postID int64, initial State) *optimistic.Cell[State] {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[postID]
	if !ok {
		c = optimistic.NewCell(initial)
		s.cells[postID] = c
	}
	return c
}

func (s *Service) clearLiked() {
	s.mu.Lock()
	cells := make([]*optimistic.Cell[State], 0, len(s.cells))
	for _, c := range s.cells {
		cells = append(cells, c)
	}
	s.mu.Unlock()

	for _, c := range cells {
		c.Update(func(st State) State {
			st.Liked = false
			return st
		})
	}
}
