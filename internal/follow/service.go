package follow

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/hitoshi/blogclient/internal/model"
	"github.com/hitoshi/blogclient/internal/optimistic"
	"github.com/hitoshi/blogclient/internal/session"
)

var (
	// ErrLoginRequired は未ログインでフォロー操作をした場合のエラー。
	ErrLoginRequired = errors.New("フォローするにはログインが必要です")
	// ErrSelfFollow は自分自身をフォローしようとした場合のエラー。
	ErrSelfFollow = errors.New("自分自身はフォローできません")
)

// Status は閲覧者から見た対象ユーザーとの関係。
type Status int

const (
	StatusUnknown Status = iota
	StatusNotFollowing
	StatusFollowing
)

func (s Status) String() string {
	switch s {
	case StatusFollowing:
		return "following"
	case StatusNotFollowing:
		return "not_following"
	default:
		return "unknown"
	}
}

// Known は状態が判明しているかどうか。
func (s Status) Known() bool {
	return s != StatusUnknown
}

// Following はフォロー中かどうか。
func (s Status) Following() bool {
	return s == StatusFollowing
}

func statusOf(following bool) Status {
	if following {
		return StatusFollowing
	}
	return StatusNotFollowing
}

// SessionReader はセッション状態の読み取りと購読。
type SessionReader interface {
	Current() session.Snapshot
	Subscribe(fn func(session.Snapshot)) (unsubscribe func())
}

// ChangeFunc はフォローの追加・解除が確定したときに呼ばれる。
// プロフィール画面のフォロワー数の調整などに使う。
type ChangeFunc func(targetID int64, following bool)

// Options はServiceの生成オプション。
type Options struct {
	Backend          Backend
	Resolver         *Resolver
	Controller       *optimistic.Controller
	Session          SessionReader
	PageSize         int
	ProbeConcurrency int
	OnChange         ChangeFunc
	Logger           *slog.Logger
}

// Service は対象ユーザーごとのフォロー状態を保持する。
type Service struct {
	backend          Backend
	resolver         *Resolver
	controller       *optimistic.Controller
	session          SessionReader
	pageSize         int
	probeConcurrency int
	onChange         ChangeFunc
	logger           *slog.Logger

	mu    sync.Mutex
	cells map[int64]*optimistic.Cell[Status]

	unsubscribe func()
}

// NewService はServiceを生成する。
// セッションが終了すると保持中の状態はすべてStatusUnknownに戻る。
func NewService(opts Options) *Service {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	concurrency := opts.ProbeConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		backend:          opts.Backend,
		resolver:         opts.Resolver,
		controller:       opts.Controller,
		session:          opts.Session,
		pageSize:         pageSize,
		probeConcurrency: concurrency,
		onChange:         opts.OnChange,
		logger:           logger,
		cells:            make(map[int64]*optimistic.Cell[Status]),
	}
	s.unsubscribe = opts.Session.Subscribe(func(snap session.Snapshot) {
		if !snap.IsAuthenticated() {
			s.forget()
		}
	})
	return s
}

// Close はセッションの購読を解除する。
func (s *Service) Close() {
	s.unsubscribe()
}

// Get は保持中の状態を返す。
func (s *Service) Get(targetID int64) Status {
	s.mu.Lock()
	c, ok := s.cells[targetID]
	s.mu.Unlock()
	if !ok {
		return StatusUnknown
	}
	return c.Get()
}

// Check はフォロー状態を推定して保持する。
// 未ログインまたは自分自身の場合は推定せずStatusNotFollowingを返す。
func (s *Service) Check(ctx context.Context, targetID int64) Status {
	snap := s.session.Current()
	if !snap.IsAuthenticated() || snap.UserID() == targetID {
		return StatusNotFollowing
	}
	return s.probe(ctx, targetID)
}

// probe は推定結果をセルに反映する。
// 同じ対象のトグルが処理中ならその楽観値を優先し、推定結果では上書きしない。
func (s *Service) probe(ctx context.Context, targetID int64) Status {
	key := mutationKey(targetID)
	following := s.resolver.probeThen(ctx, targetID, func(following bool) {
		if !s.controller.InFlight(key) {
			s.cell(targetID).Set(statusOf(following))
		}
	})
	return statusOf(following)
}

func mutationKey(targetID int64) string {
	return "follow:" + strconv.FormatInt(targetID, 10)
}

// Toggle はフォロー状態を楽観的に反転する。
//
// フォロー時の409とフォロー解除時の404は目的の状態に既になっているとして成功扱いにする。
// それ以外の失敗では元の状態に戻してエラーを返す。
// 状態が不明な場合は先に推定する。
func (s *Service) Toggle(ctx context.Context, targetID int64) (Status, error) {
	snap := s.session.Current()
	if !snap.IsAuthenticated() {
		return StatusUnknown, ErrLoginRequired
	}
	if snap.UserID() == targetID {
		return StatusUnknown, ErrSelfFollow
	}

	cell := s.cell(targetID)
	if !cell.Get().Known() {
		s.Check(ctx, targetID)
	}

	outcome, err := optimistic.Run(ctx, s.controller, cell, optimistic.Mutation[Status]{
		Key:  mutationKey(targetID),
		Kind: "follow",
		Next: func(prev Status) Status {
			return statusOf(!prev.Following())
		},
		Call: func(ctx context.Context, prev Status) error {
			unlock := s.resolver.lock(targetID)
			defer unlock()
			if prev.Following() {
				_, err := s.backend.Unfollow(ctx, targetID)
				return err
			}
			_, err := s.backend.Follow(ctx, targetID)
			return err
		},
		Absorb: func(prev Status, err error) bool {
			if prev.Following() {
				return model.IsNotFound(err)
			}
			return model.IsConflict(err)
		},
	})
	if err != nil {
		if !errors.Is(err, optimistic.ErrInFlight) {
			s.logger.Error("フォローの処理に失敗しました",
				slog.Int64("target_id", targetID),
				slog.Int("http_status", model.StatusOf(err)),
				slog.String("error", err.Error()),
			)
		}
		return cell.Get(), err
	}

	st := cell.Get()
	if outcome == optimistic.Committed && s.onChange != nil {
		s.onChange(targetID, st.Following())
	}
	return st, nil
}

func (s *Service) cell(targetID int64) *optimistic.Cell[Status] {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[targetID]
	if !ok {
		c = optimistic.NewCell(StatusUnknown)
		s.cells[targetID] = c
	}
	return c
}

func (s *Service) forget() {
	s.mu.Lock()
	cells := make([]*optimistic.Cell[Status], 0, len(s.cells))
	for _, c := range s.cells {
		cells = append(cells, c)
	}
	s.mu.Unlock()

	for _, c := range cells {
		c.Set(StatusUnknown)
	}
}
