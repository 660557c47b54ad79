// Package session はプロセス全体で共有するログイン状態を管理する。
//
// 状態は Unknown から始まり、Restore・Login・Logout・Refresh と
// セッション失効通知によって Anonymous または Authenticated に遷移する。
// 購読者への通知はロックの外で、遷移の順に行う。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/blogclient/internal/credential"
	"github.com/hitoshi/blogclient/internal/event"
	"github.com/hitoshi/blogclient/internal/metrics"
	"github.com/hitoshi/blogclient/internal/model"
)

// ErrNotAuthenticated はログインしていない状態でRefreshを呼んだ場合のエラー。
var ErrNotAuthenticated = errors.New("ログインしていません")

// ErrSuperseded は取得中にログアウトや失効などの遷移が起き、結果を破棄した場合のエラー。
var ErrSuperseded = errors.New("取得中にセッションが切り替わりました")

// DefaultRestoreTimeout はプロフィール再取得の既定の待ち時間。
const DefaultRestoreTimeout = 5 * time.Second

// State はセッションの状態。
type State int

const (
	Unknown State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot はある時点のセッション状態のコピー。
// Profileが非nilならIdentityも非nil。
type Snapshot struct {
	State    State
	Identity *model.Identity
	Profile  *model.UserDetail
}

// IsAuthenticated はログイン中かどうかを返す。
func (s Snapshot) IsAuthenticated() bool {
	return s.State == Authenticated
}

// UserID はログイン中ユーザーのIDを返す。未ログインなら0。
func (s Snapshot) UserID() int64 {
	if s.Identity == nil {
		return 0
	}
	return s.Identity.UserID
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{State: s.State}
	if s.Identity != nil {
		id := *s.Identity
		out.Identity = &id
	}
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	return out
}

// Backend はセッション管理に必要なAPI。
type Backend interface {
	Login(ctx context.Context, email, password string) (*model.UserDetail, error)
	Signup(ctx context.Context, in model.SignupRequest) (*model.UserDetail, error)
	Logout(ctx context.Context) error
	GetUser(ctx context.Context, userID int64) (*model.UserDetail, error)
}

// CredentialStore は永続化されたログイン情報。
type CredentialStore interface {
	Load(ctx context.Context) (*credential.Record, error)
	Save(ctx context.Context, rec credential.Record) error
	Clear(ctx context.Context) error
}

// Subscriber はセッション失効通知の購読元。
type Subscriber interface {
	Subscribe(topic event.Topic, h event.Handler) (unsubscribe func())
}

// Options はStoreの生成オプション。
type Options struct {
	Backend        Backend
	Credentials    CredentialStore
	Bus            Subscriber
	RestoreTimeout time.Duration
	Metrics        metrics.MetricsCollector
	Logger         *slog.Logger
}

// Store はセッション状態を保持する。
// 公開された可変フィールドは持たず、読み取りはCurrent、変更の監視はSubscribeで行う。
type Store struct {
	backend        Backend
	credentials    CredentialStore
	restoreTimeout time.Duration
	metrics        metrics.MetricsCollector
	logger         *slog.Logger

	mu         sync.Mutex
	snap       Snapshot
	generation uint64
	observers  map[uint64]func(Snapshot)
	nextID     uint64

	// commitMu は保存済みレコードの更新と状態遷移を一体にする。
	// 世代の確認から遷移までをこのロックの中で行う。
	commitMu sync.Mutex
	// notifyMu は通知を遷移順に直列化する。
	// 購読者のコールバック内から状態を遷移させてはならない。
	notifyMu sync.Mutex

	unsubscribeBus func()
}

// NewStore はStoreを生成し、Busが指定されていればセッション失効通知を購読する。
func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RestoreTimeout
	if timeout <= 0 {
		timeout = DefaultRestoreTimeout
	}

	s := &Store{
		backend:        opts.Backend,
		credentials:    opts.Credentials,
		restoreTimeout: timeout,
		metrics:        metrics.OrNop(opts.Metrics),
		logger:         logger,
		snap:           Snapshot{State: Unknown},
		observers:      make(map[uint64]func(Snapshot)),
	}
	if opts.Bus != nil {
		s.unsubscribeBus = opts.Bus.Subscribe(event.SessionExpired, s.onExpired)
	}
	return s
}

// Close はセッション失効通知の購読を解除する。
func (s *Store) Close() {
	if s.unsubscribeBus != nil {
		s.unsubscribeBus()
	}
}

// Current は現在の状態のコピーを返す。
func (s *Store) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// Subscribe は状態遷移ごとに呼ばれる関数を登録し、解除用の関数を返す。
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// Restore は保存済みログイン情報からセッションを復元する。
//
// 保存がなければAnonymous。あればプロフィールをサーバーから取得し直し、
// 成功すればAuthenticated。401/403なら保存を削除してAnonymous。
// それ以外の失敗（タイムアウトを含む）はAnonymousにするが保存は残し、エラーを返す。
// 保存内容だけを根拠にAuthenticatedにすることはない。
func (s *Store) Restore(ctx context.Context) error {
	gen := s.currentGeneration()

	rec, err := s.credentials.Load(ctx)
	if err != nil {
		s.logger.Error("保存済みログイン情報の読み込みに失敗しました",
			slog.String("error", err.Error()),
		)
		s.commitIf(gen, anonymous(), nil)
		return fmt.Errorf("保存済みログイン情報の読み込みに失敗しました: %w", err)
	}
	if rec == nil {
		s.commitIf(gen, anonymous(), nil)
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, s.restoreTimeout)
	defer cancel()

	profile, err := s.backend.GetUser(rctx, rec.Identity.UserID)
	if err != nil {
		if model.IsAuthRejected(err) {
			s.logger.Info("保存済みセッションが無効なため破棄します",
				slog.Int64("user_id", rec.Identity.UserID),
				slog.Int("http_status", model.StatusOf(err)),
			)
			// 復元中に新しいログインがあれば、その保存内容は消さない
			s.commitIf(gen, anonymous(), func() { s.clearCredentials(ctx) })
			return nil
		}
		s.logger.Warn("セッションの復元に失敗しました",
			slog.Int64("user_id", rec.Identity.UserID),
			slog.String("error", err.Error()),
		)
		s.commitIf(gen, anonymous(), nil)
		return err
	}

	// 復元中にログアウトや失効があれば、古いプロフィールを書き戻さない
	s.commitIf(gen, authenticated(profile), func() { s.persist(ctx, profile) })
	return nil
}

// Login はログインし、成功すればプロフィールを保存してAuthenticatedにする。
// 失敗時は状態を変えずにエラーを返す。
func (s *Store) Login(ctx context.Context, email, password string) (*model.UserDetail, error) {
	profile, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s.commit(authenticated(profile), func() { s.persist(ctx, profile) })
	s.logger.Info("ログインしました", slog.Int64("user_id", profile.ID))

	p := *profile
	return &p, nil
}

// Signup は新規登録する。セッション状態は変えない。
func (s *Store) Signup(ctx context.Context, in model.SignupRequest) error {
	_, err := s.backend.Signup(ctx, in)
	return err
}

// Logout はバックエンドの結果に関わらずAnonymousにし、保存を削除する。
// 401は既にログアウト済みとして扱い、それ以外の失敗はログに残す。
func (s *Store) Logout(ctx context.Context) {
	if err := s.backend.Logout(ctx); err != nil && !model.IsUnauthorized(err) {
		s.logger.Warn("ログアウトAPIの呼び出しに失敗しました",
			slog.Int("http_status", model.StatusOf(err)),
			slog.String("error", err.Error()),
		)
	}
	s.commit(anonymous(), func() { s.clearCredentials(ctx) })
}

// Refresh はプロフィールを取得し直す。
// 401/403ならAnonymousにする。その他の失敗ではプロフィールを変えずにエラーを返す。
func (s *Store) Refresh(ctx context.Context) (*model.UserDetail, error) {
	snap := s.Current()
	if !snap.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	gen := s.currentGeneration()

	profile, err := s.backend.GetUser(ctx, snap.UserID())
	if err != nil {
		if model.IsAuthRejected(err) {
			s.commitIf(gen, anonymous(), func() { s.clearCredentials(ctx) })
		}
		return nil, err
	}

	if !s.commitIf(gen, authenticated(profile), func() { s.persist(ctx, profile) }) {
		return nil, ErrSuperseded
	}
	p := *profile
	return &p, nil
}

// onExpired はセッション失効通知を受けて即座にAnonymousにする。通信は行わない。
// 通知の直前に書き戻された保存内容が残らないよう、レコードもここで削除する。
func (s *Store) onExpired(event.Topic) {
	s.logger.Info("セッション失効を検知しました")
	s.commit(anonymous(), func() { s.clearCredentials(context.Background()) })
}

func (s *Store) persist(ctx context.Context, profile *model.UserDetail) {
	rec := credential.Record{Identity: profile.Identity(), Profile: *profile}
	if err := s.credentials.Save(ctx, rec); err != nil {
		s.logger.Error("ログイン情報の保存に失敗しました",
			slog.Int64("user_id", profile.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Store) clearCredentials(ctx context.Context) {
	if err := s.credentials.Clear(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("保存済みログイン情報の削除に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

func (s *Store) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// commit はwriteでレコードを更新してから無条件に遷移する。
func (s *Store) commit(next Snapshot, write func()) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	if write != nil {
		write()
	}
	s.transition(next)
}

// commitIf はgenの取得以降に他の遷移が起きていない場合のみ、レコードの更新と遷移を行う。
// 遷移した場合はtrueを返す。
func (s *Store) commitIf(gen uint64, next Snapshot, write func()) bool {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	if s.currentGeneration() != gen {
		return false
	}
	if write != nil {
		write()
	}
	s.transition(next)
	return true
}

// transition は状態を差し替えて購読者に通知する。commitMuを保持して呼ぶ。
func (s *Store) transition(next Snapshot) {
	s.mu.Lock()
	if next.State == Anonymous && s.snap.State == Anonymous {
		s.mu.Unlock()
		return
	}
	s.generation++
	s.snap = next
	observers := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.metrics.RecordSessionTransition(next.State.String())
	for _, fn := range observers {
		fn(next.clone())
	}
}

func anonymous() Snapshot {
	return Snapshot{State: Anonymous}
}

func authenticated(profile *model.UserDetail) Snapshot {
	id := profile.Identity()
	p := *profile
	return Snapshot{State: Authenticated, Identity: &id, Profile: &p}
}
