package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"

	"github.com/hitoshi/blogclient/internal/detail"
	"github.com/hitoshi/blogclient/internal/follow"
	"github.com/hitoshi/blogclient/internal/like"
	"github.com/hitoshi/blogclient/internal/model"
	"github.com/hitoshi/blogclient/internal/session"
)

// --- モック ---

type mockSession struct {
	snap      session.Snapshot
	loginFn   func(ctx context.Context, email, password string) (*model.UserDetail, error)
	signupFn  func(ctx context.Context, in model.SignupRequest) error
	logoutFn  func(ctx context.Context)
	refreshFn func(ctx context.Context) (*model.UserDetail, error)
}

func (m *mockSession) Current() session.Snapshot { return m.snap }

func (m *mockSession) Login(ctx context.Context, email, password string) (*model.UserDetail, error) {
	profile, err := m.loginFn(ctx, email, password)
	if err == nil {
		m.snap = authedSnapshot(profile)
	}
	return profile, err
}

func (m *mockSession) Signup(ctx context.Context, in model.SignupRequest) error {
	return m.signupFn(ctx, in)
}

func (m *mockSession) Logout(ctx context.Context) {
	if m.logoutFn != nil {
		m.logoutFn(ctx)
	}
	m.snap = session.Snapshot{State: session.Anonymous}
}

func (m *mockSession) Refresh(ctx context.Context) (*model.UserDetail, error) {
	return m.refreshFn(ctx)
}

func authedSnapshot(profile *model.UserDetail) session.Snapshot {
	id := profile.Identity()
	return session.Snapshot{State: session.Authenticated, Identity: &id, Profile: profile}
}

func loggedIn(userID int64) *mockSession {
	return &mockSession{snap: authedSnapshot(&model.UserDetail{ID: userID, Email: "me@example.com", Nickname: "me"})}
}

func anonymous() *mockSession {
	return &mockSession{snap: session.Snapshot{State: session.Anonymous}}
}

type mockPosts struct {
	listPostsFn func(ctx context.Context, params url.Values) (*model.Page[model.PostSummary], error)
	getPostFn   func(ctx context.Context, postID int64) (*model.Post, error)
}

func (m *mockPosts) ListPosts(ctx context.Context, params url.Values) (*model.Page[model.PostSummary], error) {
	return m.listPostsFn(ctx, params)
}

func (m *mockPosts) GetPost(ctx context.Context, postID int64) (*model.Post, error) {
	return m.getPostFn(ctx, postID)
}

type mockDetail struct {
	readFn func(ctx context.Context, postID int64) (detail.View, error)
}

func (m *mockDetail) Read(ctx context.Context, postID int64) (detail.View, error) {
	return m.readFn(ctx, postID)
}

type mockLikes struct {
	toggleFn func(ctx context.Context, postID int64) (like.State, error)
	loadFn   func(ctx context.Context, postID, fallbackCount int64) like.State
}

func (m *mockLikes) Toggle(ctx context.Context, postID int64) (like.State, error) {
	return m.toggleFn(ctx, postID)
}

func (m *mockLikes) Load(ctx context.Context, postID, fallbackCount int64) like.State {
	if m.loadFn == nil {
		return like.State{Count: fallbackCount}
	}
	return m.loadFn(ctx, postID, fallbackCount)
}

type mockFollows struct {
	checkFn  func(ctx context.Context, targetID int64) follow.Status
	toggleFn func(ctx context.Context, targetID int64) (follow.Status, error)
}

func (m *mockFollows) Check(ctx context.Context, targetID int64) follow.Status {
	return m.checkFn(ctx, targetID)
}

func (m *mockFollows) Toggle(ctx context.Context, targetID int64) (follow.Status, error) {
	return m.toggleFn(ctx, targetID)
}

type mockDirectory struct {
	countsFn     func(ctx context.Context, userID int64) (model.FollowCounts, error)
	followersFn  func(ctx context.Context, userID int64, page int) (*model.Page[model.FollowEntry], error)
	followingsFn func(ctx context.Context, userID int64, page int) (*model.Page[model.FollowEntry], error)
}

func (m *mockDirectory) Counts(ctx context.Context, userID int64) (model.FollowCounts, error) {
	return m.countsFn(ctx, userID)
}

func (m *mockDirectory) Followers(ctx context.Context, userID int64, page int) (*model.Page[model.FollowEntry], error) {
	return m.followersFn(ctx, userID, page)
}

func (m *mockDirectory) Followings(ctx context.Context, userID int64, page int) (*model.Page[model.FollowEntry], error) {
	return m.followingsFn(ctx, userID, page)
}

type mockHealth struct {
	err error
}

func (m *mockHealth) PingContext(ctx context.Context) error { return m.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}
