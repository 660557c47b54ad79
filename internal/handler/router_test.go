package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/blogclient/internal/detail"
	"github.com/hitoshi/blogclient/internal/follow"
	"github.com/hitoshi/blogclient/internal/like"
	"github.com/hitoshi/blogclient/internal/metrics"
	"github.com/hitoshi/blogclient/internal/middleware"
	"github.com/hitoshi/blogclient/internal/model"
	"github.com/hitoshi/blogclient/internal/optimistic"
	"github.com/hitoshi/blogclient/internal/session"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestDeps(sess *mockSession) *RouterDeps {
	return &RouterDeps{
		Logger:            testLogger(),
		CORSAllowedOrigin: "http://localhost:3000",
		HealthChecker:     &mockHealth{},
		Session:           sess,
		Posts:             &mockPosts{},
		Detail:            &mockDetail{},
		Likes:             &mockLikes{},
		Follows:           &mockFollows{},
		Directory:         &mockDirectory{},
	}
}

func serve(t *testing.T, deps *RouterDeps, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

// --- 運用エンドポイント ---

func TestHealth(t *testing.T) {
	deps := newTestDeps(anonymous())
	if w := serve(t, deps, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	deps.HealthChecker = &mockHealth{err: errors.New("database is locked")}
	if w := serve(t, deps, http.MethodGet, "/health", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg).RecordSessionTransition("authenticated")

	deps := newTestDeps(anonymous())
	deps.Gatherer = reg
	w := serve(t, deps, http.MethodGet, "/metrics", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "blogclient_session_transitions_total") {
		t.Error("expected session transition metric in output")
	}
}

// --- セッション ---

func TestSession_Current(t *testing.T) {
	w := serve(t, newTestDeps(anonymous()), http.MethodGet, "/api/session", "")
	resp := decode[sessionResponse](t, w)
	if resp.State != "anonymous" || resp.User != nil {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSession_Login(t *testing.T) {
	sess := anonymous()
	sess.loginFn = func(ctx context.Context, email, password string) (*model.UserDetail, error) {
		if email != "me@example.com" || password != "pw" {
			t.Errorf("login args = %q, %q", email, password)
		}
		return &model.UserDetail{ID: 5, Email: email, Nickname: "me"}, nil
	}

	w := serve(t, newTestDeps(sess), http.MethodPost, "/api/session/login", `{"email":" me@example.com ","password":"pw"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[sessionResponse](t, w)
	if resp.State != "authenticated" || resp.User == nil || resp.User.ID != 5 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSession_Login_BackendRejects(t *testing.T) {
	sess := anonymous()
	sess.loginFn = func(ctx context.Context, email, password string) (*model.UserDetail, error) {
		return nil, &model.APIError{Status: 401, Message: "メールアドレスまたはパスワードが違います"}
	}

	w := serve(t, newTestDeps(sess), http.MethodPost, "/api/session/login", `{"email":"a@b.c","password":"x"}`)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	body := decode[middleware.ErrorResponseBody](t, w)
	if body.Message != "メールアドレスまたはパスワードが違います" {
		t.Errorf("message = %q", body.Message)
	}
}

func TestSession_Login_InvalidBody(t *testing.T) {
	tests := []string{`not json`, `{"email":"","password":"x"}`, `{"email":"a@b.c"}`}
	for _, body := range tests {
		w := serve(t, newTestDeps(anonymous()), http.MethodPost, "/api/session/login", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestSession_Signup(t *testing.T) {
	sess := anonymous()
	var got model.SignupRequest
	sess.signupFn = func(ctx context.Context, in model.SignupRequest) error {
		got = in
		return nil
	}

	w := serve(t, newTestDeps(sess), http.MethodPost, "/api/session/signup",
		`{"email":"new@example.com","password":"pw","nickname":" newbie "}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if got.Nickname != "newbie" || got.Email != "new@example.com" {
		t.Errorf("signup request = %+v", got)
	}
	if sess.Current().IsAuthenticated() {
		t.Error("signup must not log in")
	}
}

func TestSession_Logout(t *testing.T) {
	sess := loggedIn(1)
	called := false
	sess.logoutFn = func(ctx context.Context) { called = true }

	w := serve(t, newTestDeps(sess), http.MethodPost, "/api/session/logout", "")

	if w.Code != http.StatusOK || !called {
		t.Fatalf("status = %d, called = %v", w.Code, called)
	}
	if resp := decode[sessionResponse](t, w); resp.State != "anonymous" {
		t.Errorf("state = %q, want anonymous", resp.State)
	}
}

func TestSession_Refresh(t *testing.T) {
	t.Run("成功", func(t *testing.T) {
		sess := loggedIn(1)
		sess.refreshFn = func(ctx context.Context) (*model.UserDetail, error) {
			return sess.snap.Profile, nil
		}
		w := serve(t, newTestDeps(sess), http.MethodPost, "/api/session/refresh", "")
		if w.Code != http.StatusOK {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("未ログイン", func(t *testing.T) {
		sess := anonymous()
		sess.refreshFn = func(ctx context.Context) (*model.UserDetail, error) {
			return nil, session.ErrNotAuthenticated
		}
		w := serve(t, newTestDeps(sess), http.MethodPost, "/api/session/refresh", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("サーバーエラー", func(t *testing.T) {
		sess := loggedIn(1)
		sess.refreshFn = func(ctx context.Context) (*model.UserDetail, error) {
			return nil, &model.APIError{Status: 500, Message: "boom"}
		}
		w := serve(t, newTestDeps(sess), http.MethodPost, "/api/session/refresh", "")
		if w.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", w.Code)
		}
	})

	t.Run("取得中にセッションが切り替わった", func(t *testing.T) {
		sess := loggedIn(1)
		sess.refreshFn = func(ctx context.Context) (*model.UserDetail, error) {
			return nil, session.ErrSuperseded
		}
		w := serve(t, newTestDeps(sess), http.MethodPost, "/api/session/refresh", "")
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})
}

// --- 記事 ---

func TestListPosts_CanonicalQueryAndExcerpt(t *testing.T) {
	views := int64(9)
	deps := newTestDeps(anonymous())
	var params url.Values
	deps.Posts = &mockPosts{listPostsFn: func(ctx context.Context, p url.Values) (*model.Page[model.PostSummary], error) {
		params = p
		return &model.Page[model.PostSummary]{
			Content: []model.PostSummary{{
				PostID:    1,
				Title:     "t",
				Content:   "<p>hello <b>world</b></p>",
				ViewCount: &views,
				CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			}},
			PageInfo: model.PageInfo{Page: 2, Size: 12, TotalElements: 30, TotalPages: 3, Last: true},
		}, nil
	}}

	w := serve(t, deps, http.MethodGet, "/api/posts?page=2&tag=react&sort=LIKE&tagMode=OR", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[postListResponse](t, w)
	if resp.Query != "sort=LIKE&tag=react&page=2" {
		t.Errorf("query = %q", resp.Query)
	}
	if params.Get("page") != "2" || params.Get("size") != "12" || params.Get("sort") != "LIKE" || params.Get("tag") != "react" {
		t.Errorf("backend params = %v", params)
	}
	if params.Has("tagMode") {
		t.Error("tagMode=OR should not be sent")
	}
	if len(resp.Content) != 1 {
		t.Fatalf("content len = %d", len(resp.Content))
	}
	got := resp.Content[0]
	if got.Excerpt != "hello world" || got.ViewCount != 9 || got.LikeCount != 0 {
		t.Errorf("summary = %+v", got)
	}
	if resp.PageInfo.TotalElements != 30 {
		t.Errorf("pageInfo = %+v", resp.PageInfo)
	}
}

func TestListPosts_BlogID(t *testing.T) {
	deps := newTestDeps(anonymous())
	var params url.Values
	deps.Posts = &mockPosts{listPostsFn: func(ctx context.Context, p url.Values) (*model.Page[model.PostSummary], error) {
		params = p
		return &model.Page[model.PostSummary]{}, nil
	}}

	if w := serve(t, deps, http.MethodGet, "/api/posts?blogId=3", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if params.Get("blogId") != "3" {
		t.Errorf("blogId = %q", params.Get("blogId"))
	}

	if w := serve(t, deps, http.MethodGet, "/api/posts?blogId=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid blogId status = %d, want 400", w.Code)
	}
}

func TestGetPost(t *testing.T) {
	views := int64(10)
	deps := newTestDeps(anonymous())
	deps.Detail = &mockDetail{readFn: func(ctx context.Context, postID int64) (detail.View, error) {
		switch postID {
		case 1:
			return detail.View{Post: &model.Post{PostID: 1, ViewCount: &views}, Like: like.State{Count: 2}}, nil
		default:
			return detail.View{}, &model.APIError{Status: 404, Message: "記事が見つかりません"}
		}
	}}

	w := serve(t, deps, http.MethodGet, "/api/posts/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	view := decode[detail.View](t, w)
	if view.Post.PostID != 1 || view.Like.Count != 2 {
		t.Errorf("view = %+v", view)
	}

	if w := serve(t, deps, http.MethodGet, "/api/posts/3", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
	if w := serve(t, deps, http.MethodGet, "/api/posts/zero", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d, want 400", w.Code)
	}
}

func TestGetPost_ConcurrentRequestsDoNotInterfere(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	posts := &mockPosts{getPostFn: func(ctx context.Context, postID int64) (*model.Post, error) {
		if postID == 1 {
			close(firstStarted)
			select {
			case <-releaseFirst:
			case <-ctx.Done():
				return nil, &model.APIError{Message: "canceled", Err: ctx.Err()}
			}
		}
		return &model.Post{PostID: postID}, nil
	}}
	deps := newTestDeps(anonymous())
	deps.Detail = detail.NewReader(posts, &mockLikes{}, testLogger())

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- serve(t, deps, http.MethodGet, "/api/posts/1", "")
	}()
	<-firstStarted

	if w := serve(t, deps, http.MethodGet, "/api/posts/2", ""); w.Code != http.StatusOK {
		t.Fatalf("second request status = %d, want 200", w.Code)
	}
	close(releaseFirst)

	w := <-first
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if view := decode[detail.View](t, w); view.Post == nil || view.Post.PostID != 1 {
		t.Errorf("first request view = %+v", view)
	}
}

func TestToggleLike(t *testing.T) {
	t.Run("未ログインは401", func(t *testing.T) {
		deps := newTestDeps(anonymous())
		deps.Likes = &mockLikes{toggleFn: func(ctx context.Context, postID int64) (like.State, error) {
			t.Fatal("toggle should not be called")
			return like.State{}, nil
		}}
		if w := serve(t, deps, http.MethodPost, "/api/posts/1/like", ""); w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("成功", func(t *testing.T) {
		deps := newTestDeps(loggedIn(1))
		deps.Likes = &mockLikes{toggleFn: func(ctx context.Context, postID int64) (like.State, error) {
			return like.State{Count: 4, Liked: true}, nil
		}}
		w := serve(t, deps, http.MethodPost, "/api/posts/1/like", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if st := decode[like.State](t, w); st != (like.State{Count: 4, Liked: true}) {
			t.Errorf("state = %+v", st)
		}
	})

	t.Run("処理中は409", func(t *testing.T) {
		deps := newTestDeps(loggedIn(1))
		deps.Likes = &mockLikes{toggleFn: func(ctx context.Context, postID int64) (like.State, error) {
			return like.State{Count: 4, Liked: true}, optimistic.ErrInFlight
		}}
		w := serve(t, deps, http.MethodPost, "/api/posts/1/like", "")
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})

	t.Run("失敗はバックエンドのメッセージ", func(t *testing.T) {
		deps := newTestDeps(loggedIn(1))
		deps.Likes = &mockLikes{toggleFn: func(ctx context.Context, postID int64) (like.State, error) {
			return like.State{Count: 3}, &model.APIError{Status: 400, Message: "いいねできません"}
		}}
		w := serve(t, deps, http.MethodPost, "/api/posts/1/like", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
		if body := decode[middleware.ErrorResponseBody](t, w); body.Message != "いいねできません" {
			t.Errorf("message = %q", body.Message)
		}
	})
}

func TestCSRF_BrowserPostWithoutToken(t *testing.T) {
	deps := newTestDeps(loggedIn(1))
	deps.Likes = &mockLikes{toggleFn: func(ctx context.Context, postID int64) (like.State, error) {
		t.Fatal("toggle should not be called")
		return like.State{}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/posts/1/like", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

// --- フォロー ---

func TestFollowStatus(t *testing.T) {
	deps := newTestDeps(loggedIn(1))
	deps.Follows = &mockFollows{checkFn: func(ctx context.Context, targetID int64) follow.Status {
		return follow.StatusFollowing
	}}

	w := serve(t, deps, http.MethodGet, "/api/users/2/follow-status", "")
	resp := decode[followStatusResponse](t, w)
	if resp.UserID != 2 || resp.Status != "following" || !resp.Following {
		t.Errorf("resp = %+v", resp)
	}
}

func TestFollowToggle(t *testing.T) {
	deps := newTestDeps(loggedIn(1))
	deps.Follows = &mockFollows{toggleFn: func(ctx context.Context, targetID int64) (follow.Status, error) {
		if targetID == 1 {
			return follow.StatusUnknown, follow.ErrSelfFollow
		}
		return follow.StatusFollowing, nil
	}}

	w := serve(t, deps, http.MethodPost, "/api/users/2/follow", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decode[followStatusResponse](t, w); !resp.Following {
		t.Errorf("resp = %+v", resp)
	}

	if w := serve(t, deps, http.MethodPost, "/api/users/1/follow", ""); w.Code != http.StatusBadRequest {
		t.Errorf("self follow status = %d, want 400", w.Code)
	}
}

func TestFollowLists(t *testing.T) {
	deps := newTestDeps(anonymous())
	var gotPage int
	deps.Directory = &mockDirectory{
		followersFn: func(ctx context.Context, userID int64, page int) (*model.Page[model.FollowEntry], error) {
			gotPage = page
			return &model.Page[model.FollowEntry]{
				Content: []model.FollowEntry{{UserID: 3, Nickname: "c"}},
			}, nil
		},
		followingsFn: func(ctx context.Context, userID int64, page int) (*model.Page[model.FollowEntry], error) {
			return &model.Page[model.FollowEntry]{}, nil
		},
		countsFn: func(ctx context.Context, userID int64) (model.FollowCounts, error) {
			return model.FollowCounts{Followers: 5, Followings: 7}, nil
		},
	}

	w := serve(t, deps, http.MethodGet, "/api/users/2/followers?page=1", "")
	if w.Code != http.StatusOK || gotPage != 1 {
		t.Fatalf("status = %d, page = %d", w.Code, gotPage)
	}
	if page := decode[model.Page[model.FollowEntry]](t, w); len(page.Content) != 1 {
		t.Errorf("content = %+v", page.Content)
	}

	w = serve(t, deps, http.MethodGet, "/api/users/2/followings", "")
	if !strings.Contains(w.Body.String(), `"content":[]`) {
		t.Errorf("empty list should encode as [], got %s", w.Body.String())
	}

	if w := serve(t, deps, http.MethodGet, "/api/users/2/followers?page=-1", ""); w.Code != http.StatusBadRequest {
		t.Errorf("negative page status = %d, want 400", w.Code)
	}

	w = serve(t, deps, http.MethodGet, "/api/users/2/follow-counts", "")
	if counts := decode[model.FollowCounts](t, w); counts.Followers != 5 || counts.Followings != 7 {
		t.Errorf("counts = %+v", counts)
	}
}
