// Package middleware はコンパニオンサーバーのHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/blogclient/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey    = contextKey("user_id")
	requestIDContextKey = contextKey("request_id")
	userIDSinkKey       = contextKey("user_id_sink")
)

// ErrNoUser はコンテキストに認証済みユーザーがないことを示す。
var ErrNoUser = errors.New("user ID not found in context")

// SessionReader はセッションの現在値を読み取るインターフェース。
// session.Storeの部分集合として定義する。
type SessionReader interface {
	Current() session.Snapshot
}

// NewRequireSession はセッションがAuthenticatedでない場合に401を返すミドルウェアを返す。
// 認証済みの場合はユーザーIDをリクエストコンテキストに注入する。
//
// バックエンド側で期限切れになっていても、ここではローカルのセッション状態しか見ない。
// 期限切れはバックエンド呼び出しの401で検出され、セッションがAnonymousに遷移する。
func NewRequireSession(reader SessionReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := reader.Current()
			if !snap.IsAuthenticated() {
				WriteErrorResponse(w, http.StatusUnauthorized, ErrorResponseBody{
					Message: "ログインが必要です。",
					Kind:    "auth_required",
				})
				return
			}
			ctx := ContextWithUserID(r.Context(), snap.UserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalSession は認証済みであればユーザーIDをコンテキストに注入する。
// 未認証でもリクエストは通す。
func NewOptionalSession(reader SessionReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if snap := reader.Current(); snap.IsAuthenticated() {
				r = r.WithContext(ContextWithUserID(r.Context(), snap.UserID()))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	if !ok || userID == 0 {
		return 0, ErrNoUser
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// ロギングミドルウェアの内側で呼ばれた場合はアクセスログにも反映される。
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	if sink, ok := ctx.Value(userIDSinkKey).(*int64); ok {
		*sink = userID
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}

// RequestIDFromContext はロギングミドルウェアが払い出したリクエストIDを返す。
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
