package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/blogclient/internal/middleware"
	"github.com/hitoshi/blogclient/internal/model"
	"github.com/hitoshi/blogclient/internal/session"
)

// SessionService はセッションハンドラーが必要とするサービスインターフェース。
type SessionService interface {
	Current() session.Snapshot
	Login(ctx context.Context, email, password string) (*model.UserDetail, error)
	Signup(ctx context.Context, in model.SignupRequest) error
	Logout(ctx context.Context)
	Refresh(ctx context.Context) (*model.UserDetail, error)
}

// SessionHandler はログイン状態を扱うHTTPハンドラー。
type SessionHandler struct {
	service SessionService
	logger  *slog.Logger
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, logger: logger}
}

// sessionResponse はセッション状態のレスポンス。
type sessionResponse struct {
	State string            `json:"state"`
	User  *model.UserDetail `json:"user,omitempty"`
}

func toSessionResponse(snap session.Snapshot) sessionResponse {
	return sessionResponse{State: snap.State.String(), User: snap.Profile}
}

// Current は現在のセッション状態を返す。
// GET /api/session
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.service.Current()))
}

// Login はメールアドレスとパスワードでログインする。
// POST /api/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteBadRequest(w, "リクエストボディが不正です。")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		middleware.WriteBadRequest(w, "メールアドレスとパスワードを入力してください。")
		return
	}

	if _, err := h.service.Login(r.Context(), req.Email, req.Password); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(h.service.Current()))
}

// Signup は新規登録する。登録後もログイン状態にはならない。
// POST /api/session/signup
func (h *SessionHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteBadRequest(w, "リクエストボディが不正です。")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Email == "" || req.Password == "" || req.Nickname == "" {
		middleware.WriteBadRequest(w, "メールアドレス、パスワード、ニックネームを入力してください。")
		return
	}

	if err := h.service.Signup(r.Context(), req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "登録が完了しました。ログインしてください。",
	})
}

// Logout はログアウトする。バックエンドの応答に関わらず常に成功する。
// POST /api/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context())
	writeJSON(w, http.StatusOK, toSessionResponse(h.service.Current()))
}

// Refresh はプロフィールを再取得する。
// 401/403ではセッションが破棄され、そのステータスを返す。
// POST /api/session/refresh
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	_, err := h.service.Refresh(r.Context())
	if errors.Is(err, session.ErrNotAuthenticated) {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, middleware.ErrorResponseBody{
			Message: err.Error(),
			Kind:    "auth_required",
		})
		return
	}
	if errors.Is(err, session.ErrSuperseded) {
		middleware.WriteErrorResponse(w, http.StatusConflict, middleware.ErrorResponseBody{
			Message: err.Error(),
			Kind:    "superseded",
		})
		return
	}
	if err != nil {
		if h.service.Current().IsAuthenticated() {
			h.logger.Warn("プロフィールの再取得に失敗しました", slog.String("error", err.Error()))
		}
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(h.service.Current()))
}
