package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogclient/internal/follow"
	"github.com/hitoshi/blogclient/internal/middleware"
	"github.com/hitoshi/blogclient/internal/model"
)

// FollowService はフォロー状態の推定と切り替え。
type FollowService interface {
	Check(ctx context.Context, targetID int64) follow.Status
	Toggle(ctx context.Context, targetID int64) (follow.Status, error)
}

// FollowDirectory はフォロワー・フォロー中一覧と件数。
type FollowDirectory interface {
	Counts(ctx context.Context, userID int64) (model.FollowCounts, error)
	Followers(ctx context.Context, userID int64, page int) (*model.Page[model.FollowEntry], error)
	Followings(ctx context.Context, userID int64, page int) (*model.Page[model.FollowEntry], error)
}

// FollowHandler はフォロー関連のHTTPハンドラー。
type FollowHandler struct {
	follows   FollowService
	directory FollowDirectory
	logger    *slog.Logger
}

// NewFollowHandler はFollowHandlerを生成する。
func NewFollowHandler(follows FollowService, directory FollowDirectory, logger *slog.Logger) *FollowHandler {
	return &FollowHandler{
		follows:   follows,
		directory: directory,
		logger:    logger,
	}
}

// followStatusResponse はフォロー状態のレスポンス。
type followStatusResponse struct {
	UserID    int64  `json:"userId"`
	Status    string `json:"status"`
	Following bool   `json:"following"`
}

func toFollowStatusResponse(userID int64, st follow.Status) followStatusResponse {
	return followStatusResponse{UserID: userID, Status: st.String(), Following: st.Following()}
}

// Status は閲覧者が対象ユーザーをフォローしているかを返す。
// GET /api/users/{id}/follow-status
func (h *FollowHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r)
	if !ok {
		middleware.WriteBadRequest(w, "ユーザーIDが不正です。")
		return
	}
	writeJSON(w, http.StatusOK, toFollowStatusResponse(userID, h.follows.Check(r.Context(), userID)))
}

// Toggle はフォローを切り替え、切り替え後の状態を返す。
// POST /api/users/{id}/follow
func (h *FollowHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r)
	if !ok {
		middleware.WriteBadRequest(w, "ユーザーIDが不正です。")
		return
	}

	st, err := h.follows.Toggle(r.Context(), userID)
	if errors.Is(err, follow.ErrSelfFollow) {
		middleware.WriteBadRequest(w, err.Error())
		return
	}
	if err != nil {
		writeMutationError(w, h.logger, err, follow.ErrLoginRequired)
		return
	}
	writeJSON(w, http.StatusOK, toFollowStatusResponse(userID, st))
}

// Followers はフォロワー一覧を返す。
// GET /api/users/{id}/followers?page=0
func (h *FollowHandler) Followers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.directory.Followers)
}

// Followings はフォロー中一覧を返す。
// GET /api/users/{id}/followings?page=0
func (h *FollowHandler) Followings(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.directory.Followings)
}

func (h *FollowHandler) list(w http.ResponseWriter, r *http.Request, fetch func(context.Context, int64, int) (*model.Page[model.FollowEntry], error)) {
	userID, ok := pathID(r)
	if !ok {
		middleware.WriteBadRequest(w, "ユーザーIDが不正です。")
		return
	}
	page, ok := queryPage(r)
	if !ok {
		middleware.WriteBadRequest(w, "pageが不正です。")
		return
	}

	result, err := fetch(r.Context(), userID, page)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if result.Content == nil {
		result.Content = []model.FollowEntry{}
	}
	writeJSON(w, http.StatusOK, result)
}

// Counts はフォロワー数とフォロー数を返す。
// GET /api/users/{id}/follow-counts
func (h *FollowHandler) Counts(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r)
	if !ok {
		middleware.WriteBadRequest(w, "ユーザーIDが不正です。")
		return
	}
	counts, err := h.directory.Counts(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
