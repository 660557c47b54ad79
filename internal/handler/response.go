package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogclient/internal/middleware"
	"github.com/hitoshi/blogclient/internal/optimistic"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// pathID はURLパスの{id}を正の整数として取り出す。
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryPage はクエリのpageを0以上の整数として取り出す。未指定は0。
func queryPage(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 0, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 0 {
		return 0, false
	}
	return page, true
}

// writeMutationError はいいね・フォロー操作の失敗をレスポンスに変換する。
// loginRequiredにはサービス側の「ログインが必要」エラーを渡す。
func writeMutationError(w http.ResponseWriter, logger *slog.Logger, err error, loginRequired error) {
	switch {
	case errors.Is(err, loginRequired):
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, middleware.ErrorResponseBody{
			Message: err.Error(),
			Kind:    "auth_required",
		})
	case errors.Is(err, optimistic.ErrInFlight):
		middleware.WriteErrorResponse(w, http.StatusConflict, middleware.ErrorResponseBody{
			Message: "処理中です。しばらくお待ちください。",
			Kind:    "in_flight",
		})
	default:
		logger.Debug("mutation failed", slog.String("error", err.Error()))
		middleware.WriteError(w, err)
	}
}
