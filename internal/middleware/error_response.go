package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/blogclient/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
	Status  int    `json:"status,omitempty"` // バックエンドが返したステータス
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, body ErrorResponseBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// WriteError はバックエンド呼び出しのエラーをレスポンスに変換する。
// バックエンドのステータスは4xxならそのまま返し、5xxと通信失敗は502にまとめる。
// メッセージはバックエンドのmessageをそのまま使う。
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		apiErr = &model.APIError{Err: err}
	}
	kind := apiErr.Kind()

	code := http.StatusBadGateway
	switch {
	case kind == model.KindCanceled:
		code = http.StatusGatewayTimeout
	case apiErr.Status >= 400 && apiErr.Status < 500:
		code = apiErr.Status
	}
	WriteErrorResponse(w, code, ErrorResponseBody{
		Message: model.MessageOf(err),
		Kind:    string(kind),
		Status:  apiErr.Status,
	})
}

// WriteBadRequest は入力不正の400レスポンスを書き込む。
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, http.StatusBadRequest, ErrorResponseBody{
		Message: message,
		Kind:    string(model.KindValidation),
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, ErrorResponseBody{
		Message: "内部エラーが発生しました。",
		Kind:    "internal",
	})
}
