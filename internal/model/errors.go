package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// FallbackMessage はバックエンドがmessageを返さなかった場合のユーザー向け文言。
const FallbackMessage = "不明なエラーが発生しました。"

// ErrorKind はエラーがクライアントに与える効果による分類。
type ErrorKind string

const (
	// KindAuthExpired は認証切れ（401）。セッションの破棄を伴う。
	KindAuthExpired ErrorKind = "auth_expired"
	// KindForbidden は権限不足（403）。
	KindForbidden ErrorKind = "forbidden"
	// KindConflict は既に目的の状態にあることを示す（409）。
	KindConflict ErrorKind = "conflict"
	// KindNotFound は対象が存在しない（404）。
	KindNotFound ErrorKind = "not_found"
	// KindValidation は入力・業務ルール違反（その他の4xx）。
	KindValidation ErrorKind = "validation"
	// KindServer はバックエンド側の障害（5xx）。
	KindServer ErrorKind = "server"
	// KindTransient はステータスを持たない通信・デコード失敗。
	KindTransient ErrorKind = "transient"
	// KindCanceled は呼び出し側によるキャンセル。
	KindCanceled ErrorKind = "canceled"
)

// APIError はゲートウェイ境界で一度だけ正規化されたエラー。
// 通信失敗・非2xx・不正なボディのいずれもこの形に揃える。
type APIError struct {
	Status  int    // HTTPステータス。レスポンスを受け取れなかった場合は0
	Message string // ユーザーに表示できるメッセージ
	RawBody []byte // 非2xxレスポンスのボディ（あれば）
	Err     error  // 原因
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("[%d] %s", e.Status, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// Kind はエラーの分類を返す。
func (e *APIError) Kind() ErrorKind {
	switch {
	case errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded):
		return KindCanceled
	case e.Status == http.StatusUnauthorized:
		return KindAuthExpired
	case e.Status == http.StatusForbidden:
		return KindForbidden
	case e.Status == http.StatusConflict:
		return KindConflict
	case e.Status == http.StatusNotFound:
		return KindNotFound
	case e.Status >= 500:
		return KindServer
	case e.Status >= 400:
		return KindValidation
	default:
		return KindTransient
	}
}

// StatusOf はエラーチェーンからHTTPステータスを取り出す。見つからない場合は0。
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// MessageOf はユーザーに表示するメッセージを返す。
// APIErrorでない場合はerr.Error()、空の場合はFallbackMessage。
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackMessage
}

// IsUnauthorized は401かどうかを判定する。
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// IsAuthRejected は401または403かどうかを判定する。
// セッション復元・プロフィール再取得で強制ログアウトの条件になる。
func IsAuthRejected(err error) bool {
	status := StatusOf(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsForbidden は403かどうかを判定する。
func IsForbidden(err error) bool {
	return StatusOf(err) == http.StatusForbidden
}

// IsConflict は409かどうかを判定する。
func IsConflict(err error) bool {
	return StatusOf(err) == http.StatusConflict
}

// IsNotFound は404かどうかを判定する。
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsCanceled はキャンセルまたはタイムアウトによる失敗かどうかを判定する。
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
