package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/blogclient/internal/model"
)

// CanceledMessage はキャンセル・タイムアウト時のユーザー向け文言。
const CanceledMessage = "リクエストがキャンセルされました。"

// maxErrorBody はエラーレスポンスとして保持するボディの上限。
const maxErrorBody = 64 << 10

// Translate は任意のエラーをmodel.APIErrorに正規化する。
// 既にAPIErrorであればそのまま返す。nilにはnilを返す。
func Translate(err error) *model.APIError {
	if err == nil {
		return nil
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	msg := model.FallbackMessage
	if model.IsCanceled(err) {
		msg = CanceledMessage
	}
	return &model.APIError{Message: msg, Err: err}
}

// translateStatus は非2xxレスポンスをAPIErrorに変換する。
// メッセージはボディのmessageフィールドを優先し、なければ既定の文言を使う。
func translateStatus(status int, body []byte) *model.APIError {
	msg := backendMessage(body)
	if msg == "" {
		msg = model.FallbackMessage
	}
	return &model.APIError{
		Status:  status,
		Message: msg,
		RawBody: body,
		Err:     fmt.Errorf("unexpected status %d", status),
	}
}

func backendMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Message)
}
