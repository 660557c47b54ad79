// Package blogapi はバックエンドREST APIのエンドポイントを型付きで提供する。
// 通信・エラー正規化・401処理はゲートウェイが担い、ここではパスと型の対応のみを扱う。
package blogapi

import (
	"context"
	"net/url"
	"strconv"
)

// Requester はゲートウェイの送信インターフェース。
// 返すエラーは*model.APIErrorに正規化済みであること。
type Requester interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, body, out any) error
}

// API はバックエンドAPIの型付きクライアント。
type API struct {
	req Requester
}

// New はAPIを生成する。
func New(req Requester) *API {
	return &API{req: req}
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

func pageQuery(page, size int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}
	return q
}
