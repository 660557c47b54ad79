package blogapi

import (
	"context"
	"net/url"

	"github.com/hitoshi/blogclient/internal/model"
)

// GetTag はタイトルでタグを取得する。タイトルはパスセグメントとしてエスケープする。
func (a *API) GetTag(ctx context.Context, title string) (*model.Tag, error) {
	var env model.Envelope[model.Tag]
	if err := a.req.Get(ctx, "/tags/"+url.PathEscape(title), nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}
