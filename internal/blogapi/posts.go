package blogapi

import (
	"context"
	"net/url"

	"github.com/hitoshi/blogclient/internal/model"
)

// ListPosts は記事一覧を取得する。
// このエンドポイントだけは{message, data}で包まれずに{content, pageInfo}が直接返る。
func (a *API) ListPosts(ctx context.Context, params url.Values) (*model.Page[model.PostSummary], error) {
	var page model.Page[model.PostSummary]
	if err := a.req.Get(ctx, "/posts", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetPost は記事詳細を取得する。サーバー側で閲覧数が1加算される。
func (a *API) GetPost(ctx context.Context, postID int64) (*model.Post, error) {
	var env model.Envelope[model.Post]
	if err := a.req.Get(ctx, "/posts/"+id(postID), nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// CreatePost は記事を作成する。ログインが必要。
func (a *API) CreatePost(ctx context.Context, in model.PostInput) (*model.Post, error) {
	var env model.Envelope[model.Post]
	if err := a.req.Post(ctx, "/posts", in, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// UpdatePost は記事を更新する。作成者以外は403が返る。
func (a *API) UpdatePost(ctx context.Context, postID int64, in model.PostInput) (*model.Post, error) {
	var env model.Envelope[model.Post]
	if err := a.req.Put(ctx, "/posts/"+id(postID), in, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// DeletePost は記事を削除する。作成者以外は403が返る。
func (a *API) DeletePost(ctx context.Context, postID int64) error {
	return a.req.Delete(ctx, "/posts/"+id(postID), nil, nil)
}
