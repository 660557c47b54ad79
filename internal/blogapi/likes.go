package blogapi

import (
	"context"

	"github.com/hitoshi/blogclient/internal/model"
)

// GetLikeInfo はいいね数とログイン中ユーザーのいいね状態を取得する。
func (a *API) GetLikeInfo(ctx context.Context, postID int64) (*model.LikeInfo, error) {
	var env model.Envelope[model.LikeInfo]
	if err := a.req.Get(ctx, likePath(postID), nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// AddLike はいいねする。既にいいね済みの場合は409が返る。
func (a *API) AddLike(ctx context.Context, postID int64) (*model.LikeInfo, error) {
	var env model.Envelope[model.LikeInfo]
	if err := a.req.Post(ctx, likePath(postID), nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// RemoveLike はいいねを取り消す。いいねしていない場合は404が返る。
func (a *API) RemoveLike(ctx context.Context, postID int64) (*model.LikeInfo, error) {
	var env model.Envelope[model.LikeInfo]
	if err := a.req.Delete(ctx, likePath(postID), nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func likePath(postID int64) string {
	return "/posts/" + id(postID) + "/like"
}
