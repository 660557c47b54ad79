package blogapi

import (
	"context"

	"github.com/hitoshi/blogclient/internal/model"
)

// Follow はユーザーをフォローする。既にフォロー中の場合は409が返る。
func (a *API) Follow(ctx context.Context, userID int64) (*model.FollowResult, error) {
	var env model.Envelope[model.FollowResult]
	if err := a.req.Post(ctx, followsPath(userID), nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Unfollow はフォローを解除する。フォローしていない場合は404が返る。
func (a *API) Unfollow(ctx context.Context, userID int64) (*model.FollowResult, error) {
	var env model.Envelope[model.FollowResult]
	if err := a.req.Delete(ctx, followsPath(userID), nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// ListFollowers はuserIDのフォロワー一覧を取得する。pageは0始まり。
func (a *API) ListFollowers(ctx context.Context, userID int64, page, size int) (*model.Page[model.FollowEntry], error) {
	return a.followList(ctx, "/users/"+id(userID)+"/followers", page, size)
}

// ListFollowings はuserIDがフォローしているユーザー一覧を取得する。
func (a *API) ListFollowings(ctx context.Context, userID int64, page, size int) (*model.Page[model.FollowEntry], error) {
	return a.followList(ctx, "/users/"+id(userID)+"/followings", page, size)
}

func (a *API) followList(ctx context.Context, path string, page, size int) (*model.Page[model.FollowEntry], error) {
	var env model.Envelope[model.Page[model.FollowEntry]]
	if err := a.req.Get(ctx, path, pageQuery(page, size), &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func followsPath(userID int64) string {
	return "/users/" + id(userID) + "/follows"
}
