package blogapi

import (
	"context"

	"github.com/hitoshi/blogclient/internal/model"
)

// GetUser はユーザーのプロフィールを取得する。
func (a *API) GetUser(ctx context.Context, userID int64) (*model.UserDetail, error) {
	var env model.Envelope[model.UserDetail]
	if err := a.req.Get(ctx, "/users/"+id(userID), nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// UpdateUser は本人のプロフィールを更新する。
func (a *API) UpdateUser(ctx context.Context, userID int64, in model.UserUpdateRequest) (*model.UserDetail, error) {
	var env model.Envelope[model.UserDetail]
	if err := a.req.Put(ctx, "/users/"+id(userID), in, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// DeleteUser は退会する。本人確認のためパスワードをボディで送る。
func (a *API) DeleteUser(ctx context.Context, userID int64, password string) error {
	return a.req.Delete(ctx, "/users/"+id(userID), model.UserDeleteRequest{Password: password}, nil)
}
