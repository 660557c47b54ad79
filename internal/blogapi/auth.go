package blogapi

import (
	"context"

	"github.com/hitoshi/blogclient/internal/model"
)

// Login はログインする。レスポンスのdataにはプロフィール全体が含まれる。
func (a *API) Login(ctx context.Context, email, password string) (*model.UserDetail, error) {
	var env model.Envelope[model.UserDetail]
	if err := a.req.Post(ctx, "/auth/login", model.LoginRequest{Email: email, Password: password}, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Signup は新規登録する。セッションは確立されない。
func (a *API) Signup(ctx context.Context, in model.SignupRequest) (*model.UserDetail, error) {
	var env model.Envelope[model.UserDetail]
	if err := a.req.Post(ctx, "/auth/signup", in, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Logout はログアウトする。401は既にログアウト済みを意味する。
func (a *API) Logout(ctx context.Context) error {
	return a.req.Post(ctx, "/auth/logout", nil, nil)
}
