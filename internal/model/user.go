// Package model はブログバックエンドとやり取りするドメインモデルを定義する。
// JSONタグはバックエンドのREST契約のフィールド名に一致させる。
package model

// Identity はログイン中ユーザーの識別情報を表す。
// 永続化レコードでは "user" キーに保存される。
type Identity struct {
	UserID   int64  `json:"userId"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// UserDetail はバックエンドが返すユーザープロフィール。
// ログイン応答とGET /users/{id}の両方でこの形が返る。
// 永続化レコードでは "userDetail" キーに保存される。
type UserDetail struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Nickname  string `json:"nickname"`
	BlogID    int64  `json:"blogId"`
	BlogTitle string `json:"blogTitle"`
}

// Identity はプロフィールから識別情報を切り出す。
func (u *UserDetail) Identity() Identity {
	return Identity{
		UserID:   u.ID,
		Email:    u.Email,
		Nickname: u.Nickname,
	}
}

// LoginRequest はPOST /auth/loginのリクエストボディ。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest はPOST /auth/signupのリクエストボディ。
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

// UserUpdateRequest はPUT /users/{id}のリクエストボディ。
// 空文字のフィールドは送信しない。
type UserUpdateRequest struct {
	Nickname string `json:"nickname,omitempty"`
	Password string `json:"password,omitempty"`
}

// UserDeleteRequest はDELETE /users/{id}のリクエストボディ。
type UserDeleteRequest struct {
	Password string `json:"password"`
}

// Tag はGET /tags/{title}のレスポンス。
type Tag struct {
	TagID int64  `json:"tagId"`
	Title string `json:"title"`
}
