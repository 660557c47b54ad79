package model

import "time"

// Author は投稿・コメントの作成者。
type Author struct {
	UserID   int64  `json:"userId"`
	Nickname string `json:"nickname"`
}

// PostSummary は記事一覧の1件分。
// 一覧APIは件数系フィールドを省略することがあるため、ポインタで受ける。
type PostSummary struct {
	PostID       int64     `json:"postId"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Author       Author    `json:"author"`
	Tags         []string  `json:"tags,omitempty"`
	ViewCount    *int64    `json:"viewCount,omitempty"`
	LikeCount    *int64    `json:"likeCount,omitempty"`
	CommentCount *int64    `json:"commentCount,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	IsLiked      *bool     `json:"isLiked,omitempty"`
}

// Post は記事詳細。GET /posts/{id}はサーバー側で閲覧数を加算する。
type Post struct {
	PostID    int64     `json:"postId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	Tags      []string  `json:"tags"`
	ViewCount *int64    `json:"viewCount,omitempty"`
	LikeCount *int64    `json:"likeCount,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ViewCountOrZero は閲覧数を返す。未設定の場合は0。
func (p *Post) ViewCountOrZero() int64 {
	if p.ViewCount == nil {
		return 0
	}
	return *p.ViewCount
}

// LikeCountOrZero はいいね数を返す。未設定の場合は0。
func (p *Post) LikeCountOrZero() int64 {
	if p.LikeCount == nil {
		return 0
	}
	return *p.LikeCount
}

// PostInput は記事作成・更新のリクエストボディ。
type PostInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// LikeInfo はいいねAPIのレスポンス。
// CheckLike はログイン中ユーザーがいいね済みかどうか。
type LikeInfo struct {
	LikeCount int64 `json:"likeCount"`
	CheckLike bool  `json:"checkLike"`
}
