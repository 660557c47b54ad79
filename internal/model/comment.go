package model

import "time"

// Reply はコメントへの返信。
type Reply struct {
	ReplyID         int64     `json:"replyId"`
	Content         string    `json:"content"`
	Author          Author    `json:"author"`
	ParentCommentID int64     `json:"parentCommentId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Comment は返信を含むコメント。
// 作成・更新APIのレスポンスではRepliesは空になる。
type Comment struct {
	CommentID int64     `json:"commentId"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Replies   []Reply   `json:"replies,omitempty"`
}

// ContentRequest はコメント・返信の作成・更新リクエストボディ。
type ContentRequest struct {
	Content string `json:"content"`
}
