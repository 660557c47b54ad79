package blogapi

import (
	"context"

	"github.com/hitoshi/blogclient/internal/model"
)

// ListComments は返信を含むコメント一覧を取得する。
func (a *API) ListComments(ctx context.Context, postID int64) ([]model.Comment, error) {
	var env model.Envelope[[]model.Comment]
	if err := a.req.Get(ctx, commentsPath(postID), nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// CreateComment は記事にコメントする。
func (a *API) CreateComment(ctx context.Context, postID int64, content string) (*model.Comment, error) {
	var env model.Envelope[model.Comment]
	if err := a.req.Post(ctx, commentsPath(postID), model.ContentRequest{Content: content}, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// UpdateComment はコメントの本文を更新する。
func (a *API) UpdateComment(ctx context.Context, postID, commentID int64, content string) (*model.Comment, error) {
	var env model.Envelope[model.Comment]
	if err := a.req.Put(ctx, commentPath(postID, commentID), model.ContentRequest{Content: content}, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// DeleteComment はコメントを削除する。
func (a *API) DeleteComment(ctx context.Context, postID, commentID int64) error {
	return a.req.Delete(ctx, commentPath(postID, commentID), nil, nil)
}

// CreateReply はコメントに返信する。
func (a *API) CreateReply(ctx context.Context, postID, commentID int64, content string) (*model.Reply, error) {
	var env model.Envelope[model.Reply]
	if err := a.req.Post(ctx, commentPath(postID, commentID)+"/replies", model.ContentRequest{Content: content}, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// UpdateReply は返信の本文を更新する。
func (a *API) UpdateReply(ctx context.Context, postID, commentID, replyID int64, content string) (*model.Reply, error) {
	var env model.Envelope[model.Reply]
	if err := a.req.Put(ctx, replyPath(postID, commentID, replyID), model.ContentRequest{Content: content}, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// DeleteReply は返信を削除する。
func (a *API) DeleteReply(ctx context.Context, postID, commentID, replyID int64) error {
	return a.req.Delete(ctx, replyPath(postID, commentID, replyID), nil, nil)
}

func commentsPath(postID int64) string {
	return "/posts/" + id(postID) + "/comments"
}

func commentPath(postID, commentID int64) string {
	return commentsPath(postID) + "/" + id(commentID)
}

func replyPath(postID, commentID, replyID int64) string {
	return commentPath(postID, commentID) + "/replies/" + id(replyID)
}
