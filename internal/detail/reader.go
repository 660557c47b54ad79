package detail

import (
	"context"
	"log/slog"

	"github.com/hitoshi/blogclient/internal/model"
)

// Reader は記事詳細といいね情報を1回ずつ取得する。
// 表示中の記事を持たないため、同時に呼び出しても互いに影響しない。
type Reader struct {
	posts  PostFetcher
	likes  LikeLoader
	logger *slog.Logger
}

// NewReader はReaderを生成する。
func NewReader(posts PostFetcher, likes LikeLoader, logger *slog.Logger) *Reader {
	return &Reader{
		posts:  posts,
		likes:  likes,
		logger: logger,
	}
}

// Read は記事を取得し、続けていいね情報を読み込む。
// いいね情報の取得に失敗した場合は記事のいいね数を使う。
func (r *Reader) Read(ctx context.Context, postID int64) (View, error) {
	post, err := r.posts.GetPost(ctx, postID)
	if err != nil {
		if !model.IsCanceled(err) {
			r.logger.Error("記事の取得に失敗しました",
				slog.Int64("post_id", postID),
				slog.Int("http_status", model.StatusOf(err)),
				slog.String("error", err.Error()),
			)
		}
		return View{}, err
	}
	return View{Post: post, Like: r.likes.Load(ctx, postID, post.LikeCountOrZero())}, nil
}
