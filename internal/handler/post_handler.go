package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/blogclient/internal/detail"
	"github.com/hitoshi/blogclient/internal/like"
	"github.com/hitoshi/blogclient/internal/middleware"
	"github.com/hitoshi/blogclient/internal/model"
	"github.com/hitoshi/blogclient/internal/preview"
	"github.com/hitoshi/blogclient/internal/query"
)

// defaultPostsPerPage は記事一覧の1ページあたりの件数（デフォルト）。
const defaultPostsPerPage = 12

// PostLister は記事一覧API。
type PostLister interface {
	ListPosts(ctx context.Context, params url.Values) (*model.Page[model.PostSummary], error)
}

// DetailReader は記事詳細の取得。
// 複数のクライアントから同時に呼ばれるため、リクエスト同士が干渉しない実装を渡す。
type DetailReader interface {
	Read(ctx context.Context, postID int64) (detail.View, error)
}

// LikeToggler はいいねの切り替え。
type LikeToggler interface {
	Toggle(ctx context.Context, postID int64) (like.State, error)
}

// PostHandler は記事関連のHTTPハンドラー。
type PostHandler struct {
	posts     PostLister
	detail    DetailReader
	likes     LikeToggler
	excerpter preview.Excerpter
	pageSize  int
	logger    *slog.Logger
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(posts PostLister, reader DetailReader, likes LikeToggler, excerpter preview.Excerpter, pageSize int, logger *slog.Logger) *PostHandler {
	if pageSize <= 0 {
		pageSize = defaultPostsPerPage
	}
	if excerpter == nil {
		excerpter = preview.NewExcerpter(0)
	}
	return &PostHandler{
		posts:     posts,
		detail:    reader,
		likes:     likes,
		excerpter: excerpter,
		pageSize:  pageSize,
		logger:    logger,
	}
}

// --- レスポンス型 ---

// postSummaryResponse は記事一覧の1件分。本文は抜粋に置き換える。
type postSummaryResponse struct {
	PostID       int64        `json:"postId"`
	Title        string       `json:"title"`
	Excerpt      string       `json:"excerpt"`
	Author       model.Author `json:"author"`
	Tags         []string     `json:"tags"`
	ViewCount    int64        `json:"viewCount"`
	LikeCount    int64        `json:"likeCount"`
	CommentCount int64        `json:"commentCount"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// postListResponse は記事一覧のレスポンス。
// Queryは正規化済みの検索条件で、そのままURLのクエリ文字列に使える。
type postListResponse struct {
	Query    string                `json:"query"`
	Content  []postSummaryResponse `json:"content"`
	PageInfo model.PageInfo        `json:"pageInfo"`
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// ListPosts は検索条件付きで記事一覧を返す。
// GET /api/posts?sort=LIKE&tag=go&page=1
// blogIdを指定した場合はそのブログの記事に絞る。
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := query.FromValues(q)

	opts := query.ListOptions{Size: h.pageSize}
	if raw := q.Get("blogId"); raw != "" {
		blogID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || blogID <= 0 {
			middleware.WriteBadRequest(w, "blogIdが不正です。")
			return
		}
		opts.BlogID = blogID
	}

	page, err := h.posts.ListPosts(r.Context(), state.ListParams(opts))
	if err != nil {
		h.logger.Error("記事一覧の取得に失敗しました",
			slog.String("query", state.Encode()),
			slog.Int("http_status", model.StatusOf(err)),
			slog.String("error", err.Error()),
		)
		middleware.WriteError(w, err)
		return
	}

	resp := postListResponse{
		Query:    state.Encode(),
		Content:  make([]postSummaryResponse, 0, len(page.Content)),
		PageInfo: page.PageInfo,
	}
	for _, p := range page.Content {
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		resp.Content = append(resp.Content, postSummaryResponse{
			PostID:       p.PostID,
			Title:        p.Title,
			Excerpt:      h.excerpter.Excerpt(p.Content),
			Author:       p.Author,
			Tags:         tags,
			ViewCount:    deref(p.ViewCount),
			LikeCount:    deref(p.LikeCount),
			CommentCount: deref(p.CommentCount),
			CreatedAt:    p.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPost は記事詳細といいね情報を返す。
// GET /api/posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(r)
	if !ok {
		middleware.WriteBadRequest(w, "記事IDが不正です。")
		return
	}

	view, err := h.detail.Read(r.Context(), postID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ToggleLike はいいねを切り替え、切り替え後の状態を返す。
// POST /api/posts/{id}/like
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(r)
	if !ok {
		middleware.WriteBadRequest(w, "記事IDが不正です。")
		return
	}

	st, err := h.likes.Toggle(r.Context(), postID)
	if err != nil {
		writeMutationError(w, h.logger, err, like.ErrLoginRequired)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
