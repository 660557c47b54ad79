// Package query は記事一覧の検索条件を扱う。
//
// 検索条件はURLのクエリ文字列として正規形で表現される。既定値のパラメータは
// 省略し、パラメータの順序は sort, asc, keyword, search, tag..., tagMode, page に固定する。
// そのため Parse(Encode(s)) を再度Encodeすると同じ文字列になる。
package query

import (
	"net/url"
	"strconv"
	"strings"
)

// SortField は並び替えの基準。
type SortField string

const (
	SortCreatedAt SortField = "CREATED_AT"
	SortUpdatedAt SortField = "UPDATED_AT"
	SortLike      SortField = "LIKE"
	SortView      SortField = "VIEW"
)

// SearchField はキーワード検索の対象。
type SearchField string

const (
	SearchTitle    SearchField = "TITLE"
	SearchBlog     SearchField = "BLOG"
	SearchNickname SearchField = "NICKNAME"
)

// TagMode は複数タグの組み合わせ方。
type TagMode string

const (
	TagModeOr   TagMode = "OR"
	TagModeAnd  TagMode = "AND"
	TagModeNand TagMode = "NAND"
)

func parseSort(s string) SortField {
	switch f := SortField(s); f {
	case SortCreatedAt, SortUpdatedAt, SortLike, SortView:
		return f
	}
	return SortCreatedAt
}

func parseSearch(s string) SearchField {
	switch f := SearchField(s); f {
	case SearchTitle, SearchBlog, SearchNickname:
		return f
	}
	return SearchTitle
}

func parseTagMode(s string) TagMode {
	switch m := TagMode(s); m {
	case TagModeOr, TagModeAnd, TagModeNand:
		return m
	}
	return TagModeOr
}

// State は記事一覧の検索条件。値として扱い、With系メソッドは新しいStateを返す。
type State struct {
	Sort      SortField
	Ascending bool
	Keyword   string
	Search    SearchField
	Tags      []string
	TagMode   TagMode
	Page      int
}

// Default は既定の検索条件を返す。
func Default() State {
	return State{
		Sort:    SortCreatedAt,
		Search:  SearchTitle,
		TagMode: TagModeOr,
	}
}

// Parse はクエリ文字列を解釈する。先頭の "?" は無視する。
// 解釈できない値は既定値として扱う。
func Parse(raw string) State {
	values, _ := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	return FromValues(values)
}

// FromValues はurl.Valuesから検索条件を組み立てる。
func FromValues(v url.Values) State {
	page, err := strconv.Atoi(v.Get("page"))
	if err != nil {
		page = 0
	}
	s := State{
		Sort:      parseSort(v.Get("sort")),
		Ascending: v.Get("asc") == "true",
		Keyword:   v.Get("keyword"),
		Search:    parseSearch(v.Get("search")),
		Tags:      v["tag"],
		TagMode:   parseTagMode(v.Get("tagMode")),
		Page:      page,
	}
	return s.Normalize()
}

// Normalize は正規形にしたコピーを返す。
// キーワードとタグの前後の空白を除き、空のタグと重複タグを取り除く（順序は保つ）。
func (s State) Normalize() State {
	out := s
	out.Sort = parseSort(string(s.Sort))
	out.Search = parseSearch(string(s.Search))
	out.TagMode = parseTagMode(string(s.TagMode))
	out.Keyword = strings.TrimSpace(s.Keyword)
	out.Tags = normalizeTags(s.Tags)
	if out.Page < 0 {
		out.Page = 0
	}
	return out
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Encode は正規形のクエリ文字列を返す。先頭に "?" は付けない。
func (s State) Encode() string {
	n := s.Normalize()
	var b strings.Builder
	add := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}

	if n.Sort != SortCreatedAt {
		add("sort", string(n.Sort))
	}
	if n.Ascending {
		add("asc", "true")
	}
	if n.Keyword != "" {
		add("keyword", n.Keyword)
		if n.Search != SearchTitle {
			add("search", string(n.Search))
		}
	}
	for _, t := range n.Tags {
		add("tag", t)
	}
	if len(n.Tags) > 0 && n.TagMode != TagModeOr {
		add("tagMode", string(n.TagMode))
	}
	if n.Page > 0 {
		add("page", strconv.Itoa(n.Page))
	}
	return b.String()
}

// String はEncodeと同じ。
func (s State) String() string {
	return s.Encode()
}

// Equal は正規形が一致するかどうかを返す。
func (s State) Equal(other State) bool {
	return s.Encode() == other.Encode()
}

// WithSort は並び替えの基準を変える。ページは維持する。
func (s State) WithSort(sort SortField) State {
	s.Sort = sort
	return s.Normalize()
}

// WithAscending は並び順を変える。ページは維持する。
func (s State) WithAscending(asc bool) State {
	s.Ascending = asc
	return s.Normalize()
}

// WithKeyword はキーワードを変え、ページを0に戻す。
func (s State) WithKeyword(keyword string) State {
	s.Keyword = keyword
	s.Page = 0
	return s.Normalize()
}

// WithSearch は検索対象を変え、ページを0に戻す。
func (s State) WithSearch(search SearchField) State {
	s.Search = search
	s.Page = 0
	return s.Normalize()
}

// ClearSearch はキーワードと検索対象を既定に戻し、ページを0に戻す。
func (s State) ClearSearch() State {
	s.Keyword = ""
	s.Search = SearchTitle
	s.Page = 0
	return s.Normalize()
}

// WithTags はタグを置き換え、ページを0に戻す。
// タグが空になった場合はタグモードも既定に戻す。
func (s State) WithTags(tags []string) State {
	s.Tags = append([]string(nil), tags...)
	s.Page = 0
	out := s.Normalize()
	if len(out.Tags) == 0 {
		out.TagMode = TagModeOr
	}
	return out
}

// ToggleTag はタグの追加・削除を切り替え、ページを0に戻す。
func (s State) ToggleTag(tag string) State {
	tag = strings.TrimSpace(tag)
	tags := make([]string, 0, len(s.Tags)+1)
	found := false
	for _, t := range s.Tags {
		if t == tag {
			found = true
			continue
		}
		tags = append(tags, t)
	}
	if !found {
		tags = append(tags, tag)
	}
	return s.WithTags(tags)
}

// WithTagMode はタグモードを変え、ページを0に戻す。
func (s State) WithTagMode(mode TagMode) State {
	s.TagMode = mode
	s.Page = 0
	return s.Normalize()
}

// WithPage はページを変える。負の値は0になる。
func (s State) WithPage(page int) State {
	s.Page = page
	return s.Normalize()
}

// ListOptions はバックエンドへの一覧取得で検索条件以外に渡す値。
type ListOptions struct {
	Size   int
	BlogID int64
}

// ListParams はバックエンドの記事一覧APIに渡すパラメータを返す。
// 既定値のパラメータは送らない。pageとsizeは常に送る。
func (s State) ListParams(opts ListOptions) url.Values {
	n := s.Normalize()
	v := url.Values{}
	v.Set("page", strconv.Itoa(n.Page))
	if opts.Size > 0 {
		v.Set("size", strconv.Itoa(opts.Size))
	}
	if opts.BlogID > 0 {
		v.Set("blogId", strconv.FormatInt(opts.BlogID, 10))
	}
	if n.Sort != SortCreatedAt {
		v.Set("sort", string(n.Sort))
	}
	if n.Ascending {
		v.Set("asc", "true")
	}
	if len(n.Tags) > 0 {
		v["tag"] = append([]string(nil), n.Tags...)
		if n.TagMode != TagModeOr {
			v.Set("tagMode", string(n.TagMode))
		}
	}
	if n.Keyword != "" {
		v.Set("keyword", n.Keyword)
		if n.Search != SearchTitle {
			v.Set("search", string(n.Search))
		}
	}
	return v
}
