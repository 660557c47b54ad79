package query

import (
	"reflect"
	"testing"
)

func TestEncode_DefaultIsEmpty(t *testing.T) {
	if got := Default().Encode(); got != "" {
		t.Errorf("Default().Encode() = %q, want empty", got)
	}
	if got := (State{}).Encode(); got != "" {
		t.Errorf("zero State encodes to %q, want empty", got)
	}
}

func TestEncode_FixedOrderAndOmission(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  string
	}{
		{
			name: "all parameters",
			state: State{Sort: SortLike, Ascending: true, Keyword: " go tips ", Search: SearchNickname,
				Tags: []string{"go", "react"}, TagMode: TagModeAnd, Page: 3},
			want: "sort=LIKE&asc=true&keyword=go+tips&search=NICKNAME&tag=go&tag=react&tagMode=AND&page=3",
		},
		{
			name:  "tag mode omitted without tags",
			state: State{TagMode: TagModeNand},
			want:  "",
		},
		{
			name:  "search omitted without keyword",
			state: State{Search: SearchBlog},
			want:  "",
		},
		{
			name:  "default search omitted",
			state: State{Keyword: "x", Search: SearchTitle},
			want:  "keyword=x",
		},
		{
			name:  "asc false omitted",
			state: State{Sort: SortView, Ascending: false},
			want:  "sort=VIEW",
		},
		{
			name:  "tags trimmed and deduplicated",
			state: State{Tags: []string{" a ", "", "b", "a"}, TagMode: TagModeOr},
			want:  "tag=a&tag=b",
		},
		{
			name:  "escaping",
			state: State{Tags: []string{"c#", "a&b"}},
			want:  "tag=c%23&tag=a%26b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Encode(); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"?sort=LIKE&page=2",
		"page=1&sort=VIEW&asc=true",
		"tag=b&tag=a&tagMode=NAND&keyword=%20hello%20world%20&search=BLOG",
		"tagMode=AND",
		"search=NICKNAME",
		"sort=bogus&search=bogus&tagMode=bogus&page=-4&asc=yes",
		"tag=&tag=%20&tag=x&tag=x",
		"keyword=a%2Bb&page=abc",
	}

	for _, in := range inputs {
		first := Parse(in).Encode()
		second := Parse(first).Encode()
		if first != second {
			t.Errorf("Parse(%q): %q re-encodes to %q", in, first, second)
		}
		if !Parse(first).Equal(Parse(in)) {
			t.Errorf("Parse(%q) and Parse(%q) should be equal", in, first)
		}
	}
}

func TestParse_UnknownValuesBecomeDefaults(t *testing.T) {
	got := Parse("sort=bogus&search=bogus&tagMode=bogus&page=-4&asc=yes")
	want := Default()
	if got.Sort != want.Sort || got.Search != want.Search || got.TagMode != want.TagMode || got.Page != 0 || got.Ascending {
		t.Errorf("Parse = %+v, want defaults", got)
	}
}

func TestParse_LeadingQuestionMark(t *testing.T) {
	if Parse("?sort=LIKE").Sort != SortLike {
		t.Error("leading '?' should be ignored")
	}
}

func TestWithTags_ResetsPage(t *testing.T) {
	s := Parse("sort=LIKE&page=2").WithTags([]string{"react"})
	if got := s.Encode(); got != "sort=LIKE&tag=react" {
		t.Errorf("Encode() = %q, want %q", got, "sort=LIKE&tag=react")
	}
}

func TestPageResetRules(t *testing.T) {
	base := Parse("tag=go&keyword=x&page=4")

	resets := map[string]State{
		"tags":     base.WithTags([]string{"rust"}),
		"toggle":   base.ToggleTag("rust"),
		"tag mode": base.WithTagMode(TagModeAnd),
		"keyword":  base.WithKeyword("y"),
		"search":   base.WithSearch(SearchBlog),
		"clear":    base.ClearSearch(),
	}
	for name, s := range resets {
		if s.Page != 0 {
			t.Errorf("%s: Page = %d, want 0", name, s.Page)
		}
	}

	keeps := map[string]State{
		"sort":      base.WithSort(SortView),
		"direction": base.WithAscending(true),
	}
	for name, s := range keeps {
		if s.Page != 4 {
			t.Errorf("%s: Page = %d, want 4", name, s.Page)
		}
	}

	if base.Page != 4 {
		t.Error("With methods must not modify the receiver")
	}
}

func TestWithTags_EmptyResetsTagMode(t *testing.T) {
	s := Parse("tag=go&tagMode=AND").WithTags(nil)
	if s.TagMode != TagModeOr {
		t.Errorf("TagMode = %s, want OR", s.TagMode)
	}
}

func TestToggleTag(t *testing.T) {
	s := Default().ToggleTag("go").ToggleTag("rust")
	if !reflect.DeepEqual(s.Tags, []string{"go", "rust"}) {
		t.Errorf("Tags = %v", s.Tags)
	}
	s = s.ToggleTag("go")
	if !reflect.DeepEqual(s.Tags, []string{"rust"}) {
		t.Errorf("Tags = %v, want [rust]", s.Tags)
	}
}

func TestWithPage_NegativeClamped(t *testing.T) {
	if got := Default().WithPage(-1).Page; got != 0 {
		t.Errorf("Page = %d, want 0", got)
	}
}

func TestListParams(t *testing.T) {
	s := Parse("sort=LIKE&asc=true&keyword=go&search=NICKNAME&tag=a&tag=b&tagMode=NAND&page=2")
	v := s.ListParams(ListOptions{Size: 12, BlogID: 5})

	want := map[string][]string{
		"page":    {"2"},
		"size":    {"12"},
		"blogId":  {"5"},
		"sort":    {"LIKE"},
		"asc":     {"true"},
		"tag":     {"a", "b"},
		"tagMode": {"NAND"},
		"keyword": {"go"},
		"search":  {"NICKNAME"},
	}
	if !reflect.DeepEqual(map[string][]string(v), want) {
		t.Errorf("ListParams = %v, want %v", v, want)
	}
}

func TestListParams_DefaultsOmitted(t *testing.T) {
	v := Default().ListParams(ListOptions{Size: 12})
	want := map[string][]string{"page": {"0"}, "size": {"12"}}
	if !reflect.DeepEqual(map[string][]string(v), want) {
		t.Errorf("ListParams = %v, want %v", v, want)
	}
}
