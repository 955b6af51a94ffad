package links

import (
	"net/url"
	"strings"
	"testing"

	"scholar-watch/contenthub/internal/models"
)

func TestResolveBilibiliPost(t *testing.T) {
	tests := []struct {
		name      string
		input     Input
		wantURL   string
		rewritten bool
	}{
		{
			name: "clean video link unchanged",
			input: Input{
				SourceURL:    "https://www.bilibili.com/video/BV1abc",
				PlatformSlug: "bilibili",
				ContentType:  models.TypePost,
			},
			wantURL: "https://www.bilibili.com/video/BV1abc",
		},
		{
			name: "tracking parameters stripped",
			input: Input{
				SourceURL:    "https://www.bilibili.com/video/BV1abc?spm_id_from=333.337&share_source=weibo&p=2",
				PlatformSlug: "bilibili",
				ContentType:  models.TypePost,
			},
			wantURL:   "https://www.bilibili.com/video/BV1abc?p=2",
			rewritten: true,
		},
		{
			name: "search link rewritten to video page",
			input: Input{
				SourceURL:         "https://search.bilibili.com/all?keyword=kaoyan",
				PlatformSlug:      "bilibili",
				ContentType:       models.TypePost,
				PlatformContentID: "BV1abc",
			},
			wantURL:   "https://www.bilibili.com/video/BV1abc",
			rewritten: true,
		},
		{
			name: "search link without BV id kept",
			input: Input{
				SourceURL:         "https://search.bilibili.com/all?keyword=kaoyan",
				PlatformSlug:      "bilibili",
				ContentType:       models.TypePost,
				PlatformContentID: "12345",
			},
			wantURL: "https://search.bilibili.com/all?keyword=kaoyan",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.input)
			if got.URL != tt.wantURL {
				t.Errorf("url = %q, want %q", got.URL, tt.wantURL)
			}
			if got.Rewritten != tt.rewritten {
				t.Errorf("rewritten = %v, want %v (%+v)", got.Rewritten, tt.rewritten, got)
			}
		})
	}
}

func TestResolveBilibiliComment(t *testing.T) {
	in := Input{
		SourceURL:         "https://www.bilibili.com/video/BV1abc",
		PlatformSlug:      "bilibili",
		ContentType:       models.TypeComment,
		PlatformContentID: "9876",
	}
	got := Resolve(in)
	if !got.Rewritten {
		t.Fatalf("expected a rewrite, got %+v", got)
	}

	u, err := url.Parse(got.URL)
	if err != nil {
		t.Fatalf("resolved url does not parse: %v", err)
	}
	if u.Query().Get("comment_root_id") != "9876" || u.Query().Get("comment_on") != "1" {
		t.Errorf("missing comment anchor parameters: %q", got.URL)
	}
	if u.Fragment != "reply9876" {
		t.Errorf("fragment = %q, want reply9876", u.Fragment)
	}
}

func TestResolveBilibiliCommentEdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		input Input
	}{
		{
			name: "already anchored link passes through",
			input: Input{
				SourceURL:         "https://www.bilibili.com/video/BV1abc?comment_on=1&comment_root_id=9876#reply9876",
				PlatformSlug:      "bilibili",
				ContentType:       models.TypeComment,
				PlatformContentID: "9876",
			},
		},
		{
			name: "non-video page cannot be anchored",
			input: Input{
				SourceURL:         "https://space.bilibili.com/123",
				PlatformSlug:      "bilibili",
				ContentType:       models.TypeComment,
				PlatformContentID: "9876",
			},
		},
		{
			name: "non-numeric comment id",
			input: Input{
				SourceURL:         "https://www.bilibili.com/video/BV1abc",
				PlatformSlug:      "bilibili",
				ContentType:       models.TypeComment,
				PlatformContentID: "abc",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.input)
			if got.Rewritten {
				t.Errorf("expected pass-through, got rewrite: %+v", got)
			}
			if got.URL != tt.input.SourceURL {
				t.Errorf("url changed without rewrite: %q", got.URL)
			}
		})
	}
}

func TestResolveGenericComment(t *testing.T) {
	t.Run("zhihu comment gets anchor", func(t *testing.T) {
		got := Resolve(Input{
			SourceURL:         "https://www.zhihu.com/question/1/answer/2",
			PlatformSlug:      "zhihu",
			ContentType:       models.TypeComment,
			PlatformContentID: "555",
		})
		if !got.Rewritten {
			t.Fatalf("expected rewrite, got %+v", got)
		}
		if !strings.HasSuffix(got.URL, "#comment-555") {
			t.Errorf("url = %q, want #comment-555 suffix", got.URL)
		}
	})

	t.Run("generic anchor flags imprecision", func(t *testing.T) {
		got := Resolve(Input{
			SourceURL:         "https://forum.example.com/thread/42",
			PlatformSlug:      "forum",
			ContentType:       models.TypeComment,
			PlatformContentID: "555",
		})
		if !got.Rewritten || !strings.HasSuffix(got.URL, "#comment-555") {
			t.Fatalf("expected anchored rewrite, got %+v", got)
		}
		if !strings.Contains(got.Reason, "imprecise") {
			t.Errorf("generic anchor should be flagged imprecise, got %q", got.Reason)
		}
	})

	t.Run("id already in url passes through", func(t *testing.T) {
		src := "https://forum.example.com/thread/42#post-555"
		got := Resolve(Input{
			SourceURL:         src,
			PlatformSlug:      "forum",
			ContentType:       models.TypeComment,
			PlatformContentID: "555",
		})
		if got.Rewritten || got.URL != src {
			t.Errorf("expected pass-through, got %+v", got)
		}
	})

	t.Run("existing fragment never doubled", func(t *testing.T) {
		src := "https://forum.example.com/thread/42#section"
		got := Resolve(Input{
			SourceURL:         src,
			PlatformSlug:      "forum",
			ContentType:       models.TypeComment,
			PlatformContentID: "555999",
		})
		if got.Rewritten || got.URL != src {
			t.Errorf("expected pass-through, got %+v", got)
		}
	})

	t.Run("missing id reported", func(t *testing.T) {
		got := Resolve(Input{
			SourceURL:    "https://forum.example.com/thread/42",
			PlatformSlug: "forum",
			ContentType:  models.TypeComment,
		})
		if got.Rewritten || got.Reason == "" {
			t.Errorf("expected unrewritten result with reason, got %+v", got)
		}
	})
}

func TestResolveIsPure(t *testing.T) {
	in := Input{
		SourceURL:         "https://www.bilibili.com/video/BV1abc?spm_id_from=share",
		PlatformSlug:      "bilibili",
		ContentType:       models.TypePost,
		PlatformContentID: "BV1abc",
	}
	first := Resolve(in)
	second := Resolve(in)
	if first != second {
		t.Errorf("resolution not deterministic: %+v vs %+v", first, second)
	}
}

func TestResolveEmptySourceURL(t *testing.T) {
	got := Resolve(Input{PlatformSlug: "bilibili", ContentType: models.TypePost})
	if got.URL != "" || got.Rewritten {
		t.Errorf("empty source should resolve to nothing, got %+v", got)
	}
}
