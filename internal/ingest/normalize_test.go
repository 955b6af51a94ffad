package ingest

import (
	"strings"
	"testing"
	"time"

	"scholar-watch/contenthub/internal/models"
)

func validRawItem() models.RawItem {
	return models.RawItem{
		PlatformSlug:      "bilibili",
		ContentType:       models.TypePost,
		PlatformContentID: "BV1abc",
		AuthorName:        "张三",
		Body:              "一条关于考研的视频",
		PublishedAt:       "2025-06-01T10:00:00Z",
		SourceURL:         "https://www.bilibili.com/video/BV1abc",
	}
}

func TestNormalizeItemValid(t *testing.T) {
	platforms := map[string]int64{"bilibili": 3}

	item, reason := NormalizeItem(validRawItem(), platforms)
	if reason != "" {
		t.Fatalf("expected no rejection, got %q", reason)
	}
	if item.PlatformID != 3 {
		t.Errorf("platform id = %d, want 3", item.PlatformID)
	}
	if item.ContentType != models.TypePost {
		t.Errorf("content type = %q, want post", item.ContentType)
	}
	if item.Summary != item.Body {
		t.Errorf("short body should become its own summary, got %q", item.Summary)
	}
	if item.BodyMD5 == "" {
		t.Error("body hash should be set")
	}
	want := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if !item.PublishedAt.Equal(want) {
		t.Errorf("published at = %v, want %v", item.PublishedAt, want)
	}
}

func TestNormalizeItemRejections(t *testing.T) {
	platforms := map[string]int64{"bilibili": 3}

	tests := []struct {
		name   string
		mutate func(*models.RawItem)
		reason string
	}{
		{
			name:   "unknown platform",
			mutate: func(r *models.RawItem) { r.PlatformSlug = "unknown" },
			reason: ReasonPlatformRequired,
		},
		{
			name:   "no platform at all",
			mutate: func(r *models.RawItem) { r.PlatformSlug = "" },
			reason: ReasonPlatformRequired,
		},
		{
			name:   "missing author",
			mutate: func(r *models.RawItem) { r.AuthorName = "  " },
			reason: ReasonFieldsRequired,
		},
		{
			name:   "missing body",
			mutate: func(r *models.RawItem) { r.Body = "" },
			reason: ReasonFieldsRequired,
		},
		{
			name:   "unparseable timestamp",
			mutate: func(r *models.RawItem) { r.PublishedAt = "yesterday" },
			reason: ReasonFieldsRequired,
		},
		{
			name:   "relative url",
			mutate: func(r *models.RawItem) { r.SourceURL = "/video/BV1abc" },
			reason: ReasonBadSourceURL,
		},
		{
			name:   "non-http scheme",
			mutate: func(r *models.RawItem) { r.SourceURL = "ftp://example.com/v/BV1abc" },
			reason: ReasonBadSourceURL,
		},
		{
			name:   "bare domain root",
			mutate: func(r *models.RawItem) { r.SourceURL = "https://www.bilibili.com/" },
			reason: ReasonBadSourceURL,
		},
		{
			name: "comment link without its id",
			mutate: func(r *models.RawItem) {
				r.ContentType = models.TypeComment
				r.PlatformContentID = "9876"
				r.SourceURL = "https://www.bilibili.com/video/BV1abc"
			},
			reason: ReasonCommentLink,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRawItem()
			tt.mutate(&raw)
			item, reason := NormalizeItem(raw, platforms)
			if reason != tt.reason {
				t.Errorf("reason = %q, want %q", reason, tt.reason)
			}
			if item != nil {
				t.Error("rejected item should be nil")
			}
		})
	}
}

func TestNormalizeItemCommentWithAnchoredLink(t *testing.T) {
	platforms := map[string]int64{"bilibili": 3}

	raw := validRawItem()
	raw.ContentType = models.TypeComment
	raw.PlatformContentID = "9876"
	raw.SourceURL = "https://www.bilibili.com/video/BV1abc?comment_on=1&comment_root_id=9876#reply9876"

	item, reason := NormalizeItem(raw, platforms)
	if reason != "" {
		t.Fatalf("expected acceptance, got %q", reason)
	}
	if item.ContentType != models.TypeComment {
		t.Errorf("content type = %q, want comment", item.ContentType)
	}
}

func TestNormalizeItemNumericPlatformIDWins(t *testing.T) {
	raw := validRawItem()
	raw.PlatformID = 7
	raw.PlatformSlug = "something-else"

	item, reason := NormalizeItem(raw, nil)
	if reason != "" {
		t.Fatalf("expected acceptance, got %q", reason)
	}
	if item.PlatformID != 7 {
		t.Errorf("platform id = %d, want 7", item.PlatformID)
	}
}

func TestNormalizeItemSummaryTruncation(t *testing.T) {
	platforms := map[string]int64{"bilibili": 3}

	raw := validRawItem()
	raw.Summary = ""
	raw.Body = strings.Repeat("考", 300)

	item, reason := NormalizeItem(raw, platforms)
	if reason != "" {
		t.Fatalf("expected acceptance, got %q", reason)
	}
	if got := len([]rune(item.Summary)); got != summaryMaxRunes {
		t.Errorf("summary rune length = %d, want %d", got, summaryMaxRunes)
	}
	if !strings.HasPrefix(raw.Body, item.Summary) {
		t.Error("summary must be a prefix of the body")
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{name: "nil", input: nil, want: nil},
		{name: "string slice", input: []string{"考研", "数学"}, want: []string{"考研", "数学"}},
		{name: "any slice", input: []any{"a", "b"}, want: []string{"a", "b"}},
		{
			name:  "mixed delimiters",
			input: "考研,数学；英语\n政治，复试",
			want:  []string{"考研", "数学", "英语", "政治", "复试"},
		},
		{
			name:  "trims and dedupes first wins",
			input: " a , b ,a, ,b ",
			want:  []string{"a", "b"},
		},
		{name: "only separators", input: ",;，；\n", want: nil},
		{name: "unsupported type", input: 42, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTags(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseTags(%v) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("tag[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBodyHashStable(t *testing.T) {
	a := BodyHash("same body")
	b := BodyHash("same body")
	if a != b {
		t.Errorf("hash not stable: %q vs %q", a, b)
	}
	if a == BodyHash("different body") {
		t.Error("different bodies must not collide in the test vector")
	}
	if len(a) != 32 {
		t.Errorf("hash length = %d, want 32 hex chars", len(a))
	}
}
