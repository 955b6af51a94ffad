package ingest

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"scholar-watch/contenthub/internal/models"
)

// Rejection reports why one item of an import batch was not accepted.
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Rejection reasons. Validation reasons are distinct so callers can tell a
// malformed item from a link-invariant breach or a duplicate.
const (
	ReasonPlatformRequired = "platformId or platformSlug required"
	ReasonFieldsRequired   = "authorName, body, sourceUrl, publishedAt required"
	ReasonBadSourceURL     = "sourceUrl must be an absolute http(s) URL with a path"
	ReasonCommentLink      = "comment sourceUrl must contain platformContentId"
	ReasonDuplicateBatch   = "duplicate inside import batch"
	ReasonDuplicateStore   = "duplicate of stored content"
)

const summaryMaxRunes = 120

// Accepted publication timestamp layouts, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Candidate pairs a normalized item with its position in the submitted
// batch, so rejections produced later still point at the original payload.
type Candidate struct {
	Index int
	Item  models.CandidateItem
}

// NormalizeItem validates one raw record and converts it into a
// CandidateItem. platforms maps known slugs to platform IDs; the caller
// resolves (and creates) platforms for the whole batch up front.
func NormalizeItem(raw models.RawItem, platforms map[string]int64) (*models.CandidateItem, string) {
	platformID := raw.PlatformID
	if platformID <= 0 {
		slug := strings.TrimSpace(raw.PlatformSlug)
		id, ok := platforms[slug]
		if !ok || slug == "" {
			return nil, ReasonPlatformRequired
		}
		platformID = id
	}

	authorName := strings.TrimSpace(raw.AuthorName)
	body := strings.TrimSpace(raw.Body)
	sourceURL := strings.TrimSpace(raw.SourceURL)
	publishedAt, timeOK := parseTime(raw.PublishedAt)
	if authorName == "" || body == "" || sourceURL == "" || !timeOK {
		return nil, ReasonFieldsRequired
	}

	if !isContentURL(sourceURL) {
		return nil, ReasonBadSourceURL
	}

	contentType := models.TypePost
	if raw.ContentType == models.TypeComment {
		contentType = models.TypeComment
	}

	platformContentID := strings.TrimSpace(raw.PlatformContentID)
	// A comment link must already point at the individual comment, which
	// implies its native ID appears somewhere in the URL.
	if contentType == models.TypeComment && platformContentID != "" &&
		!strings.Contains(sourceURL, platformContentID) {
		return nil, ReasonCommentLink
	}

	summary := strings.TrimSpace(raw.Summary)
	if summary == "" {
		summary = truncateRunes(body, summaryMaxRunes)
	}

	item := models.CandidateItem{
		PlatformID:        platformID,
		ContentType:       contentType,
		PlatformContentID: platformContentID,
		AuthorName:        authorName,
		AuthorID:          strings.TrimSpace(raw.AuthorID),
		AuthorAvatar:      strings.TrimSpace(raw.AuthorAvatar),
		Body:              body,
		BodyMD5:           BodyHash(body),
		Summary:           summary,
		PublishedAt:       publishedAt,
		SourceURL:         sourceURL,
		KeywordTags:       ParseTags(raw.KeywordTags),
	}
	if raw.LikeCount != nil {
		v := int64(*raw.LikeCount)
		item.LikeCount = &v
	}
	if raw.CommentCount != nil {
		v := int64(*raw.CommentCount)
		item.CommentCount = &v
	}
	return &item, ""
}

// BodyHash computes the content hash over the body text. It is a change
// signal for observability, not part of the identity key.
func BodyHash(body string) string {
	sum := md5.Sum([]byte(body))
	return hex.EncodeToString(sum[:])
}

// ParseTags accepts either an array of strings or a single delimited string
// (comma, Chinese comma, semicolon, Chinese semicolon, newline). Tags are
// trimmed, empties dropped and duplicates removed, keeping first occurrence.
func ParseTags(input any) models.TagList {
	var parts []string
	switch v := input.(type) {
	case nil:
		return nil
	case []string:
		parts = v
	case []any:
		for _, e := range v {
			parts = append(parts, fmt.Sprintf("%v", e))
		}
	case string:
		parts = strings.FieldsFunc(v, func(r rune) bool {
			switch r {
			case ',', '，', ';', '；', '\n':
				return true
			}
			return false
		})
	default:
		return nil
	}

	seen := make(map[string]struct{}, len(parts))
	tags := make(models.TagList, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		tags = append(tags, p)
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// isContentURL requires an absolute http(s) URL pointing at an actual page,
// not a bare domain or root path.
func isContentURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}
	return len(u.Path) > 1
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
