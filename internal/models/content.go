package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Content type values.
const (
	TypePost    = "post"
	TypeComment = "comment"
)

// TagList is a set of keyword tags stored as a JSON array in a TEXT column.
type TagList []string

// Value implements driver.Valuer.
func (t TagList) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *TagList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("cannot scan %T into TagList", src)
	}
}

// Content represents a row in the 'contents' table: one deduplicated post or
// comment captured from an external platform.
type Content struct {
	ID                int64          `db:"id" json:"id"`
	PlatformID        int64          `db:"platform_id" json:"platform_id"`
	ContentType       string         `db:"content_type" json:"content_type"`
	PlatformContentID sql.NullString `db:"platform_content_id" json:"platform_content_id,omitempty"`
	AuthorName        string         `db:"author_name" json:"author_name"`
	AuthorID          sql.NullString `db:"author_id" json:"author_id,omitempty"`
	AuthorAvatar      sql.NullString `db:"author_avatar" json:"author_avatar,omitempty"`
	Body              string         `db:"body" json:"body"`
	BodyMD5           string         `db:"body_md5" json:"body_md5"`
	Summary           string         `db:"summary" json:"summary"`
	PublishedAt       time.Time      `db:"published_at" json:"published_at"`
	SourceURL         string         `db:"source_url" json:"source_url"`
	KeywordTags       TagList        `db:"keyword_tags" json:"keyword_tags"`
	LikeCount         sql.NullInt64  `db:"like_count" json:"like_count,omitempty"`
	CommentCount      sql.NullInt64  `db:"comment_count" json:"comment_count,omitempty"`
	Replied           bool           `db:"replied" json:"replied"`
	RepliedAt         sql.NullTime   `db:"replied_at" json:"replied_at,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// CandidateItem is a normalized, not-yet-persisted content record. It only
// exists for the duration of a single ingestion call.
type CandidateItem struct {
	PlatformID        int64
	ContentType       string
	PlatformContentID string
	AuthorName        string
	AuthorID          string
	AuthorAvatar      string
	Body              string
	BodyMD5           string
	Summary           string
	PublishedAt       time.Time
	SourceURL         string
	KeywordTags       TagList
	LikeCount         *int64
	CommentCount      *int64
}

// RawItem is the wire shape of one record in an import payload or a
// collector output file. All fields are loosely typed; the normalizer
// validates them.
type RawItem struct {
	PlatformID        int64    `json:"platformId,omitempty"`
	PlatformSlug      string   `json:"platformSlug,omitempty"`
	ContentType       string   `json:"contentType,omitempty"`
	PlatformContentID string   `json:"platformContentId,omitempty"`
	AuthorName        string   `json:"authorName"`
	AuthorID          string   `json:"authorId,omitempty"`
	AuthorAvatar      string   `json:"authorAvatar,omitempty"`
	Body              string   `json:"body"`
	Summary           string   `json:"summary,omitempty"`
	PublishedAt       string   `json:"publishedAt"`
	SourceURL         string   `json:"sourceUrl"`
	KeywordTags       any      `json:"keywordTags,omitempty"`
	LikeCount         *float64 `json:"likeCount,omitempty"`
	CommentCount      *float64 `json:"commentCount,omitempty"`
}

// ReplyTemplate is a canned reply text selectable when replying to content.
type ReplyTemplate struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
