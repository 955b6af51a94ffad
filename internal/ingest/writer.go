package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"scholar-watch/contenthub/internal/database"
	"scholar-watch/contenthub/internal/models"
)

// Writer performs the idempotent bulk insert of accepted candidates.
type Writer struct {
	db *database.DB
}

// NewWriter creates a writer bound to the given database.
func NewWriter(db *database.DB) *Writer {
	return &Writer{db: db}
}

// Write inserts the accepted items in one transaction, skipping any row that
// hits a uniqueness conflict. Conflicts at this level mean a concurrent
// import won the race after the identity prefetch; they are counted, not
// errored. Returns (inserted, skipped).
func (w *Writer) Write(ctx context.Context, items []models.CandidateItem) (int, int, error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("content writer: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO contents (
			platform_id, content_type, platform_content_id,
			author_name, author_id, author_avatar,
			body, body_md5, summary, published_at, source_url,
			keyword_tags, like_count, comment_count, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING;`)
	if err != nil {
		return 0, 0, fmt.Errorf("content writer: failed to prepare batch insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	skipped := 0

	for _, item := range items {
		res, err := stmt.ExecContext(ctx,
			item.PlatformID, item.ContentType, nullString(item.PlatformContentID),
			item.AuthorName, nullString(item.AuthorID), nullString(item.AuthorAvatar),
			item.Body, item.BodyMD5, item.Summary, item.PublishedAt.UTC(), item.SourceURL,
			item.KeywordTags, nullInt(item.LikeCount), nullInt(item.CommentCount), now,
		)
		if err != nil {
			return inserted, skipped, fmt.Errorf("content writer: failed to insert %s: %w", item.SourceURL, err)
		}
		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return inserted, skipped, fmt.Errorf("content writer: failed to get rows affected for %s: %w", item.SourceURL, err)
		}
		if rowsAffected > 0 {
			inserted++
		} else {
			skipped++
			log.Debug().
				Str("url", item.SourceURL).
				Int64("platform_id", item.PlatformID).
				Msg("Uniqueness conflict on insert, row skipped")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("content writer: failed to commit transaction: %w", err)
	}
	return inserted, skipped, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
