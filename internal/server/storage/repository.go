package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"scholar-watch/contenthub/internal/database"
	"scholar-watch/contenthub/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ContentFilter narrows a content listing. Zero values mean "no filter".
type ContentFilter struct {
	PlatformID    *int64
	ContentType   string
	Keyword       string
	Replied       *bool
	PublishedFrom *time.Time
	PublishedTo   *time.Time
	Page          int
	PageSize      int
}

// ContentWithPlatform is a content row joined with its platform identity.
type ContentWithPlatform struct {
	models.Content
	PlatformSlug string `db:"platform_slug" json:"platform_slug"`
	PlatformName string `db:"platform_name" json:"platform_name"`
}

// Stats is the aggregate snapshot served by the admin stats endpoint.
type Stats struct {
	TotalContents int64           `json:"total_contents"`
	Posts         int64           `json:"posts"`
	Comments      int64           `json:"comments"`
	Replied       int64           `json:"replied"`
	ByPlatform    []PlatformCount `json:"by_platform"`
}

// PlatformCount is the per-platform slice of Stats.
type PlatformCount struct {
	PlatformID   int64  `db:"platform_id" json:"platform_id"`
	PlatformSlug string `db:"platform_slug" json:"platform_slug"`
	Count        int64  `db:"count" json:"count"`
}

// ContentRepository defines the read and template operations behind the API.
type ContentRepository interface {
	ListContents(ctx context.Context, filter ContentFilter) ([]ContentWithPlatform, int64, error)
	GetContent(ctx context.Context, id int64) (*ContentWithPlatform, error)
	FetchFeed(ctx context.Context, limit int, since, cursorTimestamp *time.Time, cursorID *int64) ([]models.Content, error)
	ListPlatforms(ctx context.Context) ([]models.Platform, error)
	Stats(ctx context.Context) (*Stats, error)

	ListTemplates(ctx context.Context) ([]models.ReplyTemplate, error)
	CreateTemplate(ctx context.Context, title, content string) (*models.ReplyTemplate, error)
	UpdateTemplate(ctx context.Context, id int64, title, content string) (*models.ReplyTemplate, error)
	DeleteTemplate(ctx context.Context, id int64) error
}

// sqlxRepository implements ContentRepository using sqlx.
type sqlxRepository struct {
	db *database.DB
}

// NewRepository creates a new repository instance.
func NewRepository(db *database.DB) ContentRepository {
	return &sqlxRepository{db: db}
}

// contentWhere builds the WHERE clause shared by the list and count queries.
func contentWhere(filter ContentFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.PlatformID != nil {
		conds = append(conds, "c.platform_id = ?")
		args = append(args, *filter.PlatformID)
	}
	if filter.ContentType != "" {
		conds = append(conds, "c.content_type = ?")
		args = append(args, filter.ContentType)
	}
	if filter.Keyword != "" {
		pattern := "%" + filter.Keyword + "%"
		conds = append(conds, "(c.body LIKE ? OR c.summary LIKE ? OR c.keyword_tags LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	if filter.Replied != nil {
		conds = append(conds, "c.replied = ?")
		args = append(args, *filter.Replied)
	}
	if filter.PublishedFrom != nil {
		conds = append(conds, "c.published_at >= ?")
		args = append(args, filter.PublishedFrom.UTC())
	}
	if filter.PublishedTo != nil {
		conds = append(conds, "c.published_at <= ?")
		args = append(args, filter.PublishedTo.UTC())
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListContents returns one page of contents newest-first plus the total
// match count for the filter.
func (r *sqlxRepository) ListContents(ctx context.Context, filter ContentFilter) ([]ContentWithPlatform, int64, error) {
	where, args := contentWhere(filter)

	var total int64
	countQuery := "SELECT COUNT(*) FROM contents c" + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count contents: %w", err)
	}

	query := `
		SELECT c.*, p.slug AS platform_slug, p.name AS platform_name
		FROM contents c
		JOIN platforms p ON p.id = c.platform_id` + where + `
		ORDER BY c.published_at DESC, c.id DESC
		LIMIT ? OFFSET ?`
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	items := []ContentWithPlatform{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list contents: %w", err)
	}
	return items, total, nil
}

// GetContent returns one content row joined with its platform.
func (r *sqlxRepository) GetContent(ctx context.Context, id int64) (*ContentWithPlatform, error) {
	var item ContentWithPlatform
	err := r.db.GetContext(ctx, &item, `
		SELECT c.*, p.slug AS platform_slug, p.name AS platform_name
		FROM contents c
		JOIN platforms p ON p.id = c.platform_id
		WHERE c.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content %d: %w", id, err)
	}
	return &item, nil
}

// FetchFeed retrieves contents for incremental consumers, ordered by
// creation so a cursor never skips rows.
func (r *sqlxRepository) FetchFeed(ctx context.Context, limit int, since, cursorTimestamp *time.Time, cursorID *int64) ([]models.Content, error) {
	var items []models.Content
	var query string
	var args []any

	const baseQuery = `SELECT * FROM contents `
	const orderBy = ` ORDER BY created_at ASC, id ASC LIMIT ?`

	if cursorTimestamp != nil && cursorID != nil {
		query = baseQuery + `WHERE (created_at > ?) OR (created_at = ? AND id > ?)` + orderBy
		args = append(args, cursorTimestamp.UTC(), cursorTimestamp.UTC(), *cursorID, limit)
	} else if since != nil {
		query = baseQuery + `WHERE created_at > ?` + orderBy
		args = append(args, since.UTC(), limit)
	} else {
		return nil, fmt.Errorf("either 'since' or cursor parameters must be provided")
	}

	err := r.db.SelectContext(ctx, &items, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Content{}, nil
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return items, nil
}

// ListPlatforms returns all platforms ordered by id.
func (r *sqlxRepository) ListPlatforms(ctx context.Context) ([]models.Platform, error) {
	platforms := []models.Platform{}
	err := r.db.SelectContext(ctx, &platforms, `SELECT * FROM platforms ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}
	return platforms, nil
}

// Stats collects the aggregate counters in one pass per dimension.
func (r *sqlxRepository) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats

	err := r.db.GetContext(ctx, &stats.TotalContents, `SELECT COUNT(*) FROM contents`)
	if err != nil {
		return nil, fmt.Errorf("failed to count contents: %w", err)
	}
	err = r.db.GetContext(ctx, &stats.Posts,
		`SELECT COUNT(*) FROM contents WHERE content_type = ?`, models.TypePost)
	if err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}
	err = r.db.GetContext(ctx, &stats.Comments,
		`SELECT COUNT(*) FROM contents WHERE content_type = ?`, models.TypeComment)
	if err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}
	err = r.db.GetContext(ctx, &stats.Replied, `SELECT COUNT(*) FROM contents WHERE replied = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to count replied contents: %w", err)
	}

	stats.ByPlatform = []PlatformCount{}
	err = r.db.SelectContext(ctx, &stats.ByPlatform, `
		SELECT c.platform_id, p.slug AS platform_slug, COUNT(*) AS count
		FROM contents c
		JOIN platforms p ON p.id = c.platform_id
		GROUP BY c.platform_id
		ORDER BY count DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to count contents per platform: %w", err)
	}
	return &stats, nil
}

// ListTemplates returns all reply templates, newest first.
func (r *sqlxRepository) ListTemplates(ctx context.Context) ([]models.ReplyTemplate, error) {
	templates := []models.ReplyTemplate{}
	err := r.db.SelectContext(ctx, &templates,
		`SELECT * FROM reply_templates ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reply templates: %w", err)
	}
	return templates, nil
}

// CreateTemplate inserts a reply template and returns the stored row.
func (r *sqlxRepository) CreateTemplate(ctx context.Context, title, content string) (*models.ReplyTemplate, error) {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO reply_templates (title, content, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		title, content, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create reply template: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new template id: %w", err)
	}
	return r.getTemplate(ctx, id)
}

// UpdateTemplate overwrites a template's title and content.
func (r *sqlxRepository) UpdateTemplate(ctx context.Context, id int64, title, content string) (*models.ReplyTemplate, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reply_templates SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
		title, content, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update reply template %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return r.getTemplate(ctx, id)
}

// DeleteTemplate removes a template.
func (r *sqlxRepository) DeleteTemplate(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reply_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reply template %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlxRepository) getTemplate(ctx context.Context, id int64) (*models.ReplyTemplate, error) {
	var template models.ReplyTemplate
	err := r.db.GetContext(ctx, &template, `SELECT * FROM reply_templates WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reply template %d: %w", id, err)
	}
	return &template, nil
}
