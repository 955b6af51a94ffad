// Package reply posts reply comments to external platforms on behalf of the
// authorized platform account.
package reply

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"scholar-watch/contenthub/internal/database"
	"scholar-watch/contenthub/internal/models"
)

// DefaultAPIBase is the zhihu comment API host.
const DefaultAPIBase = "https://api.zhihu.com"

var (
	// ErrNotAuthorized means the platform account has no usable access token.
	ErrNotAuthorized = errors.New("platform account is not authorized")
	// ErrUnsupportedPlatform means no sender exists for the content's platform.
	ErrUnsupportedPlatform = errors.New("replying is not supported for this platform")
	// ErrContentNotFound means the content id does not exist.
	ErrContentNotFound = errors.New("content not found")
)

// Sender delivers replies and records delivery on the content row.
type Sender struct {
	db         *database.DB
	apiBase    string
	httpClient *http.Client
}

// NewSender creates a reply sender over the given database.
func NewSender(db *database.DB) *Sender {
	return &Sender{
		db:         db,
		apiBase:    DefaultAPIBase,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type contentTarget struct {
	models.Content
	PlatformSlug string         `db:"platform_slug"`
	AccessToken  sql.NullString `db:"access_token"`
	AuthStatus   sql.NullString `db:"auth_status"`
}

// Send posts text as a reply to the content with the given id and marks the
// row as replied. Sending requires the content's platform to carry an
// authorized token.
func (s *Sender) Send(ctx context.Context, contentID int64, text string) error {
	var target contentTarget
	err := s.db.GetContext(ctx, &target, `
		SELECT c.*, p.slug AS platform_slug,
		       pa.access_token AS access_token, pa.status AS auth_status
		FROM contents c
		JOIN platforms p ON p.id = c.platform_id
		LEFT JOIN platform_auth pa ON pa.platform_id = c.platform_id
		WHERE c.id = ?`, contentID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrContentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load content %d: %w", contentID, err)
	}

	if target.AuthStatus.String != models.AuthStatusAuthed || target.AccessToken.String == "" {
		return fmt.Errorf("%w: platform %s", ErrNotAuthorized, target.PlatformSlug)
	}

	switch target.PlatformSlug {
	case "zhihu":
		if err := s.sendZhihu(ctx, &target, text); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, target.PlatformSlug)
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE contents SET replied = 1, replied_at = ? WHERE id = ?`,
		now, contentID); err != nil {
		return fmt.Errorf("reply sent but failed to mark content %d replied: %w", contentID, err)
	}

	log.Info().
		Int64("content_id", contentID).
		Str("platform", target.PlatformSlug).
		Msg("Reply sent")
	return nil
}

type zhihuCommentRequest struct {
	Content    string `json:"content"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
}

// sendZhihu posts a comment through the zhihu comment API. Posts are treated
// as answers; comments get a reply on the comment itself.
func (s *Sender) sendZhihu(ctx context.Context, target *contentTarget, text string) error {
	if !target.PlatformContentID.Valid || target.PlatformContentID.String == "" {
		return fmt.Errorf("content %d has no native id to reply to", target.ID)
	}

	targetType := "answer"
	if target.ContentType == models.TypeComment {
		targetType = "comment"
	}

	payload, err := json.Marshal(zhihuCommentRequest{
		Content:    text,
		TargetType: targetType,
		TargetID:   target.PlatformContentID.String,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal comment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.apiBase+"/comments", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+target.AccessToken.String)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("zhihu comment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: zhihu rejected the token (%d)", ErrNotAuthorized, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("zhihu comment request failed: %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
