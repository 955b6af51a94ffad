package dedupe

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"scholar-watch/contenthub/internal/database"
	"scholar-watch/contenthub/internal/ingest"
)

// deleteChunkSize keeps the id list under SQLite's bound-parameter limit.
const deleteChunkSize = 500

// Result reports one maintenance sweep.
type Result struct {
	DuplicateGroups int   `json:"duplicate_groups"`
	DuplicateRows   int   `json:"duplicate_rows"`
	Deleted         int64 `json:"deleted"`
	DryRun          bool  `json:"dry_run"`
}

// Sweep scans the whole store for groups of rows sharing a composite
// identity key and removes all but one representative per group. The
// retained row is the one with the latest publication time, ties broken by
// latest creation time, then highest id. With dryRun the duplicates are only
// counted. Running the sweep twice in a row deletes nothing the second time.
func Sweep(ctx context.Context, db *database.DB, dryRun bool) (*Result, error) {
	// Ranking happens store-side so cost stays with the query planner, not
	// with row-by-row round-trips.
	query := fmt.Sprintf(`
		SELECT id, rn FROM (
			SELECT id, ROW_NUMBER() OVER (
				PARTITION BY platform_id, %s
				ORDER BY published_at DESC, created_at DESC, id DESC
			) AS rn
			FROM contents
		) ranked
		WHERE rn > 1`, ingest.GroupKeySQL)

	var ranked []struct {
		ID int64 `db:"id"`
		RN int64 `db:"rn"`
	}
	if err := db.SelectContext(ctx, &ranked, query); err != nil {
		return nil, fmt.Errorf("failed to rank duplicate contents: %w", err)
	}

	result := &Result{DryRun: dryRun, DuplicateRows: len(ranked)}
	ids := make([]int64, 0, len(ranked))
	for _, r := range ranked {
		ids = append(ids, r.ID)
		if r.RN == 2 {
			// Exactly one rank-2 row per group with duplicates.
			result.DuplicateGroups++
		}
	}

	if dryRun || len(ids) == 0 {
		log.Info().
			Int("duplicate_groups", result.DuplicateGroups).
			Int("duplicate_rows", result.DuplicateRows).
			Bool("dry_run", dryRun).
			Msg("Dedup sweep scan finished")
		return result, nil
	}

	// One transaction for the whole delete, so a failed chunk leaves the
	// store untouched.
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin sweep transaction: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(ids); start += deleteChunkSize {
		end := start + deleteChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		query, args, err := sqlx.In("DELETE FROM contents WHERE id IN (?)", ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to build delete query: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to delete duplicate contents: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			result.Deleted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sweep transaction: %w", err)
	}

	log.Info().
		Int("duplicate_groups", result.DuplicateGroups).
		Int64("deleted", result.Deleted).
		Msg("Dedup sweep finished")
	return result, nil
}
