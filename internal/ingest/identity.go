package ingest

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"scholar-watch/contenthub/internal/database"
)

// existingRow is the minimal projection needed to rebuild identity keys for
// rows already in the store.
type existingRow struct {
	PlatformID        int64  `db:"platform_id"`
	PlatformContentID string `db:"platform_content_id"`
	SourceURL         string `db:"source_url"`
}

// ExistingKeys prefetches, in a single query, every stored row that could
// collide with the batch and returns the set of its identity keys. The
// per-item dedup decision then becomes an in-memory set lookup.
func ExistingKeys(ctx context.Context, db *database.DB, batch []Candidate) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	if len(batch) == 0 {
		return keys, nil
	}

	var pcids, urls []string
	for _, c := range batch {
		if c.Item.PlatformContentID != "" {
			pcids = append(pcids, c.Item.PlatformContentID)
		}
		urls = append(urls, c.Item.SourceURL)
	}

	// The IN-lists over-select across platforms; key membership below
	// re-applies the platform scoping exactly.
	var (
		query string
		args  []any
		err   error
	)
	const cols = `SELECT platform_id, COALESCE(platform_content_id, '') AS platform_content_id, source_url FROM contents `
	if len(pcids) > 0 {
		query, args, err = sqlx.In(cols+`WHERE platform_content_id IN (?) OR source_url IN (?)`, pcids, urls)
	} else {
		query, args, err = sqlx.In(cols+`WHERE source_url IN (?)`, urls)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build existing-keys query: %w", err)
	}

	var rows []existingRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query existing content keys: %w", err)
	}

	for _, r := range rows {
		for _, k := range IdentityKeys(r.PlatformID, r.PlatformContentID, r.SourceURL) {
			keys[k] = struct{}{}
		}
	}
	return keys, nil
}

// PartitionByIdentity walks the batch in submitted order and splits it into
// accepted items and duplicate rejections. An item colliding with the store
// is rejected as a store duplicate; an item colliding with an earlier batch
// item is rejected as a batch duplicate (first occurrence wins).
func PartitionByIdentity(batch []Candidate, existing map[string]struct{}) (accepted []Candidate, rejected []Rejection) {
	incoming := make(map[string]struct{}, len(batch)*2)

	for _, c := range batch {
		keys := IdentityKeys(c.Item.PlatformID, c.Item.PlatformContentID, c.Item.SourceURL)

		inStore := false
		inBatch := false
		for _, k := range keys {
			if _, ok := existing[k]; ok {
				inStore = true
				break
			}
			if _, ok := incoming[k]; ok {
				inBatch = true
			}
		}

		switch {
		case inStore:
			rejected = append(rejected, Rejection{Index: c.Index, Reason: ReasonDuplicateStore})
		case inBatch:
			rejected = append(rejected, Rejection{Index: c.Index, Reason: ReasonDuplicateBatch})
		default:
			accepted = append(accepted, c)
			for _, k := range keys {
				incoming[k] = struct{}{}
			}
		}
	}
	return accepted, rejected
}
