package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"scholar-watch/contenthub/internal/database"
	"scholar-watch/contenthub/internal/models"
)

// ErrNoValidItems is returned when every submitted item failed validation.
// Duplicate-only batches are not an error; they simply insert nothing.
var ErrNoValidItems = errors.New("no valid items in batch")

// MaxReportedErrors bounds the per-item reasons reported back; the counters
// always cover the full batch.
const MaxReportedErrors = 100

// Result is the full accounting of one import call.
type Result struct {
	Total            int         `json:"total"`
	Inserted         int         `json:"inserted"`
	Invalid          int         `json:"invalid"`
	DuplicateInBatch int         `json:"duplicate_in_batch"`
	DuplicateInStore int         `json:"duplicate_in_store"`
	Skipped          int         `json:"skipped"`
	Errors           []Rejection `json:"errors"`
}

// Service runs the ingestion pipeline: normalize, resolve identity against
// the store, bulk write. One call is one synchronous unit; items fail
// individually, never the batch.
type Service struct {
	db     *database.DB
	writer *Writer
}

// NewService creates an ingestion service on the given database.
func NewService(db *database.DB) *Service {
	return &Service{db: db, writer: NewWriter(db)}
}

// Import runs the full pipeline over one batch of raw items.
func (s *Service) Import(ctx context.Context, items []models.RawItem) (*Result, error) {
	result := &Result{Total: len(items)}
	if len(items) == 0 {
		return result, ErrNoValidItems
	}

	platforms, err := s.resolvePlatforms(ctx, items)
	if err != nil {
		return nil, err
	}

	var batch []Candidate
	for i, raw := range items {
		item, reason := NormalizeItem(raw, platforms)
		if reason != "" {
			result.Invalid++
			result.Errors = append(result.Errors, Rejection{Index: i, Reason: reason})
			continue
		}
		batch = append(batch, Candidate{Index: i, Item: *item})
	}

	if len(batch) == 0 {
		capErrors(result)
		return result, ErrNoValidItems
	}

	existing, err := ExistingKeys(ctx, s.db, batch)
	if err != nil {
		return nil, err
	}

	accepted, duplicates := PartitionByIdentity(batch, existing)
	for _, rej := range duplicates {
		if rej.Reason == ReasonDuplicateStore {
			result.DuplicateInStore++
		} else {
			result.DuplicateInBatch++
		}
	}
	result.Errors = append(result.Errors, duplicates...)

	candidateItems := make([]models.CandidateItem, len(accepted))
	for i, c := range accepted {
		candidateItems[i] = c.Item
	}

	inserted, skipped, err := s.writer.Write(ctx, candidateItems)
	if err != nil {
		return nil, err
	}
	result.Inserted = inserted
	result.Skipped = skipped

	sort.Slice(result.Errors, func(i, j int) bool {
		return result.Errors[i].Index < result.Errors[j].Index
	})
	capErrors(result)

	log.Info().
		Int("total", result.Total).
		Int("inserted", result.Inserted).
		Int("invalid", result.Invalid).
		Int("duplicate_in_batch", result.DuplicateInBatch).
		Int("duplicate_in_store", result.DuplicateInStore).
		Int("skipped", result.Skipped).
		Msg("Import completed")
	return result, nil
}

// resolvePlatforms collects the distinct slugs in the batch and maps each to
// a platform ID, creating unknown platforms with name = slug.
func (s *Service) resolvePlatforms(ctx context.Context, items []models.RawItem) (map[string]int64, error) {
	slugs := make(map[string]struct{})
	for _, raw := range items {
		slug := strings.TrimSpace(raw.PlatformSlug)
		if raw.PlatformID <= 0 && slug != "" {
			slugs[slug] = struct{}{}
		}
	}

	platforms := make(map[string]int64, len(slugs))
	for slug := range slugs {
		id, err := s.db.EnsurePlatform(ctx, slug)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve platform %q: %w", slug, err)
		}
		platforms[slug] = id
	}
	return platforms, nil
}

func capErrors(r *Result) {
	if len(r.Errors) > MaxReportedErrors {
		r.Errors = r.Errors[:MaxReportedErrors]
	}
}
