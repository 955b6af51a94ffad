// Package collect gathers candidate content from external platforms.
// Each platform is one Source behind a flat slug registry; a Collector run
// walks keywords and sources, dedupes within the run and returns raw items
// in the same wire shape the import pipeline accepts.
package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"scholar-watch/contenthub/internal/models"
)

// Budget bounds one collection run per keyword.
type Budget struct {
	PerKeyword      int
	CommentsPerPost int
}

// Source produces candidate items for one platform. Implementations are
// restartable per keyword and keep no cross-call state.
type Source interface {
	Slug() string
	FetchCandidates(ctx context.Context, keyword string, budget Budget) ([]models.RawItem, error)
}

// Collector runs a set of sources over a set of keywords.
type Collector struct {
	sources map[string]Source
	order   []string
}

// New builds a collector over the given sources. Later sources with the
// same slug replace earlier ones.
func New(sources ...Source) *Collector {
	c := &Collector{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		if _, exists := c.sources[s.Slug()]; !exists {
			c.order = append(c.order, s.Slug())
		}
		c.sources[s.Slug()] = s
	}
	return c
}

// Source returns the registered source for a slug.
func (c *Collector) Source(slug string) (Source, bool) {
	s, ok := c.sources[slug]
	return s, ok
}

// Run collects candidates for every keyword from every requested platform.
// platforms == nil means all registered sources. A failed fetch aborts only
// that platform/keyword pair; partial results are returned. Items are
// deduplicated within the run by (platform, type, native ID).
func (c *Collector) Run(ctx context.Context, keywords, platforms []string, budget Budget) []models.RawItem {
	slugs := platforms
	if len(slugs) == 0 {
		slugs = c.order
	}

	var items []models.RawItem
	seen := make(map[string]struct{})

	for _, keyword := range keywords {
		for _, slug := range slugs {
			source, ok := c.sources[slug]
			if !ok {
				log.Warn().Str("platform", slug).Msg("No source registered for platform, skipping")
				continue
			}
			if ctx.Err() != nil {
				log.Info().Err(ctx.Err()).Msg("Collection cancelled, returning partial result")
				return items
			}

			fetched, err := source.FetchCandidates(ctx, keyword, budget)
			if err != nil {
				log.Error().Err(err).
					Str("platform", slug).
					Str("keyword", keyword).
					Msg("Failed to collect candidates")
				continue
			}

			added := 0
			for _, item := range fetched {
				key := runKey(item)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				items = append(items, item)
				added++
			}
			log.Info().
				Str("platform", slug).
				Str("keyword", keyword).
				Int("fetched", len(fetched)).
				Int("added", added).
				Msg("Collected candidates")
		}
	}
	return items
}

// runKey identifies an item within a single run; items without a native ID
// fall back to their source URL.
func runKey(item models.RawItem) string {
	id := item.PlatformContentID
	if id == "" {
		id = item.SourceURL
	}
	return fmt.Sprintf("%s:%s:%s", item.PlatformSlug, item.ContentType, id)
}

// WriteSink writes collected items as indented JSON to the given path,
// the format the import command and endpoint accept.
func WriteSink(path string, items []models.RawItem) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal collected items: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write sink file %s: %w", path, err)
	}
	return nil
}

var (
	htmlTags   = regexp.MustCompile(`<[^>]+>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// StripHTML removes markup and collapses whitespace in listing snippets.
func StripHTML(s string) string {
	s = htmlTags.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
