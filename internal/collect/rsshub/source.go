// Package rsshub collects candidates from RSSHub keyword routes, which
// expose search feeds for platforms without a usable public API.
package rsshub

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"scholar-watch/contenthub/internal/collect"
	"scholar-watch/contenthub/internal/models"
)

const userAgent = "contenthub/1.0"

// Source reads one RSSHub route for one platform. The route template must
// contain a single %s placeholder for the escaped keyword, e.g.
// "https://rsshub.app/douyin/search/%s".
type Source struct {
	slug          string
	routeTemplate string
	parser        *gofeed.Parser
}

// New creates an RSSHub-backed source for the given platform slug.
func New(slug, routeTemplate string) *Source {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &Source{
		slug:          slug,
		routeTemplate: routeTemplate,
		parser:        parser,
	}
}

var _ collect.Source = (*Source)(nil)

func (s *Source) Slug() string {
	return s.slug
}

// FetchCandidates parses the keyword feed and maps entries to post items.
// Entries without a link are dropped; the feed GUID becomes the native ID
// when present.
func (s *Source) FetchCandidates(ctx context.Context, keyword string, budget collect.Budget) ([]models.RawItem, error) {
	feedURL := fmt.Sprintf(s.routeTemplate, url.QueryEscape(keyword))
	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feedURL, err)
	}

	var items []models.RawItem
	for _, entry := range feed.Items {
		if len(items) >= budget.PerKeyword {
			break
		}
		if entry.Link == "" {
			continue
		}

		body := collect.StripHTML(entry.Content)
		if body == "" {
			body = collect.StripHTML(entry.Description)
		}
		if body == "" {
			body = entry.Title
		}
		if body == "" {
			continue
		}

		author := ""
		if len(entry.Authors) > 0 {
			author = entry.Authors[0].Name
		}
		if author == "" && feed.Title != "" {
			author = feed.Title
		}
		if author == "" {
			author = s.slug
		}

		published := time.Now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		}

		items = append(items, models.RawItem{
			PlatformSlug:      s.slug,
			ContentType:       models.TypePost,
			PlatformContentID: entry.GUID,
			AuthorName:        author,
			Body:              body,
			Summary:           entry.Title,
			SourceURL:         entry.Link,
			PublishedAt:       published.Format(time.RFC3339),
			KeywordTags:       []string{keyword},
		})
	}
	return items, nil
}
