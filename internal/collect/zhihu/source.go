// Package zhihu collects questions and answers from the zhihu content
// search page. The page is server-rendered enough that anchor extraction
// works without a browser.
package zhihu

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"scholar-watch/contenthub/internal/collect"
	"scholar-watch/contenthub/internal/models"
)

const (
	DefaultBaseURL = "https://www.zhihu.com"

	slug      = "zhihu"
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

var (
	answerID   = regexp.MustCompile(`/answer/(\d+)`)
	questionID = regexp.MustCompile(`/question/(\d+)`)
)

// Source fetches candidates from the zhihu search page.
type Source struct {
	BaseURL    string
	Cookie     string
	HTTPClient *http.Client
	limiter    *rate.Limiter
}

// New creates a zhihu source. cookie is an optional session cookie.
func New(cookie string) *Source {
	return &Source{
		BaseURL:    DefaultBaseURL,
		Cookie:     cookie,
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

var _ collect.Source = (*Source)(nil)

func (s *Source) Slug() string {
	return slug
}

// FetchCandidates loads the search result page for the keyword and extracts
// question/answer links. The search page carries no author or timestamp per
// result, so items get a placeholder author and the collection time.
func (s *Source) FetchCandidates(ctx context.Context, keyword string, budget collect.Budget) ([]models.RawItem, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	searchURL := fmt.Sprintf("%s/search?type=content&q=%s", s.BaseURL, url.QueryEscape(keyword))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if s.Cookie != "" {
		req.Header.Set("Cookie", s.Cookie)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zhihu search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("zhihu search failed: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse zhihu search page: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	var items []models.RawItem

	doc.Find(`a[href*="zhihu.com/question"], a[href^="/question"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(items) >= budget.PerKeyword {
			return false
		}
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return true
		}
		if !strings.HasPrefix(href, "http") {
			href = "https://www.zhihu.com" + href
		}
		clean := strings.SplitN(href, "?", 2)[0]

		id := firstMatch(answerID, clean)
		if id == "" {
			id = firstMatch(questionID, clean)
		}
		if id == "" {
			return true
		}

		title := strings.TrimSpace(sel.Text())
		if title == "" {
			title = "知乎内容 " + id
		}

		items = append(items, models.RawItem{
			PlatformSlug:      slug,
			ContentType:       models.TypePost,
			PlatformContentID: id,
			AuthorName:        "知乎用户",
			Body:              title,
			SourceURL:         clean,
			PublishedAt:       now,
			KeywordTags:       []string{keyword},
		})
		return true
	})

	return items, nil
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
