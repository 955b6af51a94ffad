// Package bilibili collects videos and their top comments through the
// public web API used by the bilibili search page.
package bilibili

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"scholar-watch/contenthub/internal/collect"
	"scholar-watch/contenthub/internal/models"
)

const (
	DefaultBaseURL = "https://api.bilibili.com"
	videoPageBase  = "https://www.bilibili.com/video/"

	slug       = "bilibili"
	pageSize   = 20
	userAgent  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	refererURL = "https://www.bilibili.com/"
)

// Source fetches candidates from the bilibili search and reply APIs.
type Source struct {
	BaseURL    string
	Cookie     string
	HTTPClient *http.Client
	limiter    *rate.Limiter
}

// New creates a bilibili source. cookie is an optional session cookie that
// reduces request failures on the search API.
func New(cookie string) *Source {
	return &Source{
		BaseURL:    DefaultBaseURL,
		Cookie:     cookie,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	}
}

var _ collect.Source = (*Source)(nil)

func (s *Source) Slug() string {
	return slug
}

type searchResponse struct {
	Code int `json:"code"`
	Data struct {
		Result []struct {
			BVID        string `json:"bvid"`
			AID         int64  `json:"aid"`
			Title       string `json:"title"`
			Description string `json:"description"`
			Author      string `json:"author"`
			PubDate     int64  `json:"pubdate"`
			Like        *int64 `json:"like"`
			Review      *int64 `json:"review"`
		} `json:"result"`
	} `json:"data"`
}

type replyResponse struct {
	Code int `json:"code"`
	Data struct {
		Replies []struct {
			RPID       int64 `json:"rpid"`
			CTime      int64 `json:"ctime"`
			Like       *int64 `json:"like"`
			ReplyCount *int64 `json:"rcount"`
			Content    struct {
				Message string `json:"message"`
			} `json:"content"`
			Member struct {
				MID    json.Number `json:"mid"`
				UName  string      `json:"uname"`
				Avatar string      `json:"avatar"`
			} `json:"member"`
		} `json:"replies"`
	} `json:"data"`
}

// FetchCandidates pages through video search results for the keyword until
// the budget is reached or a page yields nothing usable. For each video it
// also fetches up to CommentsPerPost top-level comments; a failed comment
// fetch is logged
// and does not abort the video's emission.
func (s *Source) FetchCandidates(ctx context.Context, keyword string, budget collect.Budget) ([]models.RawItem, error) {
	var items []models.RawItem
	collected := 0

	for page := 1; collected < budget.PerKeyword; page++ {
		searchURL := fmt.Sprintf("%s/x/web-interface/search/type?search_type=video&keyword=%s&page=%d&page_size=%d",
			s.BaseURL, url.QueryEscape(keyword), page, pageSize)

		var resp searchResponse
		if err := s.getJSON(ctx, searchURL, &resp); err != nil {
			return items, fmt.Errorf("bilibili search page %d failed: %w", page, err)
		}
		if len(resp.Data.Result) == 0 {
			break
		}

		pageStart := collected
		for _, r := range resp.Data.Result {
			if collected >= budget.PerKeyword {
				break
			}
			if r.BVID == "" {
				continue
			}

			title := collect.StripHTML(r.Title)
			if title == "" {
				title = collect.StripHTML(r.Description)
			}
			author := r.Author
			if author == "" {
				author = "B站用户"
			}
			sourceURL := videoPageBase + r.BVID

			items = append(items, models.RawItem{
				PlatformSlug:      slug,
				ContentType:       models.TypePost,
				PlatformContentID: r.BVID,
				AuthorName:        author,
				Body:              title,
				Summary:           title,
				SourceURL:         sourceURL,
				PublishedAt:       unixToRFC3339(r.PubDate),
				KeywordTags:       []string{keyword},
				LikeCount:         floatPtr(r.Like),
				CommentCount:      floatPtr(r.Review),
			})
			collected++

			if budget.CommentsPerPost > 0 && r.AID > 0 {
				comments, err := s.fetchComments(ctx, r.AID, sourceURL, keyword, budget.CommentsPerPost)
				if err != nil {
					log.Warn().Err(err).
						Str("bvid", r.BVID).
						Msg("Failed to fetch comments for video, continuing")
					continue
				}
				items = append(items, comments...)
			}
		}

		// A non-empty page with no usable entries means the API is padding
		// results; paging further would never advance.
		if collected == pageStart {
			break
		}
	}
	return items, nil
}

// fetchComments returns up to limit top-level comments for one video. The
// comment source URL embeds the comment's native ID as both a query
// parameter and a fragment, so the link already points at the comment.
func (s *Source) fetchComments(ctx context.Context, aid int64, videoURL, keyword string, limit int) ([]models.RawItem, error) {
	replyURL := fmt.Sprintf("%s/x/v2/reply?type=1&oid=%d&pn=1&ps=%d", s.BaseURL, aid, limit)

	var resp replyResponse
	if err := s.getJSON(ctx, replyURL, &resp); err != nil {
		return nil, err
	}

	var items []models.RawItem
	for _, reply := range resp.Data.Replies {
		if reply.RPID == 0 || reply.Content.Message == "" {
			continue
		}
		rpid := strconv.FormatInt(reply.RPID, 10)
		uname := reply.Member.UName
		if uname == "" {
			uname = "B站用户"
		}
		items = append(items, models.RawItem{
			PlatformSlug:      slug,
			ContentType:       models.TypeComment,
			PlatformContentID: rpid,
			AuthorName:        uname,
			AuthorID:          reply.Member.MID.String(),
			AuthorAvatar:      reply.Member.Avatar,
			Body:              reply.Content.Message,
			SourceURL:         fmt.Sprintf("%s?comment_on=1&comment_root_id=%s#reply%s", videoURL, rpid, rpid),
			PublishedAt:       unixToRFC3339(reply.CTime),
			KeywordTags:       []string{keyword},
			LikeCount:         floatPtr(reply.Like),
			CommentCount:      floatPtr(reply.ReplyCount),
		})
	}
	return items, nil
}

func (s *Source) getJSON(ctx context.Context, rawURL string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", refererURL)
	if s.Cookie != "" {
		req.Header.Set("Cookie", s.Cookie)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func unixToRFC3339(sec int64) string {
	if sec <= 0 {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

func floatPtr(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
