// Package links derives precise platform deep links for stored content.
// Resolution is a pure function over one record: no network, no store
// access, identical output for identical input.
package links

import (
	"net/url"
	"regexp"
	"strings"

	"scholar-watch/contenthub/internal/models"
)

// Input identifies the record whose link is being resolved.
type Input struct {
	SourceURL         string
	PlatformSlug      string
	ContentType       string
	PlatformContentID string
}

// Resolved is the outcome of link resolution. Rewritten marks URLs the
// resolver changed; Reason explains a rewrite or why none was possible.
type Resolved struct {
	URL       string `json:"url"`
	Rewritten bool   `json:"rewritten"`
	Reason    string `json:"reason,omitempty"`
}

var (
	numericID  = regexp.MustCompile(`^[0-9]+$`)
	bilibiliBV = regexp.MustCompile(`^BV[0-9A-Za-z]+$`)
)

// Query parameters bilibili share links carry that only serve tracking.
var bilibiliTrackingParams = []string{"spm_id_from", "share_tag", "share_source", "share_medium"}

// Resolve computes the best URL for navigating to the given record.
func Resolve(in Input) Resolved {
	if in.SourceURL == "" {
		return Resolved{}
	}

	if in.PlatformSlug == "bilibili" {
		if u, err := url.Parse(in.SourceURL); err == nil {
			return resolveBilibili(in, u)
		}
		// Unparseable URL: fall through to the generic rules.
	}
	return resolveGeneric(in)
}

func resolveBilibili(in Input, u *url.URL) Resolved {
	host := strings.ToLower(u.Hostname())
	isSearch := host == "search.bilibili.com"
	isVideo := strings.HasSuffix(host, "bilibili.com") && strings.HasPrefix(u.Path, "/video/")

	if in.ContentType == models.TypeComment {
		if !isVideo {
			return Resolved{URL: in.SourceURL, Reason: "bilibili comment links must point at a video page"}
		}
		// Already anchored to a comment.
		if u.Query().Has("comment_root_id") || strings.Contains(u.Fragment, "reply") {
			return Resolved{URL: in.SourceURL}
		}
		if !numericID.MatchString(in.PlatformContentID) {
			return Resolved{URL: in.SourceURL, Reason: "missing or non-numeric platformContentId"}
		}
		q := u.Query()
		q.Set("comment_on", "1")
		q.Set("comment_root_id", in.PlatformContentID)
		u.RawQuery = q.Encode()
		u.Fragment = "reply" + in.PlatformContentID
		return Resolved{URL: u.String(), Rewritten: true, Reason: "auto-located bilibili comment"}
	}

	// post
	if isSearch {
		if bilibiliBV.MatchString(in.PlatformContentID) {
			return Resolved{
				URL:       "https://www.bilibili.com/video/" + in.PlatformContentID,
				Rewritten: true,
				Reason:    "rewrote search link to video page",
			}
		}
		return Resolved{URL: in.SourceURL, Reason: "search result link cannot locate the item"}
	}

	q := u.Query()
	for _, k := range bilibiliTrackingParams {
		q.Del(k)
	}
	u.RawQuery = q.Encode()
	cleaned := u.String()
	if cleaned != in.SourceURL {
		return Resolved{URL: cleaned, Rewritten: true, Reason: "removed tracking parameters"}
	}
	return Resolved{URL: in.SourceURL}
}

func resolveGeneric(in Input) Resolved {
	if in.ContentType != models.TypeComment {
		return Resolved{URL: in.SourceURL}
	}
	if in.PlatformContentID != "" && strings.Contains(in.SourceURL, in.PlatformContentID) {
		// The link already embeds the comment's native ID.
		return Resolved{URL: in.SourceURL}
	}
	if in.PlatformContentID == "" {
		return Resolved{URL: in.SourceURL, Reason: "missing platformContentId"}
	}

	u, err := url.Parse(in.SourceURL)
	if err != nil {
		return Resolved{URL: in.SourceURL}
	}
	if u.Fragment != "" {
		// The URL carries a fragment of its own; appending another would
		// corrupt an already-precise link.
		return Resolved{URL: in.SourceURL}
	}

	u.Fragment = "comment-" + in.PlatformContentID
	if in.PlatformSlug == "zhihu" {
		return Resolved{URL: u.String(), Rewritten: true, Reason: "auto-located zhihu comment anchor"}
	}
	return Resolved{URL: u.String(), Rewritten: true, Reason: "auto-located via generic anchor, may be imprecise"}
}
