package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"scholar-watch/contenthub/internal/database"
	"scholar-watch/contenthub/internal/ingest"
	"scholar-watch/contenthub/internal/links"
	"scholar-watch/contenthub/internal/models"
	"scholar-watch/contenthub/internal/server/storage"
	"scholar-watch/contenthub/internal/zhihuauth"
)

func newTestHandler(t *testing.T) (*Handler, *database.DB) {
	t.Helper()
	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewHandler(db, zhihuauth.Config{}, 100), db
}

func newTestMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/platforms", h.ListPlatforms)
	mux.HandleFunc("GET /v1/contents", h.ListContents)
	mux.HandleFunc("GET /v1/contents/feed", h.GetFeed)
	mux.HandleFunc("GET /v1/contents/{id}", h.GetContent)
	mux.HandleFunc("GET /v1/contents/{id}/link", h.GetContentLink)
	mux.HandleFunc("GET /v1/reply-templates", h.ListTemplates)
	mux.HandleFunc("POST /v1/admin/contents/import", h.ImportContents)
	mux.HandleFunc("POST /v1/admin/maintenance/dedupe", h.RunDedupe)
	mux.HandleFunc("GET /v1/admin/stats", h.GetStats)
	mux.HandleFunc("POST /v1/admin/reply-templates", h.CreateTemplate)
	mux.HandleFunc("PUT /v1/admin/reply-templates/{id}", h.UpdateTemplate)
	mux.HandleFunc("DELETE /v1/admin/reply-templates/{id}", h.DeleteTemplate)
	mux.HandleFunc("GET /v1/admin/oauth/zhihu/url", h.ZhihuAuthURL)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, rec.Body.String())
	}
	return v
}

const importBatch = `[
	{"platformSlug":"bilibili","contentType":"post","platformContentId":"BV1",
	 "authorName":"up主","body":"考研视频","publishedAt":"2025-06-01T10:00:00Z",
	 "sourceUrl":"https://www.bilibili.com/video/BV1","keywordTags":"考研,数学"},
	{"platformSlug":"zhihu","contentType":"post","platformContentId":"200",
	 "authorName":"张三","body":"回答内容","publishedAt":"2025-06-01T11:00:00Z",
	 "sourceUrl":"https://www.zhihu.com/question/1/answer/200"}
]`

func TestImportEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	rec := doJSON(t, mux, http.MethodPost, "/v1/admin/contents/import", importBatch)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	result := decodeBody[ingest.Result](t, rec)
	if result.Inserted != 2 {
		t.Errorf("inserted = %d, want 2: %+v", result.Inserted, result)
	}

	// Replaying the batch reports store duplicates but stays a success.
	rec = doJSON(t, mux, http.MethodPost, "/v1/admin/contents/import", importBatch)
	if rec.Code != http.StatusOK {
		t.Fatalf("replay status = %d", rec.Code)
	}
	result = decodeBody[ingest.Result](t, rec)
	if result.Inserted != 0 || result.DuplicateInStore != 2 {
		t.Errorf("replay accounting: %+v", result)
	}
}

func TestImportEndpointEnvelope(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	rec := doJSON(t, mux, http.MethodPost, "/v1/admin/contents/import",
		fmt.Sprintf(`{"items": %s}`, importBatch))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestImportEndpointAllInvalid(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	rec := doJSON(t, mux, http.MethodPost, "/v1/admin/contents/import",
		`[{"platformSlug":"bilibili","body":"no author"}]`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	result := decodeBody[ingest.Result](t, rec)
	if result.Invalid != 1 {
		t.Errorf("invalid = %d, want 1", result.Invalid)
	}
}

func TestImportEndpointMalformedElement(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	body := `[
		{"platformSlug":"bilibili","contentType":"post","platformContentId":"BVmix",
		 "authorName":"up主","body":"视频","publishedAt":"2025-06-01T10:00:00Z",
		 "sourceUrl":"https://www.bilibili.com/video/BVmix"},
		123,
		"not an item"
	]`
	rec := doJSON(t, mux, http.MethodPost, "/v1/admin/contents/import", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	result := decodeBody[ingest.Result](t, rec)
	if result.Total != 3 || result.Inserted != 1 || result.Invalid != 2 {
		t.Fatalf("accounting: %+v", result)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("errors: %+v", result.Errors)
	}
	for i, want := range []int{1, 2} {
		if result.Errors[i].Index != want || result.Errors[i].Reason != "invalid item" {
			t.Errorf("errors[%d] = %+v, want index %d reason %q", i, result.Errors[i], want, "invalid item")
		}
	}
}

func TestImportEndpointAllMalformed(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	rec := doJSON(t, mux, http.MethodPost, "/v1/admin/contents/import", `[1, 2]`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	result := decodeBody[ingest.Result](t, rec)
	if result.Total != 2 || result.Invalid != 2 {
		t.Errorf("accounting: %+v", result)
	}
}

func TestImportEndpointBatchLimit(t *testing.T) {
	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewHandler(db, zhihuauth.Config{}, 1)
	rec := doJSON(t, newTestMux(h), http.MethodPost, "/v1/admin/contents/import", importBatch)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for oversized batch", rec.Code)
	}
}

func TestListAndGetContents(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	if rec := doJSON(t, mux, http.MethodPost, "/v1/admin/contents/import", importBatch); rec.Code != http.StatusOK {
		t.Fatalf("seed import failed: %s", rec.Body.String())
	}

	rec := doJSON(t, mux, http.MethodGet, "/v1/contents?keyword=考研", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decodeBody[ListResponse](t, rec)
	if list.Total != 1 || len(list.Items) != 1 {
		t.Fatalf("keyword filter returned %d items (total %d)", len(list.Items), list.Total)
	}
	item := list.Items[0]
	if item.PlatformSlug == "" {
		t.Error("list items must carry the platform slug")
	}

	rec = doJSON(t, mux, http.MethodGet, fmt.Sprintf("/v1/contents/%d", item.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decodeBody[storage.ContentWithPlatform](t, rec)
	if got.ID != item.ID {
		t.Errorf("got content %d, want %d", got.ID, item.ID)
	}

	if rec := doJSON(t, mux, http.MethodGet, "/v1/contents/999999", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing content status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodGet, "/v1/contents?content_type=weird", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad content_type status = %d, want 400", rec.Code)
	}
}

func TestContentLinkEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	body := `[{"platformSlug":"bilibili","contentType":"comment","platformContentId":"99",
		"authorName":"张三","body":"评论","publishedAt":"2025-06-01T10:00:00Z",
		"sourceUrl":"https://www.bilibili.com/video/BV1?comment_on=1&comment_root_id=99#reply99"}]`
	if rec := doJSON(t, mux, http.MethodPost, "/v1/admin/contents/import", body); rec.Code != http.StatusOK {
		t.Fatalf("seed import failed: %s", rec.Body.String())
	}

	list := decodeBody[ListResponse](t, doJSON(t, mux, http.MethodGet, "/v1/contents", ""))
	rec := doJSON(t, mux, http.MethodGet, fmt.Sprintf("/v1/contents/%d/link", list.Items[0].ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("link status = %d", rec.Code)
	}
	resolved := decodeBody[links.Resolved](t, rec)
	if resolved.URL == "" || resolved.Rewritten {
		t.Errorf("anchored comment link should pass through unchanged: %+v", resolved)
	}
}

func TestFeedEndpointPagination(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	if rec := doJSON(t, mux, http.MethodPost, "/v1/admin/contents/import", importBatch); rec.Code != http.StatusOK {
		t.Fatalf("seed import failed: %s", rec.Body.String())
	}

	rec := doJSON(t, mux, http.MethodGet, "/v1/contents/feed?since=2000-01-01T00:00:00Z&limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("feed status = %d: %s", rec.Code, rec.Body.String())
	}
	page1 := decodeBody[FeedResponse](t, rec)
	if len(page1.Items) != 1 || page1.NextCursor == nil {
		t.Fatalf("first page: %d items, cursor %v", len(page1.Items), page1.NextCursor)
	}

	rec = doJSON(t, mux, http.MethodGet, "/v1/contents/feed?cursor="+*page1.NextCursor, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("second page status = %d", rec.Code)
	}
	page2 := decodeBody[FeedResponse](t, rec)
	if len(page2.Items) != 1 || page2.NextCursor != nil {
		t.Fatalf("second page: %d items, cursor %v", len(page2.Items), page2.NextCursor)
	}
	if page1.Items[0].ID == page2.Items[0].ID {
		t.Error("pages overlap")
	}

	if rec := doJSON(t, mux, http.MethodGet, "/v1/contents/feed", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing since/cursor status = %d, want 400", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodGet, "/v1/contents/feed?cursor=garbage", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("garbage cursor status = %d, want 400", rec.Code)
	}
}

func TestReplyTemplateCRUD(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	rec := doJSON(t, mux, http.MethodPost, "/v1/admin/reply-templates",
		`{"title":"打招呼","content":"同学你好，欢迎交流"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[models.ReplyTemplate](t, rec)

	rec = doJSON(t, mux, http.MethodPut, fmt.Sprintf("/v1/admin/reply-templates/%d", created.ID),
		`{"title":"打招呼","content":"更新后的内容"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	updated := decodeBody[models.ReplyTemplate](t, rec)
	if updated.Content != "更新后的内容" {
		t.Errorf("content = %q after update", updated.Content)
	}

	list := decodeBody[[]models.ReplyTemplate](t, doJSON(t, mux, http.MethodGet, "/v1/reply-templates", ""))
	if len(list) != 1 {
		t.Fatalf("listed %d templates, want 1", len(list))
	}

	if rec := doJSON(t, mux, http.MethodDelete, fmt.Sprintf("/v1/admin/reply-templates/%d", created.ID), ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodPut, fmt.Sprintf("/v1/admin/reply-templates/%d", created.ID),
		`{"title":"x","content":"y"}`); rec.Code != http.StatusNotFound {
		t.Errorf("update of deleted template status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodPost, "/v1/admin/reply-templates", `{"title":" "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank template status = %d, want 400", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	if rec := doJSON(t, mux, http.MethodPost, "/v1/admin/contents/import", importBatch); rec.Code != http.StatusOK {
		t.Fatalf("seed import failed: %s", rec.Body.String())
	}

	rec := doJSON(t, mux, http.MethodGet, "/v1/admin/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	stats := decodeBody[storage.Stats](t, rec)
	if stats.TotalContents != 2 || stats.Posts != 2 || stats.Replied != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(stats.ByPlatform) != 2 {
		t.Errorf("by_platform has %d entries, want 2", len(stats.ByPlatform))
	}
}

func TestDedupeEndpointDryRun(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	rec := doJSON(t, mux, http.MethodPost, "/v1/admin/maintenance/dedupe", `{"dry_run": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("dedupe status = %d: %s", rec.Code, rec.Body.String())
	}
	result := decodeBody[map[string]any](t, rec)
	if result["dry_run"] != true {
		t.Errorf("dry_run flag not echoed: %+v", result)
	}
}

func TestZhihuAuthURLUnconfigured(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := newTestMux(h)

	rec := doJSON(t, mux, http.MethodGet, "/v1/admin/oauth/zhihu/url", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 without credentials", rec.Code)
	}
}
