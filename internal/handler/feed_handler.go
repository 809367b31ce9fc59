package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/postline/internal/cache"
	"github.com/hitoshi/postline/internal/feed"
	"github.com/hitoshi/postline/internal/form"
	"github.com/hitoshi/postline/internal/middleware"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	// List はクエリに合致する投稿を1ページ分返す。
	List(ctx context.Context, q feed.Query) (*feed.Page, error)
}

// CacheMetrics はページキャッシュのヒット・ミス記録のためのインターフェース。
// metrics.Collectorの部分集合として定義する。
type CacheMetrics interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// FeedHandler はフィード閲覧のHTTPハンドラー。
type FeedHandler struct {
	service  FeedServiceInterface
	cache    cache.Store
	cacheTTL time.Duration
	metrics  CacheMetrics
}

// NewFeedHandler はFeedHandlerを生成する。metricsはnilでもよい。
func NewFeedHandler(service FeedServiceInterface, store cache.Store, cacheTTL time.Duration, metrics CacheMetrics) *FeedHandler {
	return &FeedHandler{
		service:  service,
		cache:    store,
		cacheTTL: cacheTTL,
		metrics:  metrics,
	}
}

// Index はグローバルフィードを返す。
// GET /?page=N&search=S
//
// 匿名閲覧のレスポンスのみTTL付きでキャッシュする。
// 認証済み閲覧はLiked注釈が閲覧者ごとに異なるためキャッシュを使わない。
func (h *FeedHandler) Index(w http.ResponseWriter, r *http.Request) {
	page := form.ParsePage(r.URL.Query())
	search := r.URL.Query().Get("search")
	viewerID := middleware.ViewerIDFromContext(r.Context())

	cacheable := viewerID == "" && h.cache != nil
	key := fmt.Sprintf("index|page=%d|search=%s", page, search)

	if cacheable {
		blob, ok, err := h.cache.Get(r.Context(), key)
		if err != nil {
			// キャッシュ層の障害はヒットなし扱いにして落とさない
			slog.Error("page cache get failed", slog.String("error", err.Error()))
		}
		if ok {
			h.recordCacheHit()
			w.Header().Set("Content-Type", "application/json")
			w.Write(blob)
			return
		}
		h.recordCacheMiss()
	}

	result, err := h.service.List(r.Context(), feed.Query{
		Scope:    feed.ScopeGlobal,
		ViewerID: viewerID,
		Search:   search,
		Page:     page,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if !cacheable {
		writeJSON(w, http.StatusOK, toFeedPageResponse(result))
		return
	}

	// キャッシュにはエンコード済みのバイト列を保存し、ヒット時はそのまま返す
	blob, err := json.Marshal(toFeedPageResponse(result))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if err := h.cache.Set(r.Context(), key, blob, h.cacheTTL); err != nil {
		slog.Error("page cache set failed", slog.String("error", err.Error()))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(blob)
}

// GroupFeed は指定グループのフィードを返す。
// GET /group/{slug}?page=N&search=S
func (h *FeedHandler) GroupFeed(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), feed.Query{
		Scope:     feed.ScopeGroup,
		GroupSlug: chi.URLParam(r, "slug"),
		ViewerID:  middleware.ViewerIDFromContext(r.Context()),
		Search:    r.URL.Query().Get("search"),
		Page:      form.ParsePage(r.URL.Query()),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFeedPageResponse(result))
}

// FollowFeed はフォロー中の作者の投稿フィードを返す。
// GET /follow?page=N&search=S
func (h *FeedHandler) FollowFeed(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.ViewerIDFromContext(r.Context())

	result, err := h.service.List(r.Context(), feed.Query{
		Scope:    feed.ScopeFollowing,
		ViewerID: viewerID,
		Search:   r.URL.Query().Get("search"),
		Page:     form.ParsePage(r.URL.Query()),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFeedPageResponse(result))
}

func (h *FeedHandler) recordCacheHit() {
	if h.metrics != nil {
		h.metrics.RecordCacheHit()
	}
}

func (h *FeedHandler) recordCacheMiss() {
	if h.metrics != nil {
		h.metrics.RecordCacheMiss()
	}
}
