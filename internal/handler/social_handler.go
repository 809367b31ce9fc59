package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/postline/internal/middleware"
)

// SocialServiceInterface はフォロー・いいねハンドラーが必要とするサービスインターフェース。
type SocialServiceInterface interface {
	Follow(ctx context.Context, userID, targetUsername string) error
	Unfollow(ctx context.Context, userID, targetUsername string) error
	Like(ctx context.Context, userID, authorUsername string, postID int64) error
	Unlike(ctx context.Context, userID, authorUsername string, postID int64) error
}

// SocialHandler はフォロー・いいね操作のHTTPハンドラー。
// すべての操作は冪等で、成功時は元のページへ303リダイレクトする。
type SocialHandler struct {
	service SocialServiceInterface
}

// NewSocialHandler はSocialHandlerを生成する。
func NewSocialHandler(service SocialServiceInterface) *SocialHandler {
	return &SocialHandler{service: service}
}

// Follow は指定ユーザーをフォローする。
// POST /{username}/follow
func (h *SocialHandler) Follow(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	userID, _ := middleware.UserIDFromContext(r.Context())

	if err := h.service.Follow(r.Context(), userID, username); err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, "/"+username, http.StatusSeeOther)
}

// Unfollow は指定ユーザーのフォローを解除する。
// POST /{username}/unfollow
func (h *SocialHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	userID, _ := middleware.UserIDFromContext(r.Context())

	if err := h.service.Unfollow(r.Context(), userID, username); err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, "/"+username, http.StatusSeeOther)
}

// Like は投稿にいいねする。
// POST /{username}/{postID}/like
func (h *SocialHandler) Like(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	if err := h.service.Like(r.Context(), userID, username, postID); err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, refererOrRoot(r), http.StatusSeeOther)
}

// Unlike は投稿のいいねを取り消す。
// POST /{username}/{postID}/unlike
func (h *SocialHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	if err := h.service.Unlike(r.Context(), userID, username, postID); err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, refererOrRoot(r), http.StatusSeeOther)
}

// refererOrRoot はリダイレクト先としてRefererの相対パスを返す。
// Refererが無い・別オリジンの場合はルートへ戻す。
func refererOrRoot(r *http.Request) string {
	referer := r.Header.Get("Referer")
	if referer == "" {
		return "/"
	}
	u, err := url.Parse(referer)
	if err != nil || u.Path == "" || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	if u.Host != "" && u.Host != r.Host {
		return "/"
	}
	target := u.Path
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return target
}
