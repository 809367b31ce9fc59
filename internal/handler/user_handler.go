package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/postline/internal/feed"
	"github.com/hitoshi/postline/internal/form"
	"github.com/hitoshi/postline/internal/middleware"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateProfile(ctx context.Context, actorID, targetUsername string, f form.ProfileForm) (*model.User, error)
}

// FollowChecker はフォロー状態確認のためのインターフェース。
// social.Serviceの部分集合として定義する。
type FollowChecker interface {
	IsFollowing(ctx context.Context, userID, authorID string) (bool, error)
}

// UserHandler はプロフィール閲覧・編集のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	feeds   FeedServiceInterface
	follows FollowChecker
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, feeds FeedServiceInterface, follows FollowChecker) *UserHandler {
	return &UserHandler{
		service: service,
		feeds:   feeds,
		follows: follows,
	}
}

// Profile は作者プロフィールと投稿フィードを返す。
// GET /{username}?page=N&search=S
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	viewerID := middleware.ViewerIDFromContext(r.Context())

	page, err := h.feeds.List(r.Context(), feed.Query{
		Scope:          feed.ScopeAuthor,
		AuthorUsername: username,
		ViewerID:       viewerID,
		Search:         r.URL.Query().Get("search"),
		Page:           form.ParsePage(r.URL.Query()),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := toFeedPageResponse(page)
	if page.Author != nil {
		following, err := h.follows.IsFollowing(r.Context(), viewerID, page.Author.ID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		resp.Following = &following
	}

	writeJSON(w, http.StatusOK, resp)
}

// ProfileEditForm はプロフィール編集フォームの内容を返す。
// GET /{username}/profile_edit
//
// 本人以外にはフォームを見せず、対象プロフィールへリダイレクトする。
func (h *UserHandler) ProfileEditForm(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	userID, _ := middleware.UserIDFromContext(r.Context())

	target, err := h.service.GetByUsername(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if target.ID != userID {
		http.Redirect(w, r, "/"+username, http.StatusSeeOther)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"username":   target.Username,
		"first_name": target.FirstName,
		"last_name":  target.LastName,
		"email":      target.Email,
	})
}

// ProfileEdit はプロフィールを更新する。
// POST /{username}/profile_edit
func (h *UserHandler) ProfileEdit(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	userID, _ := middleware.UserIDFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		writeValidationErrorResponse(w, map[string]string{"form": "invalid form encoding"})
		return
	}
	f, details := form.BindProfileForm(r.PostForm)
	if details != nil {
		writeValidationErrorResponse(w, details)
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), userID, username, f)
	if errors.Is(err, user.ErrNotSelf) {
		// 本人以外の編集は黙って対象プロフィールへ戻す
		http.Redirect(w, r, "/"+username, http.StatusSeeOther)
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// ユーザー名が変わった場合は新しいプロフィールURLへ
	http.Redirect(w, r, "/"+updated.Username, http.StatusSeeOther)
}
