package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/postline/internal/form"
	"github.com/hitoshi/postline/internal/middleware"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	CreatePost(ctx context.Context, authorID string, f form.PostForm) (*model.Post, error)
	GetView(ctx context.Context, username string, postID int64, viewerID string) (*post.View, error)
	UpdatePost(ctx context.Context, userID, authorUsername string, postID int64, f form.PostForm) error
	DeletePost(ctx context.Context, userID, authorUsername string, postID int64) error
	AttachImage(ctx context.Context, userID, authorUsername string, postID int64, fileName, contentType string, file io.Reader, size int64) (string, error)
	AddComment(ctx context.Context, userID, authorUsername string, postID int64, f form.CommentForm) (*model.Comment, error)
	DeleteComment(ctx context.Context, userID, authorUsername string, postID, commentID int64) error
	CreateGroup(ctx context.Context, f form.GroupForm) (*model.Group, error)
	ListGroups(ctx context.Context) ([]model.Group, error)
}

// CreationMetrics は投稿・コメント作成数の記録のためのインターフェース。
// metrics.Collectorの部分集合として定義する。
type CreationMetrics interface {
	RecordPostCreated()
	RecordCommentCreated()
}

// PostHandler は投稿・コメント・グループ管理のHTTPハンドラー。
type PostHandler struct {
	service       PostServiceInterface
	metrics       CreationMetrics
	maxUploadSize int64
}

// NewPostHandler はPostHandlerを生成する。metricsはnilでもよい。
func NewPostHandler(service PostServiceInterface, metrics CreationMetrics, maxUploadSize int64) *PostHandler {
	return &PostHandler{
		service:       service,
		metrics:       metrics,
		maxUploadSize: maxUploadSize,
	}
}

// postViewResponse は投稿詳細ページのAPIレスポンス。
type postViewResponse struct {
	Post     postResponse      `json:"post"`
	Comments []commentResponse `json:"comments"`
}

// NewPost は投稿を作成する。
// POST /new
func (h *PostHandler) NewPost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := r.ParseForm(); err != nil {
		writeValidationErrorResponse(w, map[string]string{"form": "invalid form encoding"})
		return
	}
	f, details := form.BindPostForm(r.PostForm)
	if details != nil {
		writeValidationErrorResponse(w, details)
		return
	}

	if _, err := h.service.CreatePost(r.Context(), userID, f); err != nil {
		handleServiceError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordPostCreated()
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// NewGroup はグループを作成する。
// POST /new_group
func (h *PostHandler) NewGroup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeValidationErrorResponse(w, map[string]string{"form": "invalid form encoding"})
		return
	}
	f, details := form.BindGroupForm(r.PostForm)
	if details != nil {
		writeValidationErrorResponse(w, details)
		return
	}

	if _, err := h.service.CreateGroup(r.Context(), f); err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ListGroups は全グループの一覧を返す。
// GET /groups
func (h *PostHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGroups(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]groupResponse, 0, len(groups))
	for i := range groups {
		resp = append(resp, *toGroupResponse(&groups[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": resp})
}

// PostView は投稿詳細をコメント付きで返す。
// GET /{username}/{postID}
func (h *PostHandler) PostView(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetView(r.Context(), username, postID, middleware.ViewerIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	comments := make([]commentResponse, 0, len(view.Comments))
	for i := range view.Comments {
		comments = append(comments, toCommentResponse(&view.Comments[i]))
	}
	writeJSON(w, http.StatusOK, postViewResponse{
		Post:     toPostResponse(&view.Post),
		Comments: comments,
	})
}

// EditPostForm は投稿編集フォームの内容を返す。
// GET /{username}/{postID}/edit
//
// 所有者以外には編集内容を見せず、投稿ページへリダイレクトする。
func (h *PostHandler) EditPostForm(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	view, err := h.service.GetView(r.Context(), username, postID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if view.Post.AuthorID != userID {
		http.Redirect(w, r, postViewPath(username, postID), http.StatusSeeOther)
		return
	}

	group := ""
	if view.Post.GroupSlug != nil {
		group = *view.Post.GroupSlug
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"text":  view.Post.Text,
		"group": group,
	})
}

// EditPost は投稿の本文とグループを更新する。
// POST /{username}/{postID}/edit
func (h *PostHandler) EditPost(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		writeValidationErrorResponse(w, map[string]string{"form": "invalid form encoding"})
		return
	}
	f, details := form.BindPostForm(r.PostForm)
	if details != nil {
		writeValidationErrorResponse(w, details)
		return
	}

	err := h.service.UpdatePost(r.Context(), userID, username, postID, f)
	if errors.Is(err, post.ErrNotOwner) {
		// 所有者以外の編集は黙って投稿ページへ戻す
		http.Redirect(w, r, postViewPath(username, postID), http.StatusSeeOther)
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, postViewPath(username, postID), http.StatusSeeOther)
}

// DeletePost は投稿を削除する。
// POST /{username}/{postID}/delete
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	err := h.service.DeletePost(r.Context(), userID, username, postID)
	if errors.Is(err, post.ErrNotOwner) {
		http.Redirect(w, r, postViewPath(username, postID), http.StatusSeeOther)
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, "/"+username, http.StatusSeeOther)
}

// AddComment は投稿にコメントを追加する。
// POST /{username}/{postID}/comment
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		writeValidationErrorResponse(w, map[string]string{"form": "invalid form encoding"})
		return
	}
	f, details := form.BindCommentForm(r.PostForm)
	if details != nil {
		writeValidationErrorResponse(w, details)
		return
	}

	if _, err := h.service.AddComment(r.Context(), userID, username, postID, f); err != nil {
		handleServiceError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordCommentCreated()
	}

	http.Redirect(w, r, postViewPath(username, postID), http.StatusSeeOther)
}

// DeleteComment はコメントを削除する。
// POST /{username}/{postID}/comment/{commentID}/delete
func (h *PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}
	commentID, err := strconv.ParseInt(chi.URLParam(r, "commentID"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewCommentNotFoundError(0))
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	err = h.service.DeleteComment(r.Context(), userID, username, postID, commentID)
	if errors.Is(err, post.ErrNotOwner) {
		http.Redirect(w, r, postViewPath(username, postID), http.StatusSeeOther)
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, postViewPath(username, postID), http.StatusSeeOther)
}

// UploadImage は投稿に画像を添付する。
// POST /{username}/{postID}/image (multipart/form-data, フィールド名image)
//
// Content-Typeはクライアント申告ではなくファイル先頭のスニッフィングで判定する。
func (h *PostHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		writeValidationErrorResponse(w, map[string]string{"image": "file is missing or too large"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeValidationErrorResponse(w, map[string]string{"image": "file is required"})
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		handleServiceError(w, err)
		return
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	reader := io.MultiReader(bytes.NewReader(head), file)

	url, err := h.service.AttachImage(r.Context(), userID, username, postID, header.Filename, contentType, reader, header.Size)
	if errors.Is(err, post.ErrNotOwner) {
		http.Redirect(w, r, postViewPath(username, postID), http.StatusSeeOther)
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"image_url": url})
}

// parsePostID はURLパスの投稿IDを解釈する。非数値は404として処理する。
func parsePostID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "postID")
	postID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || postID < 1 {
		writeNotFound(w)
		return 0, false
	}
	return postID, true
}

// postViewPath は投稿詳細ページのパスを組み立てる。
func postViewPath(username string, postID int64) string {
	return fmt.Sprintf("/%s/%d", username, postID)
}
