package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/postline/internal/form"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/post"
)

// mockPostService はPostServiceInterfaceのモック実装。
type mockPostService struct {
	createPostFn    func(ctx context.Context, authorID string, f form.PostForm) (*model.Post, error)
	getViewFn       func(ctx context.Context, username string, postID int64, viewerID string) (*post.View, error)
	updatePostFn    func(ctx context.Context, userID, authorUsername string, postID int64, f form.PostForm) error
	deletePostFn    func(ctx context.Context, userID, authorUsername string, postID int64) error
	attachImageFn   func(ctx context.Context, userID, authorUsername string, postID int64, fileName, contentType string, file io.Reader, size int64) (string, error)
	addCommentFn    func(ctx context.Context, userID, authorUsername string, postID int64, f form.CommentForm) (*model.Comment, error)
	deleteCommentFn func(ctx context.Context, userID, authorUsername string, postID, commentID int64) error
	createGroupFn   func(ctx context.Context, f form.GroupForm) (*model.Group, error)
	listGroupsFn    func(ctx context.Context) ([]model.Group, error)
}

func (m *mockPostService) CreatePost(ctx context.Context, authorID string, f form.PostForm) (*model.Post, error) {
	if m.createPostFn != nil {
		return m.createPostFn(ctx, authorID, f)
	}
	return &model.Post{ID: 1}, nil
}

func (m *mockPostService) GetView(ctx context.Context, username string, postID int64, viewerID string) (*post.View, error) {
	if m.getViewFn != nil {
		return m.getViewFn(ctx, username, postID, viewerID)
	}
	return &post.View{}, nil
}

func (m *mockPostService) UpdatePost(ctx context.Context, userID, authorUsername string, postID int64, f form.PostForm) error {
	if m.updatePostFn != nil {
		return m.updatePostFn(ctx, userID, authorUsername, postID, f)
	}
	return nil
}

func (m *mockPostService) DeletePost(ctx context.Context, userID, authorUsername string, postID int64) error {
	if m.deletePostFn != nil {
		return m.deletePostFn(ctx, userID, authorUsername, postID)
	}
	return nil
}

func (m *mockPostService) AttachImage(ctx context.Context, userID, authorUsername string, postID int64, fileName, contentType string, file io.Reader, size int64) (string, error) {
	if m.attachImageFn != nil {
		return m.attachImageFn(ctx, userID, authorUsername, postID, fileName, contentType, file, size)
	}
	return "", nil
}

func (m *mockPostService) AddComment(ctx context.Context, userID, authorUsername string, postID int64, f form.CommentForm) (*model.Comment, error) {
	if m.addCommentFn != nil {
		return m.addCommentFn(ctx, userID, authorUsername, postID, f)
	}
	return &model.Comment{ID: 1}, nil
}

func (m *mockPostService) DeleteComment(ctx context.Context, userID, authorUsername string, postID, commentID int64) error {
	if m.deleteCommentFn != nil {
		return m.deleteCommentFn(ctx, userID, authorUsername, postID, commentID)
	}
	return nil
}

func (m *mockPostService) CreateGroup(ctx context.Context, f form.GroupForm) (*model.Group, error) {
	if m.createGroupFn != nil {
		return m.createGroupFn(ctx, f)
	}
	return &model.Group{ID: 1}, nil
}

func (m *mockPostService) ListGroups(ctx context.Context) ([]model.Group, error) {
	if m.listGroupsFn != nil {
		return m.listGroupsFn(ctx)
	}
	return nil, nil
}

// mockCreationMetrics はCreationMetricsのモック実装。
type mockCreationMetrics struct {
	posts    int
	comments int
}

func (m *mockCreationMetrics) RecordPostCreated()    { m.posts++ }
func (m *mockCreationMetrics) RecordCommentCreated() { m.comments++ }

// formRequest はフォームエンコードされたPOSTリクエストを組み立てるヘルパー。
func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// --- POST /new テスト ---

func TestPostHandler_NewPost_RedirectsToIndex(t *testing.T) {
	svc := &mockPostService{
		createPostFn: func(ctx context.Context, authorID string, f form.PostForm) (*model.Post, error) {
			if authorID != "user-1" {
				t.Errorf("authorID = %q, want %q", authorID, "user-1")
			}
			if f.Text != "hello" {
				t.Errorf("text = %q, want %q", f.Text, "hello")
			}
			if f.GroupSlug != "cats" {
				t.Errorf("group = %q, want %q", f.GroupSlug, "cats")
			}
			return &model.Post{ID: 1}, nil
		},
	}
	metrics := &mockCreationMetrics{}
	h := NewPostHandler(svc, metrics, 1<<20)

	req := withUserID(formRequest("/new", url.Values{"text": {"hello"}, "group": {"cats"}}), "user-1")
	w := httptest.NewRecorder()
	h.NewPost(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("location = %q, want %q", loc, "/")
	}
	if metrics.posts != 1 {
		t.Errorf("posts created metric = %d, want 1", metrics.posts)
	}
}

func TestPostHandler_NewPost_EmptyTextReturns400(t *testing.T) {
	svc := &mockPostService{
		createPostFn: func(ctx context.Context, authorID string, f form.PostForm) (*model.Post, error) {
			t.Error("CreatePost should not be called on validation failure")
			return nil, nil
		},
	}
	h := NewPostHandler(svc, nil, 1<<20)

	req := withUserID(formRequest("/new", url.Values{"text": {"   "}}), "user-1")
	w := httptest.NewRecorder()
	h.NewPost(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Code != model.ErrCodeValidationFailed {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeValidationFailed)
	}
	if resp.Details["text"] == "" {
		t.Errorf("details = %v, want text field error", resp.Details)
	}
}

// --- POST /new_group テスト ---

func TestPostHandler_NewGroup_DuplicateSlugReturns400(t *testing.T) {
	svc := &mockPostService{
		createGroupFn: func(ctx context.Context, f form.GroupForm) (*model.Group, error) {
			return nil, model.NewValidationError(map[string]string{"slug": "is already taken"})
		},
	}
	h := NewPostHandler(svc, nil, 1<<20)

	req := withUserID(formRequest("/new_group", url.Values{"title": {"Cats"}, "slug": {"cats"}}), "user-1")
	w := httptest.NewRecorder()
	h.NewGroup(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Details["slug"] != "is already taken" {
		t.Errorf("details = %v, want slug taken error", resp.Details)
	}
}

// --- GET /{username}/{postID} テスト ---

func TestPostHandler_PostView_ReturnsPostAndComments(t *testing.T) {
	svc := &mockPostService{
		getViewFn: func(ctx context.Context, username string, postID int64, viewerID string) (*post.View, error) {
			if username != "taro" || postID != 5 {
				t.Errorf("got (%q, %d), want (taro, 5)", username, postID)
			}
			return &post.View{
				Post: model.PostWithMeta{
					Post:           model.Post{ID: 5, Text: "hello"},
					AuthorUsername: "taro",
				},
				Comments: []model.CommentWithAuthor{
					{Comment: model.Comment{ID: 9, Text: "nice"}, AuthorUsername: "hana"},
				},
			}, nil
		},
	}
	h := NewPostHandler(svc, nil, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/taro/5", nil)
	req = withChiURLParam(req, "username", "taro")
	req = withChiURLParam(req, "postID", "5")
	w := httptest.NewRecorder()
	h.PostView(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp postViewResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Post.ID != 5 {
		t.Errorf("post id = %d, want 5", resp.Post.ID)
	}
	if len(resp.Comments) != 1 || resp.Comments[0].AuthorUsername != "hana" {
		t.Errorf("comments = %+v, want 1 comment by hana", resp.Comments)
	}
}

func TestPostHandler_PostView_NonNumericIDReturns404(t *testing.T) {
	h := NewPostHandler(&mockPostService{}, nil, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/taro/abc", nil)
	req = withChiURLParam(req, "username", "taro")
	req = withChiURLParam(req, "postID", "abc")
	w := httptest.NewRecorder()
	h.PostView(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// --- POST /{username}/{postID}/edit テスト ---

func TestPostHandler_EditPost_NonOwnerRedirectsWithoutError(t *testing.T) {
	svc := &mockPostService{
		updatePostFn: func(ctx context.Context, userID, authorUsername string, postID int64, f form.PostForm) error {
			return post.ErrNotOwner
		},
	}
	h := NewPostHandler(svc, nil, 1<<20)

	req := withUserID(formRequest("/taro/5/edit", url.Values{"text": {"hijack"}}), "user-2")
	req = withChiURLParam(req, "username", "taro")
	req = withChiURLParam(req, "postID", "5")
	w := httptest.NewRecorder()
	h.EditPost(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/taro/5" {
		t.Errorf("location = %q, want %q", loc, "/taro/5")
	}
}

func TestPostHandler_EditPostForm_NonOwnerRedirects(t *testing.T) {
	svc := &mockPostService{
		getViewFn: func(ctx context.Context, username string, postID int64, viewerID string) (*post.View, error) {
			return &post.View{
				Post: model.PostWithMeta{Post: model.Post{ID: 5, AuthorID: "user-1"}},
			}, nil
		},
	}
	h := NewPostHandler(svc, nil, 1<<20)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/taro/5/edit", nil), "user-2")
	req = withChiURLParam(req, "username", "taro")
	req = withChiURLParam(req, "postID", "5")
	w := httptest.NewRecorder()
	h.EditPostForm(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/taro/5" {
		t.Errorf("location = %q, want %q", loc, "/taro/5")
	}
}

// --- POST /{username}/{postID}/delete テスト ---

func TestPostHandler_DeletePost_RedirectsToProfile(t *testing.T) {
	svc := &mockPostService{
		deletePostFn: func(ctx context.Context, userID, authorUsername string, postID int64) error {
			if authorUsername != "taro" || postID != 5 {
				t.Errorf("got (%q, %d), want (taro, 5)", authorUsername, postID)
			}
			return nil
		},
	}
	h := NewPostHandler(svc, nil, 1<<20)

	req := withUserID(formRequest("/taro/5/delete", nil), "user-1")
	req = withChiURLParam(req, "username", "taro")
	req = withChiURLParam(req, "postID", "5")
	w := httptest.NewRecorder()
	h.DeletePost(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/taro" {
		t.Errorf("location = %q, want %q", loc, "/taro")
	}
}

// --- POST /{username}/{postID}/comment テスト ---

func TestPostHandler_AddComment_RedirectsToPostView(t *testing.T) {
	svc := &mockPostService{
		addCommentFn: func(ctx context.Context, userID, authorUsername string, postID int64, f form.CommentForm) (*model.Comment, error) {
			if authorUsername != "taro" || postID != 5 {
				t.Errorf("got (%q, %d), want (taro, 5)", authorUsername, postID)
			}
			if f.Text != "nice post" {
				t.Errorf("text = %q, want %q", f.Text, "nice post")
			}
			return &model.Comment{ID: 1}, nil
		},
	}
	metrics := &mockCreationMetrics{}
	h := NewPostHandler(svc, metrics, 1<<20)

	req := withUserID(formRequest("/taro/5/comment", url.Values{"text": {"nice post"}}), "user-2")
	req = withChiURLParam(req, "username", "taro")
	req = withChiURLParam(req, "postID", "5")
	w := httptest.NewRecorder()
	h.AddComment(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/taro/5" {
		t.Errorf("location = %q, want %q", loc, "/taro/5")
	}
	if metrics.comments != 1 {
		t.Errorf("comments created metric = %d, want 1", metrics.comments)
	}
}

// --- POST .../comment/{commentID}/delete テスト ---

func TestPostHandler_DeleteComment_NonOwnerRedirectsWithoutError(t *testing.T) {
	svc := &mockPostService{
		deleteCommentFn: func(ctx context.Context, userID, authorUsername string, postID, commentID int64) error {
			return post.ErrNotOwner
		},
	}
	h := NewPostHandler(svc, nil, 1<<20)

	req := withUserID(formRequest("/taro/5/comment/9/delete", nil), "user-2")
	req = withChiURLParam(req, "username", "taro")
	req = withChiURLParam(req, "postID", "5")
	req = withChiURLParam(req, "commentID", "9")
	w := httptest.NewRecorder()
	h.DeleteComment(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/taro/5" {
		t.Errorf("location = %q, want %q", loc, "/taro/5")
	}
}

func TestPostHandler_DeleteComment_UnknownCommentReturns404(t *testing.T) {
	svc := &mockPostService{
		deleteCommentFn: func(ctx context.Context, userID, authorUsername string, postID, commentID int64) error {
			return model.NewCommentNotFoundError(commentID)
		},
	}
	h := NewPostHandler(svc, nil, 1<<20)

	req := withUserID(formRequest("/taro/5/comment/99/delete", nil), "user-2")
	req = withChiURLParam(req, "username", "taro")
	req = withChiURLParam(req, "postID", "5")
	req = withChiURLParam(req, "commentID", "99")
	w := httptest.NewRecorder()
	h.DeleteComment(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
