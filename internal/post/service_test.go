package post

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/postline/internal/form"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/repository"
	"github.com/hitoshi/postline/internal/security"
)

// --- モック ---

type mockPostRepo struct {
	findWithMetaFn func(ctx context.Context, username string, postID int64, viewerID string) (*model.PostWithMeta, error)
	createFn       func(ctx context.Context, post *model.Post) error
	updateFn       func(ctx context.Context, post *model.Post) error
	deleteFn       func(ctx context.Context, id int64) error
}

func (m *mockPostRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	return nil, nil
}
func (m *mockPostRepo) FindWithMeta(ctx context.Context, username string, postID int64, viewerID string) (*model.PostWithMeta, error) {
	return m.findWithMetaFn(ctx, username, postID, viewerID)
}
func (m *mockPostRepo) ListFeed(ctx context.Context, q repository.FeedQuery) ([]model.PostWithMeta, error) {
	return nil, nil
}
func (m *mockPostRepo) CountFeed(ctx context.Context, q repository.FeedQuery) (int, error) {
	return 0, nil
}
func (m *mockPostRepo) Create(ctx context.Context, post *model.Post) error {
	return m.createFn(ctx, post)
}
func (m *mockPostRepo) Update(ctx context.Context, post *model.Post) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, post)
	}
	return nil
}
func (m *mockPostRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockCommentRepo struct {
	findByIDFn func(ctx context.Context, id int64) (*model.Comment, error)
	listFn     func(ctx context.Context, postID int64) ([]model.CommentWithAuthor, error)
	createFn   func(ctx context.Context, comment *model.Comment) error
	deleteFn   func(ctx context.Context, id int64) error
}

func (m *mockCommentRepo) FindByID(ctx context.Context, id int64) (*model.Comment, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockCommentRepo) ListByPostID(ctx context.Context, postID int64) ([]model.CommentWithAuthor, error) {
	if m.listFn != nil {
		return m.listFn(ctx, postID)
	}
	return nil, nil
}
func (m *mockCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	return m.createFn(ctx, comment)
}
func (m *mockCommentRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockGroupRepo struct {
	findBySlugFn func(ctx context.Context, slug string) (*model.Group, error)
	createFn     func(ctx context.Context, group *model.Group) error
}

func (m *mockGroupRepo) FindBySlug(ctx context.Context, slug string) (*model.Group, error) {
	return m.findBySlugFn(ctx, slug)
}
func (m *mockGroupRepo) Create(ctx context.Context, group *model.Group) error {
	return m.createFn(ctx, group)
}
func (m *mockGroupRepo) List(ctx context.Context) ([]model.Group, error) { return nil, nil }

type mockImageStore struct {
	uploadFn func(ctx context.Context, fileName, contentType string, file io.Reader, size int64) (string, error)
	removeFn func(ctx context.Context, imageURL string) error
}

func (m *mockImageStore) Upload(ctx context.Context, fileName, contentType string, file io.Reader, size int64) (string, error) {
	return m.uploadFn(ctx, fileName, contentType, file, size)
}
func (m *mockImageStore) Remove(ctx context.Context, imageURL string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, imageURL)
	}
	return nil
}

// ownedBy はusername/postIDの組が一致する場合だけ投稿を返すFindWithMeta実装を作る。
func ownedBy(username string, postID int64, authorID string) func(context.Context, string, int64, string) (*model.PostWithMeta, error) {
	return func(ctx context.Context, u string, id int64, viewerID string) (*model.PostWithMeta, error) {
		if u != username || id != postID {
			return nil, nil
		}
		return &model.PostWithMeta{
			Post:           model.Post{ID: id, AuthorID: authorID},
			AuthorUsername: username,
		}, nil
	}
}

func newTestService(postRepo *mockPostRepo, commentRepo *mockCommentRepo, groupRepo *mockGroupRepo) *Service {
	return NewService(postRepo, commentRepo, groupRepo, security.NewContentSanitizer(), nil, slog.Default())
}

// --- テスト ---

func TestCreatePost_SanitizesTextAndForcesAuthor(t *testing.T) {
	var created *model.Post
	postRepo := &mockPostRepo{
		createFn: func(ctx context.Context, post *model.Post) error {
			post.ID = 1
			created = post
			return nil
		},
	}
	service := newTestService(postRepo, &mockCommentRepo{}, &mockGroupRepo{})

	_, err := service.CreatePost(context.Background(), "user-1", form.PostForm{
		Text: `こんにちは<script>alert(1)</script>`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.AuthorID != "user-1" {
		t.Errorf("expected author user-1, got %q", created.AuthorID)
	}
	if created.Text != "こんにちは" {
		t.Errorf("expected sanitized text, got %q", created.Text)
	}
}

func TestCreatePost_UnknownGroupIsFieldError(t *testing.T) {
	groupRepo := &mockGroupRepo{
		findBySlugFn: func(ctx context.Context, slug string) (*model.Group, error) {
			return nil, nil
		},
	}
	service := newTestService(&mockPostRepo{}, &mockCommentRepo{}, groupRepo)

	_, err := service.CreatePost(context.Background(), "user-1", form.PostForm{
		Text:      "hi",
		GroupSlug: "nope",
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
		t.Fatalf("expected validation error, got %v", err)
	}
	if apiErr.Details["group"] == "" {
		t.Errorf("expected group field error, got %v", apiErr.Details)
	}
}

func TestUpdatePost_NonOwnerIsDenied(t *testing.T) {
	postRepo := &mockPostRepo{
		findWithMetaFn: ownedBy("taro", 1, "owner-1"),
		updateFn: func(ctx context.Context, post *model.Post) error {
			t.Error("non-owner update must not reach the store")
			return nil
		},
	}
	service := newTestService(postRepo, &mockCommentRepo{}, &mockGroupRepo{})

	err := service.UpdatePost(context.Background(), "intruder", "taro", 1, form.PostForm{Text: "hack"})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestUpdatePost_MissingPostIs404(t *testing.T) {
	postRepo := &mockPostRepo{
		findWithMetaFn: func(ctx context.Context, username string, postID int64, viewerID string) (*model.PostWithMeta, error) {
			return nil, nil
		},
	}
	service := newTestService(postRepo, &mockCommentRepo{}, &mockGroupRepo{})

	err := service.UpdatePost(context.Background(), "user-1", "taro", 999, form.PostForm{Text: "hi"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePostNotFound {
		t.Fatalf("expected post not found error, got %v", err)
	}
}

// 投稿は作者名と投稿IDの組で解決される。
// 他人のユーザー名を指したURLでは、実在する投稿IDでも404になる。
func TestUpdatePost_WrongAuthorUsernameIs404(t *testing.T) {
	postRepo := &mockPostRepo{
		findWithMetaFn: ownedBy("taro", 1, "user-1"),
		updateFn: func(ctx context.Context, post *model.Post) error {
			t.Error("mismatched author URL must not reach the store")
			return nil
		},
	}
	service := newTestService(postRepo, &mockCommentRepo{}, &mockGroupRepo{})

	err := service.UpdatePost(context.Background(), "user-1", "jiro", 1, form.PostForm{Text: "hi"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePostNotFound {
		t.Fatalf("expected post not found error, got %v", err)
	}
}

func TestDeletePost_OwnerDeletes(t *testing.T) {
	deleted := false
	postRepo := &mockPostRepo{
		findWithMetaFn: ownedBy("taro", 1, "user-1"),
		deleteFn: func(ctx context.Context, id int64) error {
			deleted = true
			return nil
		},
	}
	service := newTestService(postRepo, &mockCommentRepo{}, &mockGroupRepo{})

	if err := service.DeletePost(context.Background(), "user-1", "taro", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Error("expected post to be deleted")
	}
}

func TestDeletePost_WrongAuthorUsernameIs404(t *testing.T) {
	postRepo := &mockPostRepo{
		findWithMetaFn: ownedBy("taro", 1, "user-1"),
		deleteFn: func(ctx context.Context, id int64) error {
			t.Error("mismatched author URL must not reach the store")
			return nil
		},
	}
	service := newTestService(postRepo, &mockCommentRepo{}, &mockGroupRepo{})

	err := service.DeletePost(context.Background(), "user-1", "jiro", 1)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePostNotFound {
		t.Fatalf("expected post not found error, got %v", err)
	}
}

func TestGetView_UnknownPostIs404(t *testing.T) {
	postRepo := &mockPostRepo{
		findWithMetaFn: func(ctx context.Context, username string, postID int64, viewerID string) (*model.PostWithMeta, error) {
			return nil, nil
		},
	}
	service := newTestService(postRepo, &mockCommentRepo{}, &mockGroupRepo{})

	_, err := service.GetView(context.Background(), "leo", 999, "")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePostNotFound {
		t.Fatalf("expected post not found error, got %v", err)
	}
}

func TestAttachImage_UpdateFailureRemovesUpload(t *testing.T) {
	postRepo := &mockPostRepo{
		findWithMetaFn: ownedBy("taro", 1, "user-1"),
		updateFn: func(ctx context.Context, post *model.Post) error {
			return errors.New("db down")
		},
	}
	removed := ""
	images := &mockImageStore{
		uploadFn: func(ctx context.Context, fileName, contentType string, file io.Reader, size int64) (string, error) {
			return "http://minio.local/postline-images/posts/2026/08/abc.png", nil
		},
		removeFn: func(ctx context.Context, imageURL string) error {
			removed = imageURL
			return nil
		},
	}
	service := NewService(postRepo, &mockCommentRepo{}, &mockGroupRepo{},
		security.NewContentSanitizer(), images, slog.Default())

	_, err := service.AttachImage(context.Background(), "user-1", "taro", 1,
		"cat.png", "image/png", strings.NewReader("data"), 4)
	if err == nil {
		t.Fatal("expected error when the post update fails")
	}
	if removed != "http://minio.local/postline-images/posts/2026/08/abc.png" {
		t.Errorf("expected the fresh upload to be removed, got %q", removed)
	}
}

func TestAddComment_ForcesAuthor(t *testing.T) {
	postRepo := &mockPostRepo{
		findWithMetaFn: ownedBy("taro", 7, "owner-1"),
	}
	var created *model.Comment
	commentRepo := &mockCommentRepo{
		createFn: func(ctx context.Context, comment *model.Comment) error {
			comment.ID = 1
			created = comment
			return nil
		},
	}
	service := newTestService(postRepo, commentRepo, &mockGroupRepo{})

	_, err := service.AddComment(context.Background(), "user-1", "taro", 7, form.CommentForm{Text: "nice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.AuthorID != "user-1" || created.PostID != 7 {
		t.Errorf("unexpected comment: %+v", created)
	}
}

func TestAddComment_WrongAuthorUsernameIs404(t *testing.T) {
	postRepo := &mockPostRepo{
		findWithMetaFn: ownedBy("taro", 7, "owner-1"),
	}
	commentRepo := &mockCommentRepo{
		createFn: func(ctx context.Context, comment *model.Comment) error {
			t.Error("mismatched author URL must not reach the store")
			return nil
		},
	}
	service := newTestService(postRepo, commentRepo, &mockGroupRepo{})

	_, err := service.AddComment(context.Background(), "user-1", "jiro", 7, form.CommentForm{Text: "nice"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePostNotFound {
		t.Fatalf("expected post not found error, got %v", err)
	}
}

func TestDeleteComment_NonOwnerIsDenied(t *testing.T) {
	postRepo := &mockPostRepo{
		findWithMetaFn: ownedBy("taro", 7, "owner-1"),
	}
	commentRepo := &mockCommentRepo{
		findByIDFn: func(ctx context.Context, id int64) (*model.Comment, error) {
			return &model.Comment{ID: id, PostID: 7, AuthorID: "owner-1"}, nil
		},
		deleteFn: func(ctx context.Context, id int64) error {
			t.Error("non-owner delete must not reach the store")
			return nil
		},
	}
	service := newTestService(postRepo, commentRepo, &mockGroupRepo{})

	err := service.DeleteComment(context.Background(), "intruder", "taro", 7, 1)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestDeleteComment_WrongPostIs404(t *testing.T) {
	postRepo := &mockPostRepo{
		findWithMetaFn: ownedBy("taro", 7, "user-1"),
	}
	commentRepo := &mockCommentRepo{
		findByIDFn: func(ctx context.Context, id int64) (*model.Comment, error) {
			return &model.Comment{ID: id, PostID: 8, AuthorID: "user-1"}, nil
		},
	}
	service := newTestService(postRepo, commentRepo, &mockGroupRepo{})

	err := service.DeleteComment(context.Background(), "user-1", "taro", 7, 1)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeCommentNotFound {
		t.Fatalf("expected comment not found error, got %v", err)
	}
}

func TestCreateGroup_DuplicateSlugIsFieldError(t *testing.T) {
	groupRepo := &mockGroupRepo{
		createFn: func(ctx context.Context, group *model.Group) error {
			return repository.ErrDuplicate
		},
	}
	service := newTestService(&mockPostRepo{}, &mockCommentRepo{}, groupRepo)

	_, err := service.CreateGroup(context.Background(), form.GroupForm{
		Title: "Cats",
		Slug:  "cats",
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
		t.Fatalf("expected validation error, got %v", err)
	}
	if apiErr.Details["slug"] == "" {
		t.Errorf("expected slug field error, got %v", apiErr.Details)
	}
}
