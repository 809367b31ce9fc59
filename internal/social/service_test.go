package social

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/repository"
)

// --- モック ---

type mockUserRepo struct {
	findByUsernameFn func(ctx context.Context, username string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return m.findByUsernameFn(ctx, username)
}
func (m *mockUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	return false, nil
}
func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	return nil
}
func (m *mockUserRepo) UpdateProfile(ctx context.Context, user *model.User) error { return nil }

type mockPostRepo struct {
	findWithMetaFn func(ctx context.Context, username string, postID int64, viewerID string) (*model.PostWithMeta, error)
}

func (m *mockPostRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	return nil, nil
}
func (m *mockPostRepo) FindWithMeta(ctx context.Context, username string, postID int64, viewerID string) (*model.PostWithMeta, error) {
	if m.findWithMetaFn != nil {
		return m.findWithMetaFn(ctx, username, postID, viewerID)
	}
	return nil, nil
}
func (m *mockPostRepo) ListFeed(ctx context.Context, q repository.FeedQuery) ([]model.PostWithMeta, error) {
	return nil, nil
}
func (m *mockPostRepo) CountFeed(ctx context.Context, q repository.FeedQuery) (int, error) {
	return 0, nil
}
func (m *mockPostRepo) Create(ctx context.Context, post *model.Post) error { return nil }
func (m *mockPostRepo) Update(ctx context.Context, post *model.Post) error { return nil }
func (m *mockPostRepo) Delete(ctx context.Context, id int64) error         { return nil }

type mockFollowRepo struct {
	existsFn func(ctx context.Context, userID, authorID string) (bool, error)
	createFn func(ctx context.Context, userID, authorID string) error
	deleteFn func(ctx context.Context, userID, authorID string) error
}

func (m *mockFollowRepo) Exists(ctx context.Context, userID, authorID string) (bool, error) {
	return m.existsFn(ctx, userID, authorID)
}
func (m *mockFollowRepo) Create(ctx context.Context, userID, authorID string) error {
	return m.createFn(ctx, userID, authorID)
}
func (m *mockFollowRepo) Delete(ctx context.Context, userID, authorID string) error {
	return m.deleteFn(ctx, userID, authorID)
}

type mockLikeRepo struct {
	createFn func(ctx context.Context, userID string, postID int64) error
	deleteFn func(ctx context.Context, userID string, postID int64) error
}

func (m *mockLikeRepo) Exists(ctx context.Context, userID string, postID int64) (bool, error) {
	return false, nil
}
func (m *mockLikeRepo) Create(ctx context.Context, userID string, postID int64) error {
	return m.createFn(ctx, userID, postID)
}
func (m *mockLikeRepo) Delete(ctx context.Context, userID string, postID int64) error {
	return m.deleteFn(ctx, userID, postID)
}

func userNamed(id, username string) *model.User {
	return &model.User{ID: id, Username: username}
}

// --- テスト ---

func TestFollow_CreatesEdge(t *testing.T) {
	created := false
	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return userNamed("author-1", username), nil
		},
	}
	followRepo := &mockFollowRepo{
		createFn: func(ctx context.Context, userID, authorID string) error {
			if userID != "user-1" || authorID != "author-1" {
				t.Errorf("unexpected edge: %s -> %s", userID, authorID)
			}
			created = true
			return nil
		},
	}
	service := NewService(userRepo, &mockPostRepo{}, followRepo, &mockLikeRepo{})

	if err := service.Follow(context.Background(), "user-1", "leo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected follow edge to be created")
	}
}

func TestFollow_SelfFollowIsNoop(t *testing.T) {
	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return userNamed("user-1", username), nil
		},
	}
	followRepo := &mockFollowRepo{
		createFn: func(ctx context.Context, userID, authorID string) error {
			t.Error("self-follow must not reach the store")
			return nil
		},
	}
	service := NewService(userRepo, &mockPostRepo{}, followRepo, &mockLikeRepo{})

	if err := service.Follow(context.Background(), "user-1", "me"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFollow_UnknownTarget(t *testing.T) {
	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return nil, nil
		},
	}
	service := NewService(userRepo, &mockPostRepo{}, &mockFollowRepo{}, &mockLikeRepo{})

	err := service.Follow(context.Background(), "user-1", "ghost")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Fatalf("expected user not found error, got %v", err)
	}
}

func TestUnfollow_AbsentEdgeIsNoop(t *testing.T) {
	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return userNamed("author-1", username), nil
		},
	}
	followRepo := &mockFollowRepo{
		deleteFn: func(ctx context.Context, userID, authorID string) error {
			return nil
		},
	}
	service := NewService(userRepo, &mockPostRepo{}, followRepo, &mockLikeRepo{})

	if err := service.Unfollow(context.Background(), "user-1", "leo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsFollowing_AnonymousViewer(t *testing.T) {
	service := NewService(&mockUserRepo{}, &mockPostRepo{}, &mockFollowRepo{}, &mockLikeRepo{})

	following, err := service.IsFollowing(context.Background(), "", "author-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if following {
		t.Error("anonymous viewer can never be following")
	}
}

func TestLike_UnknownPost(t *testing.T) {
	service := NewService(&mockUserRepo{}, &mockPostRepo{}, &mockFollowRepo{}, &mockLikeRepo{})

	err := service.Like(context.Background(), "user-1", "taro", 999)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePostNotFound {
		t.Fatalf("expected post not found error, got %v", err)
	}
}

// 投稿は作者名と投稿IDの組で解決される。
// 他人のユーザー名を指したURLでは、実在する投稿IDでも404になる。
func TestLike_WrongAuthorUsernameIs404(t *testing.T) {
	postRepo := &mockPostRepo{
		findWithMetaFn: func(ctx context.Context, username string, postID int64, viewerID string) (*model.PostWithMeta, error) {
			if username != "taro" {
				return nil, nil
			}
			return &model.PostWithMeta{Post: model.Post{ID: postID}, AuthorUsername: username}, nil
		},
	}
	likeRepo := &mockLikeRepo{
		createFn: func(ctx context.Context, userID string, postID int64) error {
			t.Error("mismatched author URL must not reach the store")
			return nil
		},
	}
	service := NewService(&mockUserRepo{}, postRepo, &mockFollowRepo{}, likeRepo)

	err := service.Like(context.Background(), "user-1", "jiro", 7)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePostNotFound {
		t.Fatalf("expected post not found error, got %v", err)
	}
}

func TestLike_CreatesRow(t *testing.T) {
	postRepo := &mockPostRepo{
		findWithMetaFn: func(ctx context.Context, username string, postID int64, viewerID string) (*model.PostWithMeta, error) {
			return &model.PostWithMeta{Post: model.Post{ID: postID}, AuthorUsername: username}, nil
		},
	}
	liked := false
	likeRepo := &mockLikeRepo{
		createFn: func(ctx context.Context, userID string, postID int64) error {
			liked = true
			return nil
		},
	}
	service := NewService(&mockUserRepo{}, postRepo, &mockFollowRepo{}, likeRepo)

	if err := service.Like(context.Background(), "user-1", "taro", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !liked {
		t.Error("expected like row to be created")
	}
}

func TestUnlike_AbsentRowIsNoop(t *testing.T) {
	postRepo := &mockPostRepo{
		findWithMetaFn: func(ctx context.Context, username string, postID int64, viewerID string) (*model.PostWithMeta, error) {
			return &model.PostWithMeta{Post: model.Post{ID: postID}, AuthorUsername: username}, nil
		},
	}
	likeRepo := &mockLikeRepo{
		deleteFn: func(ctx context.Context, userID string, postID int64) error {
			return nil
		},
	}
	service := NewService(&mockUserRepo{}, postRepo, &mockFollowRepo{}, likeRepo)

	if err := service.Unlike(context.Background(), "user-1", "taro", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
