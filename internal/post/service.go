// Package post は投稿・コメント・グループのドメインロジックを提供する。
package post

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hitoshi/postline/internal/form"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/repository"
	"github.com/hitoshi/postline/internal/security"
	"github.com/hitoshi/postline/internal/storage"
)

// ErrNotOwner は本人以外による編集・削除の試み。
// ハンドラはこれをエラー表示ではなく無変更のリダイレクトに変換する。
var ErrNotOwner = errors.New("対象の所有者ではありません")

// View は投稿詳細ページの表示内容。
type View struct {
	Post     model.PostWithMeta
	Comments []model.CommentWithAuthor
}

// Service は投稿・コメント・グループ管理のサービス層。
type Service struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	groupRepo   repository.GroupRepository
	sanitizer   security.ContentSanitizerService
	images      storage.ImageStore
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// imagesは画像ストアが未構成の場合nilでよい。
func NewService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	groupRepo repository.GroupRepository,
	sanitizer security.ContentSanitizerService,
	images storage.ImageStore,
	logger *slog.Logger,
) *Service {
	return &Service{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		groupRepo:   groupRepo,
		sanitizer:   sanitizer,
		images:      images,
		logger:      logger,
	}
}

// resolveGroup はフォームのグループslugをIDに解決する。
// 未知のslugはフォームのフィールドエラーとして扱う。
func (s *Service) resolveGroup(ctx context.Context, slug string) (*int64, error) {
	if slug == "" {
		return nil, nil
	}
	group, err := s.groupRepo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("グループの解決に失敗しました: %w", err)
	}
	if group == nil {
		return nil, model.NewValidationError(map[string]string{"group": "unknown group"})
	}
	return &group.ID, nil
}

// CreatePost は新しい投稿を作成する。作者は常に操作ユーザー自身になる。
func (s *Service) CreatePost(ctx context.Context, authorID string, f form.PostForm) (*model.Post, error) {
	groupID, err := s.resolveGroup(ctx, f.GroupSlug)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		Text:     s.sanitizer.Sanitize(f.Text),
		AuthorID: authorID,
		GroupID:  groupID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	return post, nil
}

// GetView は投稿詳細をコメント付きで返す。
// 作者ユーザー名と投稿IDの組が一致しない場合は404エラー。
func (s *Service) GetView(ctx context.Context, username string, postID int64, viewerID string) (*View, error) {
	post, err := s.postRepo.FindWithMeta(ctx, username, postID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	comments, err := s.commentRepo.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}

	return &View{Post: *post, Comments: comments}, nil
}

// resolvePost は作者ユーザー名と投稿IDの組で投稿を取得する。
// 組が一致しない場合は404エラー。
func (s *Service) resolvePost(ctx context.Context, authorUsername string, postID int64) (*model.Post, error) {
	post, err := s.postRepo.FindWithMeta(ctx, authorUsername, postID, "")
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	return &post.Post, nil
}

// ownedPost は投稿を取得し、userIDが所有者であることを確認する。
// 作者名と投稿IDの組が一致しない場合の404は所有者チェックより優先される。
func (s *Service) ownedPost(ctx context.Context, userID, authorUsername string, postID int64) (*model.Post, error) {
	post, err := s.resolvePost(ctx, authorUsername, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, ErrNotOwner
	}
	return post, nil
}

// UpdatePost は投稿の本文とグループを更新する。所有者以外はErrNotOwner。
// published_atは変更されない。
func (s *Service) UpdatePost(ctx context.Context, userID, authorUsername string, postID int64, f form.PostForm) error {
	post, err := s.ownedPost(ctx, userID, authorUsername, postID)
	if err != nil {
		return err
	}

	groupID, err := s.resolveGroup(ctx, f.GroupSlug)
	if err != nil {
		return err
	}

	post.Text = s.sanitizer.Sanitize(f.Text)
	post.GroupID = groupID
	if err := s.postRepo.Update(ctx, post); err != nil {
		return fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}
	return nil
}

// DeletePost は投稿を削除する。所有者以外はErrNotOwner。
// 添付画像はベストエフォートで削除し、失敗してもエラーにしない。
func (s *Service) DeletePost(ctx context.Context, userID, authorUsername string, postID int64) error {
	post, err := s.ownedPost(ctx, userID, authorUsername, postID)
	if err != nil {
		return err
	}

	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}

	if post.ImageURL != nil && s.images != nil {
		if err := s.images.Remove(ctx, *post.ImageURL); err != nil {
			s.logger.Warn("添付画像の削除に失敗しました",
				slog.Int64("post_id", postID),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// AttachImage は投稿に画像を添付する。所有者以外はErrNotOwner。
// 既存の添付画像はベストエフォートで削除される。
func (s *Service) AttachImage(ctx context.Context, userID, authorUsername string, postID int64, fileName, contentType string, file io.Reader, size int64) (string, error) {
	if s.images == nil {
		return "", model.NewValidationError(map[string]string{"image": "image storage is not configured"})
	}
	if !storage.IsAllowedImageType(contentType) {
		return "", model.NewValidationError(map[string]string{"image": "unsupported image type"})
	}

	post, err := s.ownedPost(ctx, userID, authorUsername, postID)
	if err != nil {
		return "", err
	}

	url, err := s.images.Upload(ctx, fileName, contentType, file, size)
	if err != nil {
		return "", fmt.Errorf("画像のアップロードに失敗しました: %w", err)
	}

	previous := post.ImageURL
	post.ImageURL = &url
	if err := s.postRepo.Update(ctx, post); err != nil {
		// アップロード済みのオブジェクトを孤立させない
		if rmErr := s.images.Remove(ctx, url); rmErr != nil {
			s.logger.Warn("アップロード済み画像の削除に失敗しました",
				slog.Int64("post_id", postID),
				slog.String("error", rmErr.Error()))
		}
		return "", fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}

	if previous != nil {
		if err := s.images.Remove(ctx, *previous); err != nil {
			s.logger.Warn("旧添付画像の削除に失敗しました",
				slog.Int64("post_id", postID),
				slog.String("error", err.Error()))
		}
	}
	return url, nil
}

// AddComment は投稿にコメントを追加する。
// 作者名と投稿IDの組が一致しない場合は404エラー。
func (s *Service) AddComment(ctx context.Context, userID, authorUsername string, postID int64, f form.CommentForm) (*model.Comment, error) {
	if _, err := s.resolvePost(ctx, authorUsername, postID); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		PostID:   postID,
		AuthorID: userID,
		Text:     s.sanitizer.Sanitize(f.Text),
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}
	return comment, nil
}

// DeleteComment はコメントを削除する。所有者以外はErrNotOwner。
// 作者名と投稿IDの組が一致しない場合、またはコメントが対象投稿に
// 属していない場合は404エラー。
func (s *Service) DeleteComment(ctx context.Context, userID, authorUsername string, postID, commentID int64) error {
	if _, err := s.resolvePost(ctx, authorUsername, postID); err != nil {
		return err
	}

	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if comment == nil || comment.PostID != postID {
		return model.NewCommentNotFoundError(commentID)
	}
	if comment.AuthorID != userID {
		return ErrNotOwner
	}

	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}
	return nil
}

// CreateGroup は新しいグループを作成する。
// slugの重複はフィールドエラーとして返し、部分的な書き込みは起きない。
func (s *Service) CreateGroup(ctx context.Context, f form.GroupForm) (*model.Group, error) {
	group := &model.Group{
		Title:       s.sanitizer.Sanitize(f.Title),
		Slug:        f.Slug,
		Description: s.sanitizer.Sanitize(f.Description),
	}
	err := s.groupRepo.Create(ctx, group)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, model.NewValidationError(map[string]string{"slug": "is already taken"})
	}
	if err != nil {
		return nil, fmt.Errorf("グループの作成に失敗しました: %w", err)
	}
	return group, nil
}

// ListGroups は全グループを返す。
func (s *Service) ListGroups(ctx context.Context) ([]model.Group, error) {
	groups, err := s.groupRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("グループ一覧の取得に失敗しました: %w", err)
	}
	return groups, nil
}
