// Package social はフォローといいねのドメインロジックを提供する。
package social

import (
	"context"
	"fmt"

	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/repository"
)

// Service はフォロー・いいね管理のサービス層。
// すべての操作は冪等で、重複実行してもエラーにならない。
type Service struct {
	userRepo   repository.UserRepository
	postRepo   repository.PostRepository
	followRepo repository.FollowRepository
	likeRepo   repository.LikeRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
	followRepo repository.FollowRepository,
	likeRepo repository.LikeRepository,
) *Service {
	return &Service{
		userRepo:   userRepo,
		postRepo:   postRepo,
		followRepo: followRepo,
		likeRepo:   likeRepo,
	}
}

// Follow はuserIDがtargetUsernameをフォローする。
// 自己フォローとフォロー済みは何もしない。対象が存在しない場合は404エラー。
func (s *Service) Follow(ctx context.Context, userID, targetUsername string) error {
	target, err := s.userRepo.FindByUsername(ctx, targetUsername)
	if err != nil {
		return fmt.Errorf("フォロー対象の解決に失敗しました: %w", err)
	}
	if target == nil {
		return model.NewUserNotFoundError(targetUsername)
	}
	if target.ID == userID {
		return nil
	}

	// 同時リクエストの重複はINSERT側のON CONFLICTが吸収する
	if err := s.followRepo.Create(ctx, userID, target.ID); err != nil {
		return fmt.Errorf("フォローに失敗しました: %w", err)
	}
	return nil
}

// Unfollow はuserIDのtargetUsernameへのフォローを解除する。
// フォローしていない場合は何もしない。対象が存在しない場合は404エラー。
func (s *Service) Unfollow(ctx context.Context, userID, targetUsername string) error {
	target, err := s.userRepo.FindByUsername(ctx, targetUsername)
	if err != nil {
		return fmt.Errorf("フォロー対象の解決に失敗しました: %w", err)
	}
	if target == nil {
		return model.NewUserNotFoundError(targetUsername)
	}

	if err := s.followRepo.Delete(ctx, userID, target.ID); err != nil {
		return fmt.Errorf("フォロー解除に失敗しました: %w", err)
	}
	return nil
}

// IsFollowing はuserIDがauthorIDをフォロー中かを返す。
// 匿名閲覧者（空のuserID）には常にfalseを返す。
func (s *Service) IsFollowing(ctx context.Context, userID, authorID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	following, err := s.followRepo.Exists(ctx, userID, authorID)
	if err != nil {
		return false, fmt.Errorf("フォロー状態の確認に失敗しました: %w", err)
	}
	return following, nil
}

// resolvePost は作者ユーザー名と投稿IDの組で投稿を解決する。
// 組が一致しない場合は404エラー。
func (s *Service) resolvePost(ctx context.Context, authorUsername string, postID int64) error {
	post, err := s.postRepo.FindWithMeta(ctx, authorUsername, postID, "")
	if err != nil {
		return fmt.Errorf("投稿の解決に失敗しました: %w", err)
	}
	if post == nil {
		return model.NewPostNotFoundError(postID)
	}
	return nil
}

// Like はuserIDが投稿postIDにいいねする。
// いいね済みは何もしない。作者名と投稿IDの組が一致しない場合は404エラー。
func (s *Service) Like(ctx context.Context, userID, authorUsername string, postID int64) error {
	if err := s.resolvePost(ctx, authorUsername, postID); err != nil {
		return err
	}

	if err := s.likeRepo.Create(ctx, userID, postID); err != nil {
		return fmt.Errorf("いいねに失敗しました: %w", err)
	}
	return nil
}

// Unlike はuserIDの投稿postIDへのいいねを取り消す。
// いいねしていない場合は何もしない。作者名と投稿IDの組が一致しない場合は404エラー。
func (s *Service) Unlike(ctx context.Context, userID, authorUsername string, postID int64) error {
	if err := s.resolvePost(ctx, authorUsername, postID); err != nil {
		return err
	}

	if err := s.likeRepo.Delete(ctx, userID, postID); err != nil {
		return fmt.Errorf("いいね取り消しに失敗しました: %w", err)
	}
	return nil
}
