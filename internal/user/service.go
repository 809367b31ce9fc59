// Package user はユーザープロフィールのドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/postline/internal/form"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/repository"
)

// ErrNotSelf は本人以外によるプロフィール編集の試み。
// ハンドラはこれを対象プロフィールへのリダイレクトに変換する。
var ErrNotSelf = errors.New("本人のプロフィールではありません")

// Service はプロフィール管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// GetByUsername は指定ユーザー名のユーザーを返す。存在しない場合は404エラー。
func (s *Service) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(username)
	}
	return user, nil
}

// UpdateProfile はプロフィールを更新する。
// 操作ユーザーと対象ユーザー名が一致しない場合はErrNotSelf。
// ユーザー名の重複はフィールドエラーとして返す。
func (s *Service) UpdateProfile(ctx context.Context, actorID, targetUsername string, f form.ProfileForm) (*model.User, error) {
	target, err := s.GetByUsername(ctx, targetUsername)
	if err != nil {
		return nil, err
	}
	if target.ID != actorID {
		return nil, ErrNotSelf
	}

	target.Username = f.Username
	target.FirstName = f.FirstName
	target.LastName = f.LastName
	if f.Email != "" {
		target.Email = f.Email
	}

	err = s.userRepo.UpdateProfile(ctx, target)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, model.NewValidationError(map[string]string{"username": "is already taken"})
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return target, nil
}
