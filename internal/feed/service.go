// Package feed は投稿フィード取得のドメインロジックを提供する。
package feed

import (
	"context"
	"fmt"

	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/repository"
)

// PageSize は1ページあたりの投稿件数。
const PageSize = 10

// Scope はフィードの取得範囲。
type Scope int

const (
	// ScopeGlobal は全投稿。
	ScopeGlobal Scope = iota
	// ScopeGroup は指定グループの投稿。
	ScopeGroup
	// ScopeAuthor は指定作者の投稿。
	ScopeAuthor
	// ScopeFollowing は閲覧者がフォロー中の作者の投稿。
	ScopeFollowing
)

// Query はフィード取得の条件。
type Query struct {
	Scope Scope
	// GroupSlug はScopeGroupのときのグループslug。
	GroupSlug string
	// AuthorUsername はScopeAuthorのときの作者ユーザー名。
	AuthorUsername string
	// ViewerID は閲覧者のユーザーID。匿名の場合は空文字列。
	ViewerID string
	// Search は投稿本文への部分一致検索語。空なら検索しない。
	Search string
	// Page は1始まりのページ番号。
	Page int
}

// Page はフィード1ページ分の結果とページネーション情報。
type Page struct {
	Posts      []model.PostWithMeta
	Number     int
	TotalPages int
	TotalCount int
	HasNext    bool
	HasPrev    bool
	// Group はScopeGroupのときの対象グループ。
	Group *model.Group
	// Author はScopeAuthorのときの対象ユーザー。
	Author *model.User
}

// Service はフィード取得のサービス層。
type Service struct {
	postRepo  repository.PostRepository
	groupRepo repository.GroupRepository
	userRepo  repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	postRepo repository.PostRepository,
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
) *Service {
	return &Service{
		postRepo:  postRepo,
		groupRepo: groupRepo,
		userRepo:  userRepo,
	}
}

// List はクエリに合致する投稿を1ページ分返す。
// ページ番号は1未満なら1ページ目、末尾を超えたら最後の非空ページに丸める。
func (s *Service) List(ctx context.Context, q Query) (*Page, error) {
	page := &Page{}

	feedQuery := repository.FeedQuery{
		ViewerID: q.ViewerID,
		Search:   q.Search,
	}

	switch q.Scope {
	case ScopeGroup:
		group, err := s.groupRepo.FindBySlug(ctx, q.GroupSlug)
		if err != nil {
			return nil, fmt.Errorf("グループの解決に失敗しました: %w", err)
		}
		if group == nil {
			return nil, model.NewGroupNotFoundError(q.GroupSlug)
		}
		page.Group = group
		feedQuery.GroupID = &group.ID
	case ScopeAuthor:
		author, err := s.userRepo.FindByUsername(ctx, q.AuthorUsername)
		if err != nil {
			return nil, fmt.Errorf("作者の解決に失敗しました: %w", err)
		}
		if author == nil {
			return nil, model.NewUserNotFoundError(q.AuthorUsername)
		}
		page.Author = author
		feedQuery.AuthorID = &author.ID
	case ScopeFollowing:
		viewerID := q.ViewerID
		feedQuery.FollowedBy = &viewerID
	}

	// 検索語があるとき、絞り込みは検索語のみで行う。
	// グループ・作者の解決は上で済んでいるので、未知slug等の404はそのまま機能する。
	if q.Search != "" {
		feedQuery.GroupID = nil
		feedQuery.AuthorID = nil
		feedQuery.FollowedBy = nil
	}

	total, err := s.postRepo.CountFeed(ctx, feedQuery)
	if err != nil {
		return nil, fmt.Errorf("投稿件数の取得に失敗しました: %w", err)
	}

	totalPages := (total + PageSize - 1) / PageSize
	if totalPages < 1 {
		totalPages = 1
	}

	number := q.Page
	if number < 1 {
		number = 1
	}
	if number > totalPages {
		number = totalPages
	}

	feedQuery.Limit = PageSize
	feedQuery.Offset = (number - 1) * PageSize

	posts, err := s.postRepo.ListFeed(ctx, feedQuery)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	page.Posts = posts
	page.Number = number
	page.TotalPages = totalPages
	page.TotalCount = total
	page.HasNext = number < totalPages
	page.HasPrev = number > 1
	return page, nil
}
