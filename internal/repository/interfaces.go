// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/postline/internal/model"
)

// FeedQuery はフィード取得の条件を表す。
// スコープ（GroupID / AuthorID / FollowedBy）と検索語は呼び出し側が組み立てる。
// ViewerIDが空の場合、Liked注釈は常にfalseになる。
type FeedQuery struct {
	ViewerID   string  // 閲覧ユーザーID。匿名の場合は空
	Search     string  // 大文字小文字を区別しない部分一致検索
	GroupID    *int64  // グループスコープ
	AuthorID   *string // 作者スコープ
	FollowedBy *string // フォロー中の作者スコープ（このユーザーのフォロー集合）
	Limit      int
	Offset     int
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// UsernameExists は指定ユーザー名が既に使用されているかを返す。
	UsernameExists(ctx context.Context, username string) (bool, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile はプロフィール項目（username, first_name, last_name, email）を更新する。
	// ユーザー名の一意制約違反はErrDuplicateとして返す。
	UpdateProfile(ctx context.Context, user *model.User) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// GroupRepository はグループデータの永続化インターフェース。
type GroupRepository interface {
	// FindBySlug は指定スラグのグループを取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Group, error)

	// Create はグループを作成し、採番されたIDをgroupに書き戻す。
	// スラグの一意制約違反はErrDuplicateとして返す。
	Create(ctx context.Context, group *model.Group) error

	// List は全グループをタイトル昇順で返す。
	List(ctx context.Context) ([]model.Group, error)
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Post, error)

	// FindWithMeta は作者ユーザー名と投稿IDで投稿を周辺情報付きで取得する。
	// viewerIDが空でない場合はLiked注釈を計算する。見つからない場合はnilを返す。
	FindWithMeta(ctx context.Context, username string, postID int64, viewerID string) (*model.PostWithMeta, error)

	// ListFeed はフィード条件に合致する投稿を公開日時降順（同時刻は挿入順）で返す。
	// 1回のSQLで作者・グループ・コメント数・ライク数・Liked注釈をまとめて取得する。
	ListFeed(ctx context.Context, q FeedQuery) ([]model.PostWithMeta, error)

	// CountFeed はフィード条件に合致する投稿の総数を返す。
	CountFeed(ctx context.Context, q FeedQuery) (int, error)

	// Create は投稿を作成し、採番されたIDと公開日時をpostに書き戻す。
	Create(ctx context.Context, post *model.Post) error

	// Update は投稿の本文・グループ・画像を更新する。published_atは変更しない。
	Update(ctx context.Context, post *model.Post) error

	// Delete は指定IDの投稿を削除する。コメント・ライクはCASCADE削除される。
	Delete(ctx context.Context, id int64) error
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Comment, error)

	// ListByPostID は投稿のコメント一覧を作者情報付きで作成日時昇順で返す。
	ListByPostID(ctx context.Context, postID int64) ([]model.CommentWithAuthor, error)

	// Create はコメントを作成し、採番されたIDをcommentに書き戻す。
	Create(ctx context.Context, comment *model.Comment) error

	// Delete は指定IDのコメントを削除する。
	Delete(ctx context.Context, id int64) error
}

// FollowRepository はフォロー辺の永続化インターフェース。
type FollowRepository interface {
	// Exists は(user, author)のフォロー辺が存在するかを返す。
	Exists(ctx context.Context, userID, authorID string) (bool, error)

	// Create はフォロー辺を作成する。既に存在する場合は良性のno-op。
	// 一意制約により並行リクエストでも辺は高々1本になる。
	Create(ctx context.Context, userID, authorID string) error

	// Delete はフォロー辺を削除する。存在しない場合はno-op。
	Delete(ctx context.Context, userID, authorID string) error
}

// LikeRepository はライク辺の永続化インターフェース。
type LikeRepository interface {
	// Exists は(user, post)のライク辺が存在するかを返す。
	Exists(ctx context.Context, userID string, postID int64) (bool, error)

	// Create はライク辺を作成する（get-or-create）。既に存在する場合はno-op。
	Create(ctx context.Context, userID string, postID int64) error

	// Delete はライク辺を削除する。存在しない場合はno-op。
	Delete(ctx context.Context, userID string, postID int64) error
}
