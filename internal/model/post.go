// Package model はドメインモデルを定義する。
package model

import "time"

// Post は投稿を表す。
// 作者（AuthorID）は必須で、作成時に必ず設定される。
// 作者の削除で投稿もCASCADE削除され、グループの削除ではGroupIDがNULLになる
// （参照アクションはマイグレーションSQLで宣言される）。
// PublishedAtは作成時に一度だけ設定され、以降変更されない。
type Post struct {
	ID          int64
	Text        string // サニタイズ済み
	AuthorID    string
	GroupID     *int64  // 任意。グループ削除時はNULLに戻る
	ImageURL    *string // 任意
	PublishedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PostWithMeta は投稿と表示に必要な周辺情報を結合したモデル。
// フィードクエリが1回のSQLでまとめて取得する。
type PostWithMeta struct {
	Post
	AuthorUsername string
	AuthorFullName string
	GroupSlug      *string
	GroupTitle     *string
	CommentCount   int
	LikeCount      int
	// Liked は閲覧ユーザーが既にこの投稿をライクしているかを表す。
	// 匿名閲覧時は常にfalse。
	Liked bool
}

// Group は投稿のグループを表す。
// スラグはURL安全な一意識別子で、グループのライフサイクルは投稿から独立する。
type Group struct {
	ID          int64
	Title       string
	Slug        string
	Description string
	CreatedAt   time.Time
}

// Comment は投稿へのコメントを表す。
// 投稿または作者の削除でCASCADE削除される。本文は1000文字以内。
type Comment struct {
	ID        int64
	PostID    int64
	AuthorID  string
	Text      string // サニタイズ済み
	ImageURL  *string
	CreatedAt time.Time
}

// CommentWithAuthor はコメントと作者情報を結合したモデル。
type CommentWithAuthor struct {
	Comment
	AuthorUsername string
	AuthorFullName string
}
