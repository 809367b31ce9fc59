// Package model はドメインモデルを定義する。
package model

import "time"

// Follow はフォロー関係（user → author への有向辺）を表す。
// (user_id, author_id) の一意制約により、同一ペアの辺は高々1本しか存在しない。
// この制約が並行フォローリクエストに対する唯一の正しさの保証であり、
// 重複INSERTは良性のno-opとして扱う。
type Follow struct {
	UserID    string
	AuthorID  string
	CreatedAt time.Time
}

// Like はライク関係（user → post への有向辺）を表す。
// (user_id, post_id) の一意制約により冪等な「ライク済み」関係となる。
type Like struct {
	UserID    string
	PostID    int64
	CreatedAt time.Time
}
