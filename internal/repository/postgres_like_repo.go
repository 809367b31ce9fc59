package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresLikeRepo はPostgreSQLを使用したいいねリポジトリ。
type PostgresLikeRepo struct {
	db *sql.DB
}

// NewPostgresLikeRepo はPostgresLikeRepoを生成する。
func NewPostgresLikeRepo(db *sql.DB) *PostgresLikeRepo {
	return &PostgresLikeRepo{db: db}
}

// Exists はuserIDが投稿postIDにいいね済みかを返す。
func (r *PostgresLikeRepo) Exists(ctx context.Context, userID string, postID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM likes WHERE user_id = $1 AND post_id = $2)`,
		userID, postID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("いいね状態の確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Create はいいねを作成する。既に存在する場合は何もしない（冪等）。
func (r *PostgresLikeRepo) Create(ctx context.Context, userID string, postID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO likes (user_id, post_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, post_id) DO NOTHING`,
		userID, postID,
	)
	if err != nil {
		return fmt.Errorf("いいねの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete はいいねを削除する。存在しない場合は何もしない（冪等）。
func (r *PostgresLikeRepo) Delete(ctx context.Context, userID string, postID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM likes WHERE user_id = $1 AND post_id = $2`,
		userID, postID,
	)
	if err != nil {
		return fmt.Errorf("いいねの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ LikeRepository = (*PostgresLikeRepo)(nil)
