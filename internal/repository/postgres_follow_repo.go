package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresFollowRepo はPostgreSQLを使用したフォローリポジトリ。
type PostgresFollowRepo struct {
	db *sql.DB
}

// NewPostgresFollowRepo はPostgresFollowRepoを生成する。
func NewPostgresFollowRepo(db *sql.DB) *PostgresFollowRepo {
	return &PostgresFollowRepo{db: db}
}

// Exists はuserIDがauthorIDをフォロー中かを返す。
func (r *PostgresFollowRepo) Exists(ctx context.Context, userID, authorID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM follows WHERE user_id = $1 AND author_id = $2)`,
		userID, authorID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("フォロー状態の確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Create はフォロー関係を作成する。既に存在する場合は何もしない（冪等）。
// 重複は主キー制約とON CONFLICTで吸収し、同時リクエストでも行が二重にならない。
func (r *PostgresFollowRepo) Create(ctx context.Context, userID, authorID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO follows (user_id, author_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, author_id) DO NOTHING`,
		userID, authorID,
	)
	if err != nil {
		return fmt.Errorf("フォローの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete はフォロー関係を削除する。存在しない場合は何もしない（冪等）。
func (r *PostgresFollowRepo) Delete(ctx context.Context, userID, authorID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM follows WHERE user_id = $1 AND author_id = $2`,
		userID, authorID,
	)
	if err != nil {
		return fmt.Errorf("フォローの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ FollowRepository = (*PostgresFollowRepo)(nil)
