package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/postline/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id int64) (*model.Comment, error) {
	comment := &model.Comment{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, post_id, author_id, text, image_url, created_at FROM comments WHERE id = $1`,
		id,
	).Scan(&comment.ID, &comment.PostID, &comment.AuthorID, &comment.Text, &comment.ImageURL, &comment.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}

	return comment, nil
}

// ListByPostID は指定投稿のコメントを作成日時昇順（古い順）で返す。
func (r *PostgresCommentRepo) ListByPostID(ctx context.Context, postID int64) ([]model.CommentWithAuthor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.post_id, c.author_id, c.text, c.image_url, c.created_at,
		        u.username, u.first_name, u.last_name
		 FROM comments c
		 JOIN users u ON u.id = c.author_id
		 WHERE c.post_id = $1
		 ORDER BY c.created_at ASC, c.id ASC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var comments []model.CommentWithAuthor
	for rows.Next() {
		var (
			c         model.CommentWithAuthor
			firstName string
			lastName  string
		)
		err := rows.Scan(
			&c.ID, &c.PostID, &c.AuthorID, &c.Text, &c.ImageURL, &c.CreatedAt,
			&c.AuthorUsername, &firstName, &lastName,
		)
		if err != nil {
			return nil, fmt.Errorf("コメント行の読み取りに失敗しました: %w", err)
		}
		u := model.User{Username: c.AuthorUsername, FirstName: firstName, LastName: lastName}
		c.AuthorFullName = u.FullName()
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コメント一覧の走査に失敗しました: %w", err)
	}
	return comments, nil
}

// Create はコメントを作成し、採番されたIDをcommentに書き戻す。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO comments (post_id, author_id, text, image_url)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		comment.PostID, comment.AuthorID, comment.Text, comment.ImageURL,
	).Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのコメントを削除する。
func (r *PostgresCommentRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM comments WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
