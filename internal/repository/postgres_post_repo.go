package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/postline/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// feedSelectColumns はフィード1行分の取得カラム。
// Liked注釈は相関EXISTSで同一クエリ内に畳み込み、投稿ごとの追加ラウンドトリップを避ける。
// 閲覧者IDはtext比較にすることで、匿名（空文字列）でもuuidキャストエラーにならない。
const feedSelectColumns = `
	p.id, p.text, p.author_id, p.group_id, p.image_url, p.published_at, p.created_at, p.updated_at,
	u.username, u.first_name, u.last_name,
	g.slug, g.title,
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
	(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id),
	EXISTS(SELECT 1 FROM likes lk WHERE lk.post_id = p.id AND lk.user_id::text = $1)`

const feedFromClause = `
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN groups g ON g.id = p.group_id`

// buildFeedWhere はFeedQueryからWHERE句とバインド引数を組み立てる。
// argsに事前バインド（SELECT句用の閲覧者IDなど）がある場合はその続きから採番する。
func buildFeedWhere(q FeedQuery, args []any) (string, []any) {
	var conds []string

	if q.Search != "" {
		args = append(args, q.Search)
		conds = append(conds, `p.text ILIKE '%' || $`+strconv.Itoa(len(args))+` || '%'`)
	}
	if q.GroupID != nil {
		args = append(args, *q.GroupID)
		conds = append(conds, `p.group_id = $`+strconv.Itoa(len(args)))
	}
	if q.AuthorID != nil {
		args = append(args, *q.AuthorID)
		conds = append(conds, `p.author_id = $`+strconv.Itoa(len(args)))
	}
	if q.FollowedBy != nil {
		args = append(args, *q.FollowedBy)
		conds = append(conds, `p.author_id IN (SELECT f.author_id FROM follows f WHERE f.user_id = $`+strconv.Itoa(len(args))+`)`)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanPostWithMeta(rows interface{ Scan(...any) error }) (model.PostWithMeta, error) {
	var (
		p         model.PostWithMeta
		firstName string
		lastName  string
	)
	err := rows.Scan(
		&p.ID, &p.Text, &p.AuthorID, &p.GroupID, &p.ImageURL, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt,
		&p.AuthorUsername, &firstName, &lastName,
		&p.GroupSlug, &p.GroupTitle,
		&p.CommentCount, &p.LikeCount,
		&p.Liked,
	)
	if err != nil {
		return model.PostWithMeta{}, err
	}
	u := model.User{Username: p.AuthorUsername, FirstName: firstName, LastName: lastName}
	p.AuthorFullName = u.FullName()
	return p, nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	post := &model.Post{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, text, author_id, group_id, image_url, published_at, created_at, updated_at
		 FROM posts WHERE id = $1`,
		id,
	).Scan(&post.ID, &post.Text, &post.AuthorID, &post.GroupID, &post.ImageURL, &post.PublishedAt, &post.CreatedAt, &post.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}

	return post, nil
}

// FindWithMeta は作者ユーザー名と投稿IDで投稿を周辺情報付きで取得する。
// 見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindWithMeta(ctx context.Context, username string, postID int64, viewerID string) (*model.PostWithMeta, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+feedSelectColumns+feedFromClause+`
		 WHERE p.id = $2 AND u.username = $3`,
		viewerID, postID, username,
	)
	p, err := scanPostWithMeta(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿（周辺情報付き）の取得に失敗しました: %w", err)
	}
	return &p, nil
}

// ListFeed はフィード条件に合致する投稿を公開日時降順で返す。
// 同時刻の投稿はID昇順（挿入順）で安定に並ぶ。
func (r *PostgresPostRepo) ListFeed(ctx context.Context, q FeedQuery) ([]model.PostWithMeta, error) {
	where, args := buildFeedWhere(q, []any{q.ViewerID})
	args = append(args, q.Limit, q.Offset)

	query := `SELECT ` + feedSelectColumns + feedFromClause + where +
		` ORDER BY p.published_at DESC, p.id ASC` +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var posts []model.PostWithMeta
	for rows.Next() {
		p, err := scanPostWithMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("フィード行の読み取りに失敗しました: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィードの走査に失敗しました: %w", err)
	}
	return posts, nil
}

// CountFeed はフィード条件に合致する投稿の総数を返す。
func (r *PostgresPostRepo) CountFeed(ctx context.Context, q FeedQuery) (int, error) {
	// 件数にLiked注釈は不要なので閲覧者IDはバインドしない
	where, args := buildFeedWhere(q, nil)
	query := `SELECT COUNT(*)` + feedFromClause + where

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("フィード件数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Create は投稿を作成し、採番されたIDと公開日時をpostに書き戻す。
// published_atはINSERT時にDBが一度だけ設定する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (text, author_id, group_id, image_url)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, published_at, created_at, updated_at`,
		post.Text, post.AuthorID, post.GroupID, post.ImageURL,
	).Scan(&post.ID, &post.PublishedAt, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は投稿の本文・グループ・画像を更新する。published_atは変更しない。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET text = $2, group_id = $3, image_url = $4, updated_at = NOW()
		 WHERE id = $1`,
		post.ID, post.Text, post.GroupID, post.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("投稿が見つかりません: %d", post.ID)
	}
	return nil
}

// Delete は指定IDの投稿を削除する。
func (r *PostgresPostRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
