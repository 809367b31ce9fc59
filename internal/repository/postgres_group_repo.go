package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/postline/internal/model"
)

// PostgresGroupRepo はPostgreSQLを使用したグループリポジトリ。
type PostgresGroupRepo struct {
	db *sql.DB
}

// NewPostgresGroupRepo はPostgresGroupRepoを生成する。
func NewPostgresGroupRepo(db *sql.DB) *PostgresGroupRepo {
	return &PostgresGroupRepo{db: db}
}

// FindBySlug は指定slugのグループを取得する。見つからない場合はnilを返す。
func (r *PostgresGroupRepo) FindBySlug(ctx context.Context, slug string) (*model.Group, error) {
	group := &model.Group{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, slug, description, created_at FROM groups WHERE slug = $1`,
		slug,
	).Scan(&group.ID, &group.Title, &group.Slug, &group.Description, &group.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("グループの取得に失敗しました: %w", err)
	}

	return group, nil
}

// Create はグループを作成し、採番されたIDをgroupに書き戻す。
// slugが重複している場合はErrDuplicateを返す。
func (r *PostgresGroupRepo) Create(ctx context.Context, group *model.Group) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO groups (title, slug, description)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		group.Title, group.Slug, group.Description,
	).Scan(&group.ID, &group.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("グループの作成に失敗しました: %w", err)
	}
	return nil
}

// List は全グループをタイトル昇順で返す。
func (r *PostgresGroupRepo) List(ctx context.Context) ([]model.Group, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, slug, description, created_at FROM groups ORDER BY title ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("グループ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Title, &g.Slug, &g.Description, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("グループ行の読み取りに失敗しました: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("グループ一覧の走査に失敗しました: %w", err)
	}
	return groups, nil
}

// compile-time interface check
var _ GroupRepository = (*PostgresGroupRepo)(nil)
