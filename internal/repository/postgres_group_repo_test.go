package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresGroupRepo_FindBySlug_MissingReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewPostgresGroupRepo(db)

	mock.ExpectQuery(`SELECT id, title, slug, description, created_at FROM groups WHERE slug`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "slug", "description", "created_at"}))

	group, err := repo.FindBySlug(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if group != nil {
		t.Errorf("expected nil for missing slug, got %+v", group)
	}
}

func TestPostgresGroupRepo_ListOrderedByTitle(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT id, title, slug, description, created_at FROM groups ORDER BY title ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "slug", "description", "created_at"}).
			AddRow(int64(2), "Cats", "cats", "猫の話題", now).
			AddRow(int64(1), "Dogs", "dogs", "犬の話題", now))

	// インターフェース越しに呼び、宣言と実装のシグネチャがそろっていることも確認する
	var repo GroupRepository = NewPostgresGroupRepo(db)

	groups, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if groups[0].Slug != "cats" || groups[1].Slug != "dogs" {
		t.Errorf("unexpected order: %q, %q", groups[0].Slug, groups[1].Slug)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
