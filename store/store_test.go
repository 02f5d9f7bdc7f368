package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(title string, createdAt string) *Record {
	return &Record{
		Title:       title,
		Link:        "https://news.example/item",
		Description: "기사 내용",
		PubDate:     "Fri, 14 Mar 2026 08:30:00 +0900",
		Summary:     "한 줄 요약",
		Sentiment:   "POSITIVE",
		CreatedAt:   createdAt,
	}
}

func TestInsertAndExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	exists, err := db.Exists(ctx, "한국투자증권 신규 서비스 출시")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("title should not exist in a fresh store")
	}

	if err := db.Insert(ctx, testRecord("한국투자증권 신규 서비스 출시", "2026-03-14")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	exists, err = db.Exists(ctx, "한국투자증권 신규 서비스 출시")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("title should exist after insert")
	}

	// Exact match only.
	exists, err = db.Exists(ctx, "한국투자증권 신규 서비스")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("prefix of a stored title should not match")
	}
}

func TestDuplicateInsertIsNoOp(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := testRecord("같은 제목", "2026-03-14")
	if err := db.Insert(ctx, first); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	second := testRecord("같은 제목", "2026-03-15")
	second.Summary = "다른 요약"
	if err := db.Insert(ctx, second); err != nil {
		t.Fatalf("duplicate Insert should not error: %v", err)
	}

	count, err := db.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	// The original row is untouched.
	var summary, createdAt string
	err = db.conn.QueryRowContext(ctx,
		`SELECT summary, created_at FROM news WHERE title = ?`, "같은 제목").
		Scan(&summary, &createdAt)
	if err != nil {
		t.Fatalf("query row: %v", err)
	}
	if summary != "한 줄 요약" || createdAt != "2026-03-14" {
		t.Errorf("row was overwritten: summary=%q created_at=%q", summary, createdAt)
	}
}

func TestPruneRetentionHorizon(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	old := now.AddDate(0, 0, -4).Format("2006-01-02")
	recent := now.AddDate(0, 0, -2).Format("2006-01-02")

	if err := db.Insert(ctx, testRecord("오래된 뉴스", old)); err != nil {
		t.Fatal(err)
	}
	if err := db.Insert(ctx, testRecord("최근 뉴스", recent)); err != nil {
		t.Fatal(err)
	}

	if err := db.Prune(ctx, now, DefaultRetentionDays); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	exists, _ := db.Exists(ctx, "오래된 뉴스")
	if exists {
		t.Error("record from 4 days ago should be pruned with a 3-day horizon")
	}
	exists, _ = db.Exists(ctx, "최근 뉴스")
	if !exists {
		t.Error("record from 2 days ago should survive")
	}
}

func TestPruneEmptyStoreIsSafe(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Prune(ctx, time.Now(), DefaultRetentionDays); err != nil {
		t.Fatalf("Prune on empty store failed: %v", err)
	}
	// Idempotent: a second prune changes nothing.
	if err := db.Prune(ctx, time.Now(), DefaultRetentionDays); err != nil {
		t.Fatalf("second Prune failed: %v", err)
	}
}
