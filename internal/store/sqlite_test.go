package store

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"vk-comments-exporter/internal/comments"
	"vk-comments-exporter/internal/config"
)

func resetSQLiteForTest(t *testing.T) {
	t.Helper()
	if sqliteInst != nil {
		_ = sqliteInst.Close()
	}
	sqliteInst = nil
	sqliteErr = nil
	sqliteOnce = sync.Once{}
	t.Cleanup(func() {
		if sqliteInst != nil {
			_ = sqliteInst.Close()
		}
		sqliteInst = nil
		sqliteErr = nil
		sqliteOnce = sync.Once{}
	})
}

func useSQLite(t *testing.T) {
	t.Helper()
	tmp := t.TempDir()
	old := config.AppConfig
	t.Cleanup(func() { config.AppConfig = old })
	config.AppConfig.DataDir = filepath.Join(tmp, "data")
	config.AppConfig.StoreBackend = "sqlite"
	config.AppConfig.SQLitePath = filepath.Join(tmp, "data", "vk_comments.db")
	resetSQLiteForTest(t)
}

func parent(v int64) *int64 { return &v }

func sampleResult() comments.Result {
	return comments.Result{
		OwnerID:       -100,
		VideoID:       200,
		TotalTopLevel: 2,
		Comments: []comments.Node{
			{ID: 1, Text: "a", Replies: []comments.Node{
				{ID: 2, ParentID: parent(1), Text: "b", Replies: []comments.Node{}},
			}},
			{ID: 3, Text: "c", Replies: []comments.Node{}},
		},
	}
}

func TestSQLiteArchiveUpserts(t *testing.T) {
	useSQLite(t)
	ctx := context.Background()

	res := sampleResult()
	if err := ArchiveResult(ctx, res); err != nil {
		t.Fatalf("ArchiveResult: %v", err)
	}
	res.Comments[1].Text = "edited"
	if err := ArchiveResult(ctx, res); err != nil {
		t.Fatalf("ArchiveResult(upsert): %v", err)
	}

	db, err := sqliteDB()
	if err != nil {
		t.Fatalf("sqliteDB: %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM comments WHERE owner_id=? AND video_id=?`, -100, 200).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 comment rows, got %d", count)
	}

	var level int
	var parentID *int64
	if err := db.QueryRow(`SELECT reply_level, parent_id FROM comments WHERE comment_id=?`, 2).Scan(&level, &parentID); err != nil {
		t.Fatalf("reply row: %v", err)
	}
	if level != 1 || parentID == nil || *parentID != 1 {
		t.Fatalf("reply level=%d parent=%v", level, parentID)
	}

	var data string
	if err := db.QueryRow(`SELECT data_json FROM comments WHERE comment_id=?`, 3).Scan(&data); err != nil {
		t.Fatalf("data row: %v", err)
	}
	if want := `"text":"edited"`; !strings.Contains(data, want) {
		t.Fatalf("data_json=%s, want %s", data, want)
	}

	var top, total int
	if err := db.QueryRow(`SELECT total_top_level, total_comments FROM videos WHERE owner_id=? AND video_id=?`, -100, 200).Scan(&top, &total); err != nil {
		t.Fatalf("video row: %v", err)
	}
	if top != 2 || total != 3 {
		t.Fatalf("video totals top=%d total=%d", top, total)
	}
}

func TestArchiveResultFileBackendIsNoop(t *testing.T) {
	old := config.AppConfig
	t.Cleanup(func() { config.AppConfig = old })
	config.AppConfig.StoreBackend = "file"

	if err := ArchiveResult(context.Background(), sampleResult()); err != nil {
		t.Fatalf("ArchiveResult: %v", err)
	}
	if err := Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
}
