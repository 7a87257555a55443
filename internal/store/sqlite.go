package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"vk-comments-exporter/internal/config"
)

var (
	sqliteOnce sync.Once
	sqliteInst *sql.DB
	sqliteErr  error
)

func sqlitePath() string {
	p := strings.TrimSpace(config.AppConfig.SQLitePath)
	if p == "" {
		p = filepath.Join(DataDir(), "vk_comments.db")
	}
	return p
}

func sqliteDB() (*sql.DB, error) {
	if backendKind() != backendSQLite {
		return nil, errors.New("sqlite backend disabled")
	}
	sqliteOnce.Do(func() {
		p := sqlitePath()
		if dir := filepath.Dir(p); dir != "" && dir != "." {
			_ = os.MkdirAll(dir, 0755)
		}
		db, err := sql.Open("sqlite", p)
		if err != nil {
			sqliteErr = err
			return
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		stmts := []string{
			`PRAGMA busy_timeout = 5000;`,
			`PRAGMA journal_mode = WAL;`,
			`CREATE TABLE IF NOT EXISTS videos (
				owner_id INTEGER NOT NULL,
				video_id INTEGER NOT NULL,
				total_top_level INTEGER NOT NULL,
				total_comments INTEGER NOT NULL,
				updated_at INTEGER NOT NULL,
				PRIMARY KEY (owner_id, video_id)
			);`,
			`CREATE TABLE IF NOT EXISTS comments (
				owner_id INTEGER NOT NULL,
				video_id INTEGER NOT NULL,
				comment_id INTEGER NOT NULL,
				parent_id INTEGER,
				reply_level INTEGER NOT NULL,
				data_json TEXT NOT NULL,
				updated_at INTEGER NOT NULL,
				PRIMARY KEY (owner_id, video_id, comment_id)
			);`,
			`CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(owner_id, video_id, parent_id);`,
		}
		for _, stmt := range stmts {
			if _, err := db.Exec(stmt); err != nil {
				_ = db.Close()
				sqliteErr = err
				return
			}
		}
		sqliteInst = db
	})
	return sqliteInst, sqliteErr
}

func sqliteArchive(ctx context.Context, v archivedVideo) error {
	db, err := sqliteDB()
	if err != nil {
		return err
	}
	return archiveSQL(ctx, db,
		`INSERT INTO videos(owner_id, video_id, total_top_level, total_comments, updated_at)
		 VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id, video_id)
		 DO UPDATE SET total_top_level=excluded.total_top_level, total_comments=excluded.total_comments, updated_at=excluded.updated_at;`,
		`INSERT INTO comments(owner_id, video_id, comment_id, parent_id, reply_level, data_json, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id, video_id, comment_id)
		 DO UPDATE SET parent_id=excluded.parent_id, reply_level=excluded.reply_level, data_json=excluded.data_json, updated_at=excluded.updated_at;`,
		v,
	)
}
