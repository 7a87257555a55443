package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"vk-comments-exporter/internal/config"
)

var (
	pgOnce sync.Once
	pgInst *sql.DB
	pgErr  error
)

func postgresDB() (*sql.DB, error) {
	if backendKind() != backendPostgres {
		return nil, errors.New("postgres backend disabled")
	}
	pgOnce.Do(func() {
		dsn := strings.TrimSpace(config.AppConfig.PostgresDSN)
		if dsn == "" {
			pgErr = errors.New("POSTGRES_DSN is empty")
			return
		}
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			pgErr = err
			return
		}
		setDBPoolDefaults(db, 8)
		db.SetConnMaxIdleTime(2 * time.Minute)

		if err := initPostgresSchema(db); err != nil {
			_ = db.Close()
			pgErr = err
			return
		}
		pgInst = db
	})
	return pgInst, pgErr
}

func initPostgresSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS videos (
			owner_id BIGINT NOT NULL,
			video_id BIGINT NOT NULL,
			total_top_level INTEGER NOT NULL,
			total_comments INTEGER NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (owner_id, video_id)
		);`,
		`CREATE TABLE IF NOT EXISTS comments (
			owner_id BIGINT NOT NULL,
			video_id BIGINT NOT NULL,
			comment_id BIGINT NOT NULL,
			parent_id BIGINT,
			reply_level INTEGER NOT NULL,
			data_json TEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (owner_id, video_id, comment_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(owner_id, video_id, parent_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("postgres init schema: %w", err)
		}
	}
	return nil
}

func postgresArchive(ctx context.Context, v archivedVideo) error {
	db, err := postgresDB()
	if err != nil {
		return err
	}
	return archiveSQL(ctx, db,
		`INSERT INTO videos(owner_id, video_id, total_top_level, total_comments, updated_at)
		 VALUES($1, $2, $3, $4, $5)
		 ON CONFLICT (owner_id, video_id)
		 DO UPDATE SET total_top_level=EXCLUDED.total_top_level, total_comments=EXCLUDED.total_comments, updated_at=EXCLUDED.updated_at;`,
		`INSERT INTO comments(owner_id, video_id, comment_id, parent_id, reply_level, data_json, updated_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (owner_id, video_id, comment_id)
		 DO UPDATE SET parent_id=EXCLUDED.parent_id, reply_level=EXCLUDED.reply_level, data_json=EXCLUDED.data_json, updated_at=EXCLUDED.updated_at;`,
		v,
	)
}
