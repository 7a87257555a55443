package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"vk-comments-exporter/internal/config"
)

var (
	mysqlOnce sync.Once
	mysqlInst *sql.DB
	mysqlErr  error
)

func mysqlDB() (*sql.DB, error) {
	if backendKind() != backendMySQL {
		return nil, errors.New("mysql backend disabled")
	}
	mysqlOnce.Do(func() {
		dsn := strings.TrimSpace(config.AppConfig.MySQLDSN)
		if dsn == "" {
			mysqlErr = errors.New("MYSQL_DSN is empty")
			return
		}
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			mysqlErr = err
			return
		}
		setDBPoolDefaults(db, 8)
		db.SetConnMaxIdleTime(2 * time.Minute)

		if err := initMySQLSchema(db); err != nil {
			_ = db.Close()
			mysqlErr = err
			return
		}
		mysqlInst = db
	})
	return mysqlInst, mysqlErr
}

func initMySQLSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS videos (
			owner_id BIGINT NOT NULL,
			video_id BIGINT NOT NULL,
			total_top_level INT NOT NULL,
			total_comments INT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (owner_id, video_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
		`CREATE TABLE IF NOT EXISTS comments (
			owner_id BIGINT NOT NULL,
			video_id BIGINT NOT NULL,
			comment_id BIGINT NOT NULL,
			parent_id BIGINT NULL,
			reply_level INT NOT NULL,
			data_json LONGTEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (owner_id, video_id, comment_id),
			KEY idx_comments_parent (owner_id, video_id, parent_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("mysql init schema: %w", err)
		}
	}
	return nil
}

func mysqlArchive(ctx context.Context, v archivedVideo) error {
	db, err := mysqlDB()
	if err != nil {
		return err
	}
	return archiveSQL(ctx, db,
		`INSERT INTO videos(owner_id, video_id, total_top_level, total_comments, updated_at) VALUES(?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE total_top_level=VALUES(total_top_level), total_comments=VALUES(total_comments), updated_at=VALUES(updated_at);`,
		`INSERT INTO comments(owner_id, video_id, comment_id, parent_id, reply_level, data_json, updated_at) VALUES(?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE parent_id=VALUES(parent_id), reply_level=VALUES(reply_level), data_json=VALUES(data_json), updated_at=VALUES(updated_at);`,
		v,
	)
}
