package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vk-comments-exporter/internal/comments"
	"vk-comments-exporter/internal/config"
)

type sqlBackendKind string

const (
	backendFile     sqlBackendKind = "file"
	backendSQLite   sqlBackendKind = "sqlite"
	backendMySQL    sqlBackendKind = "mysql"
	backendPostgres sqlBackendKind = "postgres"
	backendMongoDB  sqlBackendKind = "mongodb"
)

func backendKind() sqlBackendKind {
	v := strings.ToLower(strings.TrimSpace(config.AppConfig.StoreBackend))
	switch v {
	case "sqlite":
		return backendSQLite
	case "mysql":
		return backendMySQL
	case "postgres", "postgresql":
		return backendPostgres
	case "mongodb", "mongo":
		return backendMongoDB
	default:
		return backendFile
	}
}

func setDBPoolDefaults(db *sql.DB, maxOpen int) {
	if db == nil {
		return
	}
	if maxOpen <= 0 {
		maxOpen = 4
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(0)
}

// archivedComment is one node of a result as stored by the archive sinks.
// DataJSON holds the node without its replies; the tree is recoverable from
// ParentID and ReplyLevel.
type archivedComment struct {
	CommentID  int64
	ParentID   *int64
	ReplyLevel int
	DataJSON   string
}

type archivedVideo struct {
	OwnerID       int64
	VideoID       int64
	TotalTopLevel int
	TotalComments int
	UpdatedAt     int64
	Comments      []archivedComment
}

func toArchive(res comments.Result) (archivedVideo, error) {
	v := archivedVideo{
		OwnerID:       res.OwnerID,
		VideoID:       res.VideoID,
		TotalTopLevel: res.TotalTopLevel,
		UpdatedAt:     time.Now().Unix(),
	}
	var walk func(n comments.Node, level int) error
	walk = func(n comments.Node, level int) error {
		flat := n
		flat.Replies = nil
		b, err := json.Marshal(flat)
		if err != nil {
			return err
		}
		v.Comments = append(v.Comments, archivedComment{
			CommentID:  n.ID,
			ParentID:   n.ParentID,
			ReplyLevel: level,
			DataJSON:   string(b),
		})
		for _, r := range n.Replies {
			if err := walk(r, level+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range res.Comments {
		if err := walk(n, 0); err != nil {
			return archivedVideo{}, err
		}
	}
	v.TotalComments = len(v.Comments)
	return v, nil
}

func nullableInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// archiveSQL runs one archive in a transaction. videoUpsert takes
// (owner_id, video_id, total_top_level, total_comments, updated_at);
// commentUpsert takes (owner_id, video_id, comment_id, parent_id, reply_level,
// data_json, updated_at).
func archiveSQL(ctx context.Context, db *sql.DB, videoUpsert, commentUpsert string, v archivedVideo) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, videoUpsert, v.OwnerID, v.VideoID, v.TotalTopLevel, v.TotalComments, v.UpdatedAt); err != nil {
		return fmt.Errorf("upsert video %d_%d: %w", v.OwnerID, v.VideoID, err)
	}

	stmt, err := tx.PrepareContext(ctx, commentUpsert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range v.Comments {
		if _, err := stmt.ExecContext(ctx, v.OwnerID, v.VideoID, c.CommentID, nullableInt(c.ParentID), c.ReplyLevel, c.DataJSON, v.UpdatedAt); err != nil {
			return fmt.Errorf("upsert comment %d: %w", c.CommentID, err)
		}
	}
	return tx.Commit()
}
