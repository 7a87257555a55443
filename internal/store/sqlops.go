package store

import (
	"context"
	"fmt"

	"vk-comments-exporter/internal/comments"
)

// ArchiveResult upserts the video summary and every comment of res into the
// STORE_BACKEND database. The file backend makes it a no-op. Archives are
// write-only; nothing in this module reads them back.
func ArchiveResult(ctx context.Context, res comments.Result) error {
	kind := backendKind()
	if kind == backendFile {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	v, err := toArchive(res)
	if err != nil {
		return fmt.Errorf("prepare archive: %w", err)
	}
	switch kind {
	case backendSQLite:
		return sqliteArchive(ctx, v)
	case backendMySQL:
		return mysqlArchive(ctx, v)
	case backendPostgres:
		return postgresArchive(ctx, v)
	case backendMongoDB:
		return mongoArchive(ctx, v)
	default:
		return nil
	}
}
