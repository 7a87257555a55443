package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vk-comments-exporter/internal/comments"
	"vk-comments-exporter/internal/config"
	"vk-comments-exporter/internal/export"
	"vk-comments-exporter/internal/logger"
)

// Store renders one aggregation result into a file format.
type Store interface {
	Ext() string
	Write(w io.Writer, res comments.Result) error
}

type JsonStore struct{}

func (JsonStore) Ext() string { return "json" }

func (JsonStore) Write(w io.Writer, res comments.Result) error {
	return export.WriteJSON(w, res)
}

type CsvStore struct {
	Delimiter string
}

func (CsvStore) Ext() string { return "csv" }

func (s CsvStore) Write(w io.Writer, res comments.Result) error {
	return export.WriteCSV(w, res.Comments, s.Delimiter)
}

type XlsxStore struct{}

func (XlsxStore) Ext() string { return "xlsx" }

func (XlsxStore) Write(w io.Writer, res comments.Result) error {
	return export.WriteXLSX(w, res.Comments)
}

// GetStore picks the writer for format; an empty format falls back to
// SAVE_DATA_OPTION.
func GetStore(format string) (Store, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		f = config.AppConfig.SaveDataOption
	}
	switch f {
	case "", "json":
		return JsonStore{}, nil
	case "csv":
		return CsvStore{Delimiter: config.AppConfig.CSVDelimiter}, nil
	case "xlsx", "excel":
		return XlsxStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func DataDir() string {
	dataDir := strings.TrimSpace(config.AppConfig.DataDir)
	if dataDir == "" {
		dataDir = "data"
	}
	return dataDir
}

// VideoDir is where exports of one video land: DATA_DIR/vk/<owner>_<video>.
func VideoDir(ownerID, videoID int64) string {
	return filepath.Join(DataDir(), "vk", strconv.FormatInt(ownerID, 10)+"_"+strconv.FormatInt(videoID, 10))
}

// SaveResult writes res to VideoDir as comments.<ext> and archives it to the
// configured backend. It returns the written path.
func SaveResult(ctx context.Context, res comments.Result, format string) (string, error) {
	s, err := GetStore(format)
	if err != nil {
		return "", err
	}
	path := filepath.Join(VideoDir(res.OwnerID, res.VideoID), "comments."+s.Ext())
	if err := WriteFile(path, func(w io.Writer) error { return s.Write(w, res) }); err != nil {
		return "", err
	}
	if err := ArchiveResult(ctx, res); err != nil {
		return path, fmt.Errorf("archive: %w", err)
	}
	logger.Info("export saved", "path", path, "format", s.Ext(), "top_level", res.TotalTopLevel)
	return path, nil
}

// WriteFile writes through a temp file in the target directory and renames it
// into place, so readers never see a partial export.
func WriteFile(path string, fn func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := fn(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
