package api

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"vk-comments-exporter/internal/comments"
	"vk-comments-exporter/internal/export"
	"vk-comments-exporter/internal/store"
)

type dataFileInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ModifiedAt  int64  `json:"modified_at"`
	RecordCount *int   `json:"record_count,omitempty"`
	Type        string `json:"type"`
}

var exportExts = map[string]struct{}{
	".json": {},
	".csv":  {},
	".xlsx": {},
	".db":   {},
}

func (s *Server) handleDataFilesList(w http.ResponseWriter, r *http.Request) {
	files, err := listDataFiles(store.DataDir(), r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "server_error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleDataDownload(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	if rel == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad_params", "message": "missing file path"})
		return
	}
	fullPath, err := safeDataPath(store.DataDir(), rel)
	if err != nil {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "access denied"})
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "file not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "server_error", "message": err.Error()})
		return
	}
	if info.IsDir() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "not a file"})
		return
	}

	serveDownload(w, r, fullPath, filepath.Base(fullPath))
}

// listDataFiles walks dataDir for export files, newest first. The optional
// "video" query keeps paths containing it (e.g. -1_2); "file_type" filters
// by extension.
func listDataFiles(dataDir string, q url.Values) ([]dataFileInfo, error) {
	video := strings.TrimSpace(q.Get("video"))
	fileType := strings.ToLower(strings.TrimSpace(q.Get("file_type")))

	if _, err := os.Stat(dataDir); err != nil {
		if os.IsNotExist(err) {
			return []dataFileInfo{}, nil
		}
		return nil, err
	}

	out := make([]dataFileInfo, 0, 16)
	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := exportExts[ext]; !ok || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if fileType != "" && strings.TrimPrefix(ext, ".") != fileType {
			return nil
		}
		rel, err := filepath.Rel(dataDir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if video != "" && !strings.Contains(rel, video) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}

		item := dataFileInfo{
			Name:       d.Name(),
			Path:       rel,
			Size:       fi.Size(),
			ModifiedAt: fi.ModTime().Unix(),
			Type:       strings.TrimPrefix(ext, "."),
		}
		if rc, err := countRecords(path); err == nil {
			item.RecordCount = rc
		}
		out = append(out, item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ModifiedAt > out[j].ModifiedAt })
	return out, nil
}

// countRecords reports comment counts for JSON documents and data rows for
// CSV files. Other types have no count.
func countRecords(path string) (*int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		forest, err := export.ReadJSON(f)
		if err != nil {
			return nil, err
		}
		n := comments.Count(forest)
		return &n, nil
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		n, err := countLines(f)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			n--
		}
		return &n, nil
	default:
		return nil, errors.New("no record count")
	}
}

// countLines counts "\n"-separated lines; a final line without a newline
// still counts.
func countLines(r io.Reader) (int, error) {
	br := bufio.NewReader(r)
	buf := make([]byte, 32*1024)
	n := 0
	var last byte
	read := false
	for {
		k, err := br.Read(buf)
		if k > 0 {
			read = true
			n += bytes.Count(buf[:k], []byte{'\n'})
			last = buf[k-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if read && last != '\n' {
		n++
	}
	return n, nil
}

func safeDataPath(dataDir, rel string) (string, error) {
	if strings.Contains(rel, "\x00") {
		return "", errors.New("invalid path")
	}
	rel = strings.TrimPrefix(rel, "/")
	rel = filepath.Clean(filepath.FromSlash(rel))
	if rel == "." || rel == "" || filepath.IsAbs(rel) {
		return "", errors.New("invalid path")
	}
	dataAbs, err := filepath.Abs(dataDir)
	if err != nil {
		return "", err
	}
	fullAbs, err := filepath.Abs(filepath.Join(dataDir, rel))
	if err != nil {
		return "", err
	}
	relTo, err := filepath.Rel(dataAbs, fullAbs)
	if err != nil {
		return "", err
	}
	relTo = filepath.Clean(relTo)
	if relTo == "." || relTo == ".." || strings.HasPrefix(relTo, ".."+string(filepath.Separator)) {
		return "", errors.New("access denied")
	}
	return fullAbs, nil
}

func queryIntDefault(q url.Values, key string, defaultValue int) int {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}

func serveDownload(w http.ResponseWriter, r *http.Request, path, filename string) {
	f, err := os.Open(path)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "server_error", "message": err.Error()})
		return
	}
	defer f.Close()

	ctype := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		ctype = "application/json; charset=utf-8"
	case ".csv":
		ctype = "text/csv; charset=utf-8"
	case ".xlsx":
		ctype = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("content-type", ctype)
	w.Header().Set("content-disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}
