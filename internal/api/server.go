package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"vk-comments-exporter/internal/cache"
	"vk-comments-exporter/internal/comments"
	"vk-comments-exporter/internal/config"
	"vk-comments-exporter/internal/crawler"
	"vk-comments-exporter/internal/metrics"
	"vk-comments-exporter/internal/vk"
)

// Aggregator is satisfied by *comments.Aggregator; tests inject fakes.
type Aggregator interface {
	Aggregate(ctx context.Context, token string, ownerID, videoID int64) (comments.Result, error)
}

type Server struct {
	agg      Aggregator
	manager  *TaskManager
	mux      *http.ServeMux
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewServer wires the HTTP surface. A nil agg uses the live VK client; a nil
// manager runs exports through agg into DATA_DIR.
func NewServer(agg Aggregator, manager *TaskManager) *Server {
	if agg == nil {
		agg = comments.NewAggregator(vk.NewClient())
	}
	if manager == nil {
		manager = NewTaskManager(agg)
	}
	s := &Server{
		agg:      agg,
		manager:  manager,
		mux:      http.NewServeMux(),
		cache:    cache.NewFromConfig(config.AppConfig),
		cacheTTL: cache.TTL(config.AppConfig),
	}
	s.routes()
	return s
}

// Handler returns the routed mux behind CORS and request metrics.
func (s *Server) Handler() http.Handler {
	return withCORS(metrics.Middleware(s.mux, s.routeLabel))
}

// Close releases the response cache.
func (s *Server) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /api/health", s.handleAPIHealth)

	s.mux.HandleFunc("POST /comments", s.handleComments)
	s.mux.HandleFunc("POST /api/video/comments", s.handleComments)
	s.mux.HandleFunc("GET /comments.csv", s.handleCommentsCSV)
	s.mux.HandleFunc("GET /api/video/comments.csv", s.handleCommentsCSV)
	s.mux.HandleFunc("GET /comments.xlsx", s.handleCommentsXLSX)
	s.mux.HandleFunc("GET /api/video/comments.xlsx", s.handleCommentsXLSX)

	s.mux.HandleFunc("GET /api/auth/url", s.handleAuthURL)
	s.mux.HandleFunc("POST /api/auth/token", s.handleAuthToken)

	s.mux.HandleFunc("POST /api/exports", s.handleExportStart)
	s.mux.HandleFunc("GET /api/exports/status", s.handleExportStatus)
	s.mux.HandleFunc("POST /api/exports/stop", s.handleExportStop)

	s.mux.HandleFunc("GET /api/data/files", s.handleDataFilesList)
	s.mux.HandleFunc("GET /api/data/download/{path...}", s.handleDataDownload)

	s.mux.HandleFunc("GET /api/logs", s.handleLogs)
	s.mux.HandleFunc("GET /api/ws/logs", s.handleWSLogs)
	s.mux.HandleFunc("GET /api/ws/status", s.handleWSStatus)
	s.mux.Handle("GET /metrics", metrics.Handler())
}

// routeLabel keeps metric cardinality bounded by labelling with the matched
// pattern instead of the raw path.
func (s *Server) routeLabel(r *http.Request) string {
	_, pattern := s.mux.Handler(r)
	if pattern == "" {
		return "unmatched"
	}
	return pattern
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("access-control-allow-origin", "*")
		h.Set("access-control-allow-methods", "GET, POST, OPTIONS")
		h.Set("access-control-allow-headers", "authorization, content-type")
		h.Set("access-control-expose-headers", "content-disposition")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ts": time.Now().UnixMilli()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// errorStatus maps an error kind to the HTTP status and the "error" field of
// the response body.
func errorStatus(err error) (int, string) {
	kind := crawler.KindOf(err)
	switch kind {
	case crawler.ErrorKindCredential:
		return http.StatusUnauthorized, "missing_token"
	case crawler.ErrorKindInvalidInput:
		return http.StatusBadRequest, "bad_params"
	case crawler.ErrorKindPermission, crawler.ErrorKindResourceClosed:
		return http.StatusForbidden, string(kind)
	case crawler.ErrorKindUpstream, crawler.ErrorKindTransport:
		return http.StatusBadGateway, string(kind)
	case crawler.ErrorKindTimeout:
		return http.StatusGatewayTimeout, string(kind)
	case crawler.ErrorKindCanceled:
		return 499, string(kind)
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, label := errorStatus(err)
	body := map[string]any{"error": label}
	if status != http.StatusUnauthorized {
		body["message"] = err.Error()
	}
	if code := crawler.CodeOf(err); code != 0 {
		body["code"] = code
	}
	var ce crawler.Error
	if errors.As(err, &ce) && ce.Kind == crawler.ErrorKindPermission {
		w.Header().Set("www-authenticate", `Bearer error="insufficient_scope"`)
	}
	writeJSON(w, status, body)
}

func formatID(v int64) string {
	return strconv.FormatInt(v, 10)
}
