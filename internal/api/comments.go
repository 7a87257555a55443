package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"vk-comments-exporter/internal/cache"
	"vk-comments-exporter/internal/comments"
	"vk-comments-exporter/internal/config"
	"vk-comments-exporter/internal/crawler"
	"vk-comments-exporter/internal/export"
	"vk-comments-exporter/internal/logger"
	"vk-comments-exporter/internal/vk"
)

const maxBodyBytes = 2 << 20

// bearerToken returns the credential of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("authorization"))
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// videoID accepts a JSON number or a numeric string.
type videoID struct {
	value int64
	set   bool
}

func (v *videoID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %s", b)
	}
	v.value, v.set = n, true
	return nil
}

type commentsRequest struct {
	OwnerID      videoID `json:"ownerId"`
	VideoID      videoID `json:"videoId"`
	OwnerIDSnake videoID `json:"owner_id"`
	VideoIDSnake videoID `json:"video_id"`
	Format       string  `json:"format,omitempty"`
}

func (req commentsRequest) ids() (int64, int64, error) {
	owner, video := req.OwnerID, req.VideoID
	if !owner.set {
		owner = req.OwnerIDSnake
	}
	if !video.set {
		video = req.VideoIDSnake
	}
	if !owner.set || !video.set {
		return 0, 0, crawler.NewInvalidInputError("ownerId/videoId required")
	}
	return owner.value, video.value, nil
}

func decodeCommentsRequest(r *http.Request) (commentsRequest, error) {
	var req commentsRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, crawler.NewInvalidInputError("ownerId/videoId required")
		}
		return req, crawler.NewInvalidInputError("invalid body: %v", err)
	}
	return req, nil
}

// queryIDs reads ownerId/videoId (or owner_id/video_id) from a query string.
func queryIDs(q url.Values) (int64, int64, error) {
	get := func(names ...string) (int64, bool) {
		for _, n := range names {
			raw := strings.TrimSpace(q.Get(n))
			if raw == "" {
				continue
			}
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return 0, false
			}
			return v, true
		}
		return 0, false
	}
	owner, ok1 := get("ownerId", "owner_id")
	video, ok2 := get("videoId", "video_id")
	if !ok1 || !ok2 {
		return 0, 0, crawler.NewInvalidInputError("ownerId/videoId required")
	}
	return owner, video, nil
}

// aggregate serves from the response cache when enabled. Cache failures are
// logged and never fail the request.
func (s *Server) aggregate(ctx context.Context, token string, ownerID, videoID int64) (comments.Result, error) {
	key := cache.Key(ownerID, videoID, token)
	if res, ok, err := cache.GetResult(ctx, s.cache, key); err != nil {
		logger.Warn("cache get failed", "err", err)
	} else if ok {
		logger.Debug("comments served from cache", "owner_id", ownerID, "video_id", videoID)
		return res, nil
	}

	res, err := s.agg.Aggregate(ctx, token, ownerID, videoID)
	if err != nil {
		if vk.IsAuthFailure(err) {
			logger.Warn("credential rejected upstream", "owner_id", ownerID, "video_id", videoID)
		}
		return comments.Result{}, err
	}
	if err := cache.SetResult(ctx, s.cache, key, res, s.cacheTTL); err != nil {
		logger.Warn("cache set failed", "err", err)
	}
	return res, nil
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, crawler.NewCredentialError("missing_token"))
		return
	}
	req, err := decodeCommentsRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ownerID, videoID, err := req.ids()
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.aggregate(r.Context(), token, ownerID, videoID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// fetchForDownload runs the shared preamble of the file endpoints.
func (s *Server) fetchForDownload(w http.ResponseWriter, r *http.Request) (comments.Result, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, crawler.NewCredentialError("missing_token"))
		return comments.Result{}, false
	}
	ownerID, videoID, err := queryIDs(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return comments.Result{}, false
	}
	res, err := s.aggregate(r.Context(), token, ownerID, videoID)
	if err != nil {
		writeError(w, err)
		return comments.Result{}, false
	}
	return res, true
}

func downloadName(res comments.Result, ext string) string {
	return "vk-comments-" + formatID(res.OwnerID) + "_" + formatID(res.VideoID) + "." + ext
}

func (s *Server) handleCommentsCSV(w http.ResponseWriter, r *http.Request) {
	res, ok := s.fetchForDownload(w, r)
	if !ok {
		return
	}
	delimiter := r.URL.Query().Get("delimiter")
	if delimiter == "" {
		delimiter = config.AppConfig.CSVDelimiter
	}

	w.Header().Set("content-type", "text/csv; charset=utf-8")
	w.Header().Set("content-disposition", `attachment; filename="`+downloadName(res, "csv")+`"`)
	w.WriteHeader(http.StatusOK)
	_ = export.WriteCSV(w, res.Comments, delimiter)
}

func (s *Server) handleCommentsXLSX(w http.ResponseWriter, r *http.Request) {
	res, ok := s.fetchForDownload(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, res.Comments); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("content-type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("content-disposition", `attachment; filename="`+downloadName(res, "xlsx")+`"`)
	w.Header().Set("content-length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	appID := strings.TrimSpace(q.Get("app_id"))
	if appID == "" {
		appID = strings.TrimSpace(config.AppConfig.VKAppID)
	}
	if appID == "" {
		writeError(w, crawler.NewInvalidInputError("app_id required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": vk.BuildAuthURL(appID, q.Get("scope"))})
}

func (s *Server) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, crawler.NewInvalidInputError("invalid body: %v", err))
		return
	}
	token := vk.ExtractToken(req.Input)
	if token == "" {
		writeError(w, crawler.NewInvalidInputError("no access_token found in input"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}
