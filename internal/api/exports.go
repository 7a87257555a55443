package api

import (
	"errors"
	"net/http"
	"strings"

	"vk-comments-exporter/internal/crawler"
	"vk-comments-exporter/internal/store"
)

func (s *Server) handleExportStart(w http.ResponseWriter, r *http.Request) {
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
	format := strings.ToLower(strings.TrimSpace(req.Format))
	st, err := store.GetStore(format)
	if err != nil {
		writeError(w, crawler.NewInvalidInputError("%v", err))
		return
	}

	err = s.manager.Run(ExportRequest{Token: token, OwnerID: ownerID, VideoID: videoID, Format: st.Ext()})
	if errors.Is(err, ErrTaskRunning) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "busy", "message": err.Error()})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.manager.Status())
}

func (s *Server) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Status())
}

func (s *Server) handleExportStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, map[string]any{"stopped": s.manager.Stop()})
}
