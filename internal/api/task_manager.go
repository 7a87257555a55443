package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"vk-comments-exporter/internal/logger"
	"vk-comments-exporter/internal/store"
)

var ErrTaskRunning = errors.New("export is running")

type Status struct {
	State      string `json:"state"`
	OwnerID    int64  `json:"owner_id,omitempty"`
	VideoID    int64  `json:"video_id,omitempty"`
	Format     string `json:"format,omitempty"`
	StartedAt  int64  `json:"started_at,omitempty"`
	FinishedAt int64  `json:"finished_at,omitempty"`
	LastError  string `json:"last_error,omitempty"`
	LastPath   string `json:"last_path,omitempty"`
}

// ExportRequest is one background export. Token is never reported back.
type ExportRequest struct {
	Token   string
	OwnerID int64
	VideoID int64
	Format  string
}

type RunFunc func(ctx context.Context, req ExportRequest) (string, error)

// TaskManager runs at most one export at a time.
type TaskManager struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	status Status
	runFn  RunFunc
}

// NewTaskManager exports through agg and saves into DATA_DIR.
func NewTaskManager(agg Aggregator) *TaskManager {
	return NewTaskManagerWithRunner(func(ctx context.Context, req ExportRequest) (string, error) {
		res, err := agg.Aggregate(ctx, req.Token, req.OwnerID, req.VideoID)
		if err != nil {
			return "", err
		}
		return store.SaveResult(ctx, res, req.Format)
	})
}

func NewTaskManagerWithRunner(runFn RunFunc) *TaskManager {
	return &TaskManager{status: Status{State: "idle"}, runFn: runFn}
}

func (m *TaskManager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *TaskManager) Run(req ExportRequest) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return ErrTaskRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.status = Status{
		State:     "running",
		OwnerID:   req.OwnerID,
		VideoID:   req.VideoID,
		Format:    req.Format,
		StartedAt: time.Now().Unix(),
	}
	m.mu.Unlock()

	go func() {
		defer cancel()
		path, err := m.runFn(ctx, req)
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cancel = nil
		m.status.State = "idle"
		m.status.FinishedAt = time.Now().Unix()
		m.status.LastPath = path
		if err != nil {
			m.status.LastError = err.Error()
			logger.Error("export failed", "owner_id", req.OwnerID, "video_id", req.VideoID, "err", err)
		} else {
			m.status.LastError = ""
		}
	}()
	return nil
}

func (m *TaskManager) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return false
	}
	m.cancel()
	m.status.State = "stopping"
	return true
}
