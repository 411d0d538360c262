package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/reposync/internal/indexer"
	"github.com/hyperjump/reposync/internal/models"
	"github.com/hyperjump/reposync/internal/storage"
)

const blankCommitMessage = "Field `commit` must not be blank."

type commitRequest struct {
	Commit string `json:"commit"`
}

func (s *Server) handleStartInitial(w http.ResponseWriter, r *http.Request) {
	state, err := s.index.StartInitialIndex()
	if err != nil {
		s.logger.Error("start initial index failed", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, rejectedState(err.Error()))
		return
	}
	s.respondJSON(w, http.StatusAccepted, state)
}

func (s *Server) handleStartUpdate(w http.ResponseWriter, r *http.Request) {
	s.startWithCommit(w, r, s.index.StartUpdateIndex)
}

func (s *Server) handleStartReload(w http.ResponseWriter, r *http.Request) {
	s.startWithCommit(w, r, s.index.StartFullReloadIndex)
}

func (s *Server) startWithCommit(w http.ResponseWriter, r *http.Request, start func(string) (*models.IndexJobState, error)) {
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondJSON(w, http.StatusBadRequest, rejectedState("invalid request body"))
		return
	}
	commit := strings.TrimSpace(req.Commit)
	if commit == "" {
		s.respondJSON(w, http.StatusBadRequest, rejectedState(blankCommitMessage))
		return
	}
	s.logger.Debug("index request", zap.String("path", r.URL.Path), zap.String("commit", commit))
	state, err := start(commit)
	switch {
	case errors.Is(err, indexer.ErrBlankCommit):
		s.respondJSON(w, http.StatusBadRequest, rejectedState(err.Error()))
	case err != nil:
		s.logger.Error("start index failed", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, rejectedState(err.Error()))
	default:
		s.respondJSON(w, http.StatusAccepted, state)
	}
}

// rejectedState is the FAILED snapshot returned when a request never starts a job.
func rejectedState(message string) *models.IndexJobState {
	now := time.Now()
	return &models.IndexJobState{
		Status:     models.JobFailed,
		Progress:   "Failed.",
		StartedAt:  &now,
		FinishedAt: &now,
		Error:      message,
		Ingestion:  models.EmptyIngestion(),
	}
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.index.Status())
}

func (s *Server) handleTrackedFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.index.TrackedFiles(r.Context())
	if err != nil {
		s.logger.Error("list tracked files failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, files)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	state, err := s.metadata.GetOrCreate(r.Context())
	if err != nil {
		s.logger.Error("read metadata failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleStoreFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("list store files failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []models.DocumentSummary{}
	}
	s.respondJSON(w, http.StatusOK, files)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("status: list store files failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byStatus := map[string]int{}
	for _, f := range files {
		byStatus[f.Status]++
	}
	resp := map[string]interface{}{
		"documents":           len(files),
		"documents_by_status": byStatus,
		"index":               s.index.Status(),
	}

	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"repo_path":         s.config.Project.RepoPath,
			"store_backend":     s.config.Store.Backend,
			"store_location":    s.config.StoreLocation(),
			"poll_interval":     s.config.Indexing.PollInterval.Std().String(),
			"ingestion_timeout": s.config.Indexing.IngestionTimeout.Std().String(),
			"watch_enabled":     s.config.Watch.Enabled,
		}
		if paths := s.config.LocalStorePaths(); len(paths) > 0 {
			if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
				resp["disk_usage_bytes"] = diskBytes
			}
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
