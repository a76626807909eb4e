package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bindery/internal/api"
	"bindery/internal/jobs"
	"bindery/internal/lifecycle"
	"bindery/internal/logging"
	"bindery/internal/logs"
)

const uploadChunkSize = 128 * 1024

// errSizeMismatch flags an upload whose byte count disagrees with the size
// declared at create time.
var errSizeMismatch = errors.New("upload size mismatch")

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req api.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Filename == "" {
		s.writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	job, err := s.controller.Create(r.Context(), lifecycle.CreateRequest{
		ID:            req.ID,
		Filename:      filepath.Base(req.Filename),
		Size:          req.Size,
		DeviceProfile: req.DeviceProfile,
		Options:       jobs.Options(req.Options),
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.JobResponse{Job: api.FromJob(job, time.Now())})
}

func (s *Server) handleListActive(w http.ResponseWriter, r *http.Request) {
	active := s.controller.ListActive()
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(active, time.Now())})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	includeDismissed := r.URL.Query().Get("include_dismissed") == "true"

	history, err := s.controller.ListHistory(r.Context(), limit, offset, includeDismissed)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(history, time.Now())})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.controller.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job, time.Now())})
}

// handleUpload streams the payload into the staging directory, feeding byte
// progress to the controller per chunk. A complete stream queues the job.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	job, err := s.controller.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if job.Status != jobs.StatusUploading {
		s.writeError(w, http.StatusConflict, "upload already finished")
		return
	}

	limit := s.cfg.MaxUploadBytes()
	if job.Input.Size > limit {
		s.writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the configured maximum")
		return
	}

	stagingDir := filepath.Join(s.cfg.Paths.IncomingDir, id)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		s.respondError(w, err)
		return
	}
	stagingPath := filepath.Join(stagingDir, filepath.Base(job.Input.Filename))
	dst, err := os.Create(stagingPath)
	if err != nil {
		s.respondError(w, err)
		return
	}

	written, copyErr := s.receive(r, dst, id, job.Input.Size)
	closeErr := dst.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr == nil && job.Input.Size > 0 && written != job.Input.Size {
		copyErr = errSizeMismatch
	}
	if copyErr != nil {
		_ = os.Remove(stagingPath)
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(copyErr, &tooLarge):
			s.writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the configured maximum")
		case errors.Is(copyErr, errSizeMismatch):
			s.writeError(w, http.StatusBadRequest, "upload size mismatch")
		default:
			s.logger.Warn("upload stream failed",
				logging.String(logging.FieldJobID, id),
				logging.Error(copyErr))
			s.writeError(w, http.StatusBadRequest, "upload interrupted")
		}
		return
	}

	updated, err := s.controller.CompleteUpload(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(updated, time.Now())})
}

func (s *Server) receive(r *http.Request, dst io.Writer, id string, declared int64) (int64, error) {
	total := declared
	if total <= 0 && r.ContentLength > 0 {
		total = r.ContentLength
	}

	src := http.MaxBytesReader(nil, r.Body, s.cfg.MaxUploadBytes())
	buf := make([]byte, uploadChunkSize)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}
			written += int64(n)
			if err := s.controller.ReportUpload(r.Context(), id, written, total); err != nil {
				return written, err
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	job, err := s.controller.Cancel(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job, time.Now())})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	job, err := s.controller.Dismiss(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job, time.Now())})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	job, err := s.controller.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if job.Status != jobs.StatusComplete || job.Output.Filename == "" {
		s.writeError(w, http.StatusConflict, "job has no downloadable artifact")
		return
	}

	artifact := filepath.Join(s.cfg.Paths.OutputDir, id, filepath.Base(job.Output.Filename))
	if _, err := os.Stat(artifact); err != nil {
		s.writeError(w, http.StatusNotFound, "artifact not found")
		return
	}

	if _, err := s.controller.RecordDownload(r.Context(), id); err != nil {
		s.logger.Warn("download count update failed",
			logging.String(logging.FieldJobID, id),
			logging.Error(err))
	}

	w.Header().Set("Content-Disposition", "attachment; filename=\""+filepath.Base(job.Output.Filename)+"\"")
	http.ServeFile(w, r, artifact)
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.ProfilesResponse{Profiles: api.FromProfiles(jobs.Profiles())})
}

// handleLogs serves an incremental slice of the daemon log. offset=-1 returns
// the last limit lines; subsequent polls pass the returned offset back.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	offset := int64(queryInt(r, "offset", -1))

	logPath := filepath.Join(s.cfg.Paths.LogDir, logging.LogFileName)
	result, err := logs.Tail(logPath, logs.TailOptions{Offset: offset, Limit: limit})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.LogsResponse{Lines: result.Lines, Offset: result.Offset})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts := make(map[string]int)
	for _, job := range s.repo.Mem().List() {
		counts[string(job.Status)]++
	}

	history := make(map[string]int)
	stats, err := s.repo.Durable().Stats(r.Context())
	if err != nil {
		s.logger.Warn("job stats unavailable", logging.Error(err))
	}
	for status, n := range stats {
		history[string(status)] = n
	}

	health, err := s.repo.Durable().CheckHealth(r.Context())
	if err != nil && health.Error == "" {
		health.Error = err.Error()
	}

	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:       true,
		PID:           os.Getpid(),
		QueueCounts:   counts,
		HistoryCounts: history,
		Subscribers:   s.hub.SubscriberCount(),
		DatabasePath:  s.repo.Durable().Path(),
		Database: api.DatabaseHealth{
			Exists:      health.DatabaseExists,
			Readable:    health.DatabaseReadable,
			IntegrityOK: health.IntegrityCheck,
			TotalJobs:   health.TotalJobs,
			Error:       health.Error,
		},
	})
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	var invalid *jobs.InvalidTransitionError
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, jobs.ErrJobExists):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lifecycle.ErrUnknownProfile):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &invalid):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, jobs.ErrDurableStore):
		s.writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		s.logger.Error("request failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
