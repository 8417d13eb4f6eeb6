package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/JonMunkholm/vaultetl/internal/core"
	"github.com/JonMunkholm/vaultetl/internal/logging"
	"github.com/JonMunkholm/vaultetl/internal/store"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is the part of an upload kept in memory while parsing.
const multipartMemory = 8 << 20

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Health(r.Context()); err != nil {
		logging.FromContext(r.Context()).Error("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"imports": s.service.Limiter().Status(),
	})
}

// handleImport accepts a multipart upload in the "file" field. The upload is
// spooled to a temporary file owned by the import from then on.
//
// Query parameters:
//   - async=true: return 202 with a job id instead of waiting
//   - batch_size=N: records per transaction
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	async, err := queryBool(q.Get("async"))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: async must be true or false", errBadRequest), 0)
		return
	}
	batchSize, err := queryInt(q.Get("batch_size"))
	if err != nil || batchSize < 0 {
		s.respondError(w, r, fmt.Errorf("%w: batch_size must be a positive integer", errBadRequest), 0)
		return
	}

	src, err := s.spoolUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	if async {
		jobID, err := s.service.StartImport(r.Context(), src, batchSize)
		if err != nil {
			s.respondError(w, r, err, 0)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"job_id":     jobID,
			"status_url": "/api/import/jobs/" + jobID,
		})
		return
	}

	res, err := s.service.Import(r.Context(), src, batchSize)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// spoolUpload copies the uploaded file to a temporary file.
func (s *Server) spoolUpload(w http.ResponseWriter, r *http.Request) (core.ImportSource, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return core.ImportSource{}, fmt.Errorf("%w: limit is %d bytes", errFileTooBig, tooBig.Limit)
		}
		return core.ImportSource{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return core.ImportSource{}, errNoFile
	}
	defer file.Close()

	tmp, err := os.CreateTemp(s.cfg.Import.TempDir, "vaultetl-import-*")
	if err != nil {
		return core.ImportSource{}, fmt.Errorf("create temporary file: %w", err)
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return core.ImportSource{}, fmt.Errorf("spool upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return core.ImportSource{}, fmt.Errorf("spool upload: %w", err)
	}

	return core.ImportSource{Path: tmp.Name(), Name: header.Filename, Temporary: true}, nil
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Jobs().List())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := s.service.Jobs().Get(jobID)
	if !ok {
		s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrJobNotFound, jobID), 0)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req core.RestoreRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	res, err := s.service.Restore(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req core.VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	res, err := s.service.Verify(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleMissingItems lists missing items, PENDING unless ?status= says
// otherwise.
func (s *Server) handleMissingItems(w http.ResponseWriter, r *http.Request) {
	status := store.MissingStatus(strings.ToUpper(r.URL.Query().Get("status")))
	switch status {
	case "":
		status = store.MissingPending
	case store.MissingPending, store.MissingResolved, store.MissingIgnored:
	default:
		s.respondError(w, r, fmt.Errorf("%w: unknown status %q", errBadRequest, status), 0)
		return
	}
	limit, err := queryInt(r.URL.Query().Get("limit"))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: limit must be an integer", errBadRequest), 0)
		return
	}

	items, err := s.service.MissingItems(r.Context(), status, limit)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if items == nil {
		items = []store.MissingItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r.URL.Query().Get("limit"))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: limit must be an integer", errBadRequest), 0)
		return
	}
	events, err := s.service.Events(r.Context(), r.URL.Query().Get("operation"), limit)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if events == nil {
		events = []store.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleExport streams all files as CSV or JSON. Errors after the first
// byte can only be logged.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := core.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), 0)
		return
	}

	contentType := "text/csv; charset=utf-8"
	if format == core.ExportJSON {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="files.%s"`, format))

	if _, err := s.service.Export(r.Context(), w, format); err != nil {
		logging.FromContext(r.Context()).Error("export failed", slog.String("error", err.Error()))
	}
}

func (s *Server) handlePathPreview(w http.ResponseWriter, r *http.Request) {
	hex := strings.TrimSpace(r.URL.Query().Get("hex"))
	if hex == "" {
		s.respondError(w, r, fmt.Errorf("%w: hex is required", errBadRequest), 0)
		return
	}
	p, err := s.service.PreviewPath(r.Context(), hex, r.URL.Query().Get("root"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.service.Settings(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if err := s.service.SetSetting(r.Context(), chi.URLParam(r, "key"), body.Value); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.handleGetSettings(w, r)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func queryBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
