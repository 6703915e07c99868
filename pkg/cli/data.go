package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/mchmarny/vascular/pkg/data"
)

const (
	uploadFormField = "file"
	runLimitMax     = 500
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadInput):
		return http.StatusBadRequest
	case errors.Is(err, data.ErrRunNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func queryParamInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// readUpload returns the uploaded CSV part of a multipart request.
func readUpload(w http.ResponseWriter, r *http.Request, limit int64) (multipart.File, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: parsing upload: %w", errBadInput, err)
	}
	f, h, err := r.FormFile(uploadFormField)
	if err != nil {
		return nil, "", fmt.Errorf("%w: form field %q with a CSV file required", errBadInput, uploadFormField)
	}
	return f, filepath.Base(h.Filename), nil
}

// scoreUpload scores the uploaded file and stores the run.
func scoreUpload(s *server, w http.ResponseWriter, r *http.Request) (*data.Run, error) {
	f, name, err := readUpload(w, r, s.maxUpload)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	run, err := s.scorer.Score(name, f)
	if err != nil {
		return nil, err
	}
	if err := data.SaveRun(s.db, run); err != nil {
		return nil, fmt.Errorf("saving run: %w", err)
	}
	return run, nil
}

func healthAPIHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{"status": "ok", "version": version, "model": s.info.Kind}
		if err := s.db.PingContext(r.Context()); err != nil {
			slog.Error("database ping failed", "error", err)
			status["status"] = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func modelAPIHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.info)
	}
}

func predictAPIHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := scoreUpload(s, w, r)
		if err != nil {
			status := errorStatus(err)
			if status == http.StatusInternalServerError {
				slog.Error("failed to score upload", "error", err)
				writeError(w, status, "failed to score upload")
				return
			}
			writeError(w, status, err.Error())
			return
		}
		run.Result.Batch = run.Result.Batch.Rounded(s.opts.Precision)
		writeJSON(w, http.StatusOK, run)
	}
}

func runsAPIHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := min(queryParamInt(r, "limit", data.DefaultRunLimit), runLimitMax)
		list, err := data.ListRuns(s.db, limit)
		if err != nil {
			slog.Error("failed to list runs", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list runs")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func runAPIHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := data.GetRun(s.db, r.PathValue("id"))
		if err != nil {
			status := errorStatus(err)
			if status == http.StatusInternalServerError {
				slog.Error("failed to get run", "error", err)
			}
			writeError(w, status, http.StatusText(status))
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func deleteRunAPIHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := data.DeleteRun(s.db, r.PathValue("id")); err != nil {
			status := errorStatus(err)
			if status == http.StatusInternalServerError {
				slog.Error("failed to delete run", "error", err)
			}
			writeError(w, status, http.StatusText(status))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
