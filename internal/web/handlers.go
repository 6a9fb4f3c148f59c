package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bkv/matrix-normalizer/internal/convert"
	"github.com/bkv/matrix-normalizer/internal/generate"
	"github.com/bkv/matrix-normalizer/internal/job"
	"github.com/bkv/matrix-normalizer/internal/logging"
	"github.com/bkv/matrix-normalizer/internal/normalize"
	"github.com/bkv/matrix-normalizer/internal/storage"
)

// sniffLen is how many leading bytes are read for content validation.
const sniffLen = 512

// handleUpload accepts a multipart upload, validates it, and stores it under
// a fresh file ID. The file is streamed to disk; only the sniff window is
// buffered in memory.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Storage.MaxFileSize
	// Small allowance on top of the file limit for the multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+64*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, r, &storage.FileValidationError{
			Filename: "upload",
			Reason:   "form is too large or malformed",
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, &storage.FileValidationError{
			Filename: "upload",
			Reason:   `missing "file" form field`,
		})
		return
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		s.respondError(w, r, err)
		return
	}
	if err := s.validator.Validate(header.Filename, header.Size, head[:n]); err != nil {
		s.respondError(w, r, err)
		return
	}

	info, err := s.files.Save(header.Filename, header.Header.Get("Content-Type"),
		io.MultiReader(bytes.NewReader(head[:n]), file))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("file uploaded",
		"file_id", info.ID,
		"filename", info.OriginalName,
		"size", info.Size,
	)
	respondJSON(w, http.StatusCreated, info)
}

// handleListFiles returns metadata for all stored uploads.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	infos, err := s.files.List()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"files": infos,
		"count": len(infos),
	})
}

// handleGetFile returns metadata for one stored upload.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	id, err := fileIDParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	info, err := s.files.Lookup(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// handleDeleteFile removes a stored upload and its metadata.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := fileIDParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.files.Delete(id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreview returns a bounded sample of a file's normalized output.
// Options may be sent as a JSON body; max_rows comes from the query string.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, err := fileIDParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	opts, err := decodeOptions(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	maxRows := parseIntParam(r, "max_rows", 0)

	p, err := s.svc.Preview(r.Context(), id, maxRows, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// handleConvert starts an asynchronous conversion and returns the pending
// job. Poll the status endpoint for the outcome.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	id, err := fileIDParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	opts, err := decodeOptions(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	j, err := s.runner.Start(r.Context(), id, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("conversion queued",
		"job_id", j.ID,
		"file_id", j.FileID,
		"format", j.Options.Format,
	)
	respondJSON(w, http.StatusAccepted, j)
}

// handleStatus returns the current state of a conversion job.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := jobIDParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	j, err := s.runner.Status(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, j)
}

// handleDownload streams the artifact of a completed job.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := jobIDParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	j, err := s.runner.Artifact(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	f, err := os.Open(j.ArtifactPath)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", generate.ContentType(j.Options.Format))
	w.Header().Set("Content-Length", strconv.FormatInt(st.Size(), 10))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename=%q`, s.downloadName(j)))
	io.Copy(w, f)
}

// downloadName derives the artifact filename from the source file's original
// name, falling back to the job ID when the source has expired.
func (s *Server) downloadName(j job.Job) string {
	base := j.ID.String()
	if info, err := s.files.Lookup(j.FileID); err == nil {
		base = strings.TrimSuffix(info.OriginalName, info.Ext)
	}
	return base + "_converted." + j.Options.Format
}

// handleFormats describes what the service accepts and produces.
func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"input_extensions": storage.AllowedExtensions(),
		"output_formats":   []string{normalize.FormatJSON, normalize.FormatJSONL},
		"max_file_size":    s.cfg.Storage.MaxFileSize,
		"max_preview_rows": convert.MaxPreviewRows,
	})
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// decodeOptions reads conversion options from the request body. An absent or
// empty body yields the defaults.
func decodeOptions(r *http.Request) (normalize.Options, error) {
	opts := normalize.DefaultOptions()
	if r.Body == nil || r.ContentLength == 0 {
		return opts, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		if err == io.EOF {
			return opts, nil
		}
		return opts, &normalize.ValidationError{Reason: "request body is not valid JSON"}
	}
	if opts.Format == "" {
		opts.Format = normalize.FormatJSON
	}
	return opts, nil
}

// fileIDParam parses the fileID URL parameter. A malformed ID reads as a
// file that does not exist.
func fileIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "fileID"))
	if err != nil {
		return uuid.Nil, storage.ErrNotFound
	}
	return id, nil
}

// jobIDParam parses the jobID URL parameter.
func jobIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		return uuid.Nil, job.ErrNotFound
	}
	return id, nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
