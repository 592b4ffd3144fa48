package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cloneofkoha/form-filler/constants"
	"github.com/cloneofkoha/form-filler/internal/audit"
	"github.com/cloneofkoha/form-filler/internal/common"
	"github.com/cloneofkoha/form-filler/internal/document"
	"github.com/cloneofkoha/form-filler/internal/engine"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMasterPreview shows a truncated view of the current snapshot, for
// checking what the filler is working from.
func (s *Server) handleMasterPreview(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Current()
	if snap == nil {
		s.writeError(w, common.NewAppError("MASTER", "no snapshot loaded", common.ErrDataLoad))
		return
	}
	preview := snap.Reference()
	if len(preview) > 500 {
		preview = preview[:500] + "..."
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": snap.Len(),
		"keys":    snap.Keys(),
		"preview": preview,
	})
}

// handleMasterReload re-fetches the profile source and swaps the snapshot.
// In-flight fills keep the snapshot they started with.
func (s *Server) handleMasterReload(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Refresh(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "reloaded",
		"entries": s.store.Current().Len(),
	})
}

// handleFill accepts a multipart upload ("file" part) of an xlsx, docx or pdf
// form and streams back the filled copy with the original content type.
func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxFormSize)

	filename, data, err := s.readUpload(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	format := constants.MapExtToFormat(filepath.Ext(filename))
	if format == "" {
		s.writeError(w, common.NewAppError("FILL",
			fmt.Sprintf("unsupported extension %q, send .xlsx, .docx or .pdf", filepath.Ext(filename)),
			common.ErrInvalidInput))
		return
	}

	filled, report, err := s.engine.Fill(r.Context(), document.Document{Data: data, Format: format})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.recordJob(r, filename, report)

	outName := "FILLED_" + filepath.Base(filename)
	w.Header().Set("Content-Type", constants.MIMETypes[format])
	w.Header().Set("Content-Disposition", `attachment; filename="`+outName+`"`)
	w.Header().Set("X-Fields-Total", strconv.Itoa(report.TargetsTotal))
	w.Header().Set("X-Fields-Filled", strconv.Itoa(report.Filled()))
	w.Header().Set("X-Fields-Left-Blank", strconv.Itoa(report.LeftBlank))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(filled.Data); err != nil {
		s.logger.Warn("server.fill.write_error", "error", err)
	}
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSON(w, http.StatusOK, []audit.Job{})
		return
	}
	jobs, err := s.audit.Recent(r.Context(), 50)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if jobs == nil {
		jobs = []audit.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// readUpload pulls the form bytes from a multipart "file" part, or from the
// raw body when the client posts the document directly.
func (s *Server) readUpload(r *http.Request) (string, []byte, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(s.maxFormSize); err != nil {
			return "", nil, common.NewAppError("FILL", "parsing multipart form", common.ErrInvalidInput)
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			return "", nil, common.NewAppError("FILL", `multipart part "file" is required`, common.ErrInvalidInput)
		}
		defer s.closePart(file)
		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, common.NewAppError("FILL", "reading upload", common.ErrInvalidInput)
		}
		return hdr.Filename, data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, common.NewAppError("FILL", "reading request body", common.ErrInvalidInput)
	}
	name := r.URL.Query().Get("filename")
	if name == "" {
		return "", nil, common.NewAppError("FILL", "filename query parameter is required for raw uploads", common.ErrInvalidInput)
	}
	return name, data, nil
}

func (s *Server) recordJob(r *http.Request, filename string, report *engine.Report) {
	if s.audit == nil {
		return
	}
	job := audit.Job{
		ID:          report.JobID,
		Filename:    filepath.Base(filename),
		Format:      report.Format,
		FieldsTotal: report.TargetsTotal,
		Direct:      report.Direct,
		Synthesized: report.Synthesized,
		LeftBlank:   report.LeftBlank,
		ElapsedMS:   report.Elapsed.Milliseconds(),
	}
	if err := s.audit.Record(r.Context(), job); err != nil {
		// bookkeeping only; the fill already succeeded
		s.logger.Warn("server.fill.audit_error", "job_id", report.JobID, "error", err)
	}
}

func (s *Server) closePart(f multipart.File) {
	if err := f.Close(); err != nil {
		s.logger.Warn("server.fill.part_close_error", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
