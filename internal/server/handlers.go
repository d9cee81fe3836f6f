package server

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/pdfqa/internal/loader"
	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/rag"
	"github.com/hyperjump/pdfqa/internal/vectorstore"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

//go:embed web/index.html
var indexHTML []byte

type messageRequest struct {
	Question string `json:"question" validate:"required,max=4000"`
	// Filtered selects similarity filtering; it defaults to true.
	Filtered *bool `json:"filtered,omitempty"`
}

type uploadedFile struct {
	Name  string `json:"name"`
	Pages int    `json:"pages"`
	Size  int64  `json:"size"`
}

type uploadResponse struct {
	Files  []uploadedFile `json:"files"`
	Report *loader.Report `json:"report"`
}

type statusResponse struct {
	*rag.Status
	Sessions int `json:"sessions"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.pipeline.Status()
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, statusResponse{Status: st, Sessions: s.sessions.Len()})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.pipeline.Documents()
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

// handleUploadDocuments validates every uploaded PDF before saving any, then
// rebuilds the index once.
func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.config.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files in field \"files\"")
		return
	}

	type pending struct {
		name  string
		data  []byte
		pages int
	}
	uploads := make([]pending, 0, len(headers))
	invalid := make(map[string]string)
	for _, fh := range headers {
		name := filepath.Base(fh.Filename)
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			invalid[name] = "only .pdf files are accepted"
			continue
		}
		f, err := fh.Open()
		if err != nil {
			invalid[name] = err.Error()
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			invalid[name] = err.Error()
			continue
		}
		pages, err := checkPDF(data)
		if err != nil {
			invalid[name] = err.Error()
			continue
		}
		uploads = append(uploads, pending{name: name, data: data, pages: pages})
	}
	if len(invalid) > 0 {
		s.logger.Debug("upload rejected", zap.Any("files", invalid))
		s.respondJSON(w, http.StatusUnprocessableEntity, ValidationError{Status: http.StatusUnprocessableEntity, Errors: invalid})
		return
	}

	resp := uploadResponse{Files: make([]uploadedFile, 0, len(uploads))}
	for _, u := range uploads {
		sf, err := s.pipeline.SaveDocument(u.name, bytes.NewReader(u.data))
		if err != nil {
			if len(resp.Files) > 0 {
				// Files saved before the failure are on disk; index them anyway.
				if _, rerr := s.pipeline.Rebuild(r.Context()); rerr != nil {
					s.logger.Error("rebuild after partial upload failed", zap.Error(rerr))
				}
			}
			s.respondPipelineError(w, err)
			return
		}
		resp.Files = append(resp.Files, uploadedFile{Name: sf.Name, Pages: u.pages, Size: sf.Size})
	}

	report, err := s.pipeline.Rebuild(r.Context())
	if err != nil {
		s.logger.Error("rebuild after upload failed", zap.Error(err))
		s.respondPipelineError(w, err)
		return
	}
	resp.Report = report
	s.respondJSON(w, http.StatusCreated, resp)
}

// checkPDF validates data as a PDF and returns its page count.
func checkPDF(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return 0, fmt.Errorf("not a valid PDF: %w", err)
	}
	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	if pages == 0 {
		return 0, errors.New("PDF has no pages")
	}
	return pages, nil
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.logger.Debug("delete document request", zap.String("name", name))
	report, err := s.pipeline.RemoveDocument(r.Context(), name)
	if err != nil && !errors.Is(err, vectorstore.ErrNoValidChunks) {
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "removed",
		"message": fmt.Sprintf("Removed %s. Please upload new files or refresh the app.", name),
		"report":  report,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": sess.ID})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if verr := validateRequest(&req); verr != nil {
		s.respondJSON(w, verr.Status, verr)
		return
	}

	sess.Add(models.RoleUser, req.Question)
	answer := s.pipeline.AnswerFiltered
	if req.Filtered != nil && !*req.Filtered {
		answer = s.pipeline.Answer
	}
	res, err := answer(r.Context(), req.Question)
	if err != nil {
		s.logger.Error("answer failed", zap.String("session", sess.ID), zap.Error(err))
		s.respondPipelineError(w, err)
		return
	}
	sess.Add(models.RoleBot, res.Answer)
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"id": sess.ID, "turns": sess.History()})
}

// respondPipelineError maps pipeline errors to HTTP statuses.
func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rag.ErrInvalidName), errors.Is(err, rag.ErrEmptyQuestion):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rag.ErrDocumentNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, rag.ErrNoIndex):
		s.respondError(w, http.StatusConflict, "no documents are indexed; upload a PDF first")
	case errors.Is(err, vectorstore.ErrNoValidChunks):
		s.respondError(w, http.StatusUnprocessableEntity, "no extractable text in the uploaded documents")
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
