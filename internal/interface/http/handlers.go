package http

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/calculus-oom/gradebook/internal/application/command"
	"github.com/calculus-oom/gradebook/internal/application/query"
	"github.com/calculus-oom/gradebook/internal/domain/exam"
	"github.com/calculus-oom/gradebook/internal/domain/score"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports every dependency check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady is the readiness probe: ready when every dependency answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	if !status.Healthy {
		writeJSONError(w, r, http.StatusServiceUnavailable, "not_ready", status.Message, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive is the liveness probe and checks nothing external.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": s.Uptime().Round(time.Second).String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	res, err := s.deps.CreateStudent.Handle(r.Context(), command.CreateStudentCommand{
		Name:   req.Name,
		Number: req.Number,
		Term:   req.Term,
		Status: req.Status,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r, student.FieldTerm, student.FieldStatus, student.FieldNumber)
	out, err := s.deps.Records.ListStudents(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeList(w, r, out)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Records.GetStudent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req updateStudentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	st, err := s.deps.UpdateStudent.Handle(r.Context(), command.UpdateStudentCommand{
		StudentID: chi.URLParam(r, "id"),
		Profile:   student.Profile{Name: req.Name, Number: req.Number, Term: req.Term},
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.DeleteStudent.Handle(r.Context(), command.DeleteStudentCommand{
		StudentID: chi.URLParam(r, "id"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleSetStudentStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	res, err := s.deps.SetStudentStatus.Handle(r.Context(), command.SetStudentStatusCommand{
		StudentID: chi.URLParam(r, "id"),
		Status:    req.Status,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRecordScore(w http.ResponseWriter, r *http.Request) {
	var req recordScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	sc, err := s.deps.Scores.Record(r.Context(), command.RecordScoreCommand{
		StudentID: req.StudentID,
		Slot:      req.Slot,
		Value:     string(req.Value),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sc)
}

func (s *Server) handleListScores(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Records.ListScores(r.Context(), filterFromQuery(r, score.FieldStudentID))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeList(w, r, out)
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	sc, err := s.deps.Records.GetScore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sc)
}

func (s *Server) handleUpdateScore(w http.ResponseWriter, r *http.Request) {
	var req updateScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	sc, err := s.deps.Scores.Update(r.Context(), command.UpdateScoreCommand{
		ScoreID: chi.URLParam(r, "id"),
		Slot:    req.Slot,
		Value:   string(req.Value),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sc)
}

func (s *Server) handleDeleteScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Scores.Delete(r.Context(), command.DeleteScoreCommand{ScoreID: id}); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"id": id})
}

// ══════════════════════════════════════════════════════════════════════════════
// EXAM HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req createExamRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	e, err := s.deps.Exams.Create(r.Context(), command.CreateExamCommand{
		Name:  req.Name,
		Term:  req.Term,
		Date:  req.Date,
		Range: req.Range,
		State: req.State,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, e)
}

func (s *Server) handleListExams(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r, exam.FieldTerm, exam.FieldName, exam.FieldState)
	out, err := s.deps.Records.ListExams(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeList(w, r, out)
}

func (s *Server) handleGetExam(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Records.GetExam(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

func (s *Server) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	var req updateExamRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	e, err := s.deps.Exams.Update(r.Context(), command.UpdateExamCommand{
		ExamID:  chi.URLParam(r, "id"),
		Details: exam.Details{Name: req.Name, Term: req.Term, Date: req.Date, Range: req.Range},
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

func (s *Server) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Exams.Delete(r.Context(), command.DeleteExamCommand{ExamID: id}); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleSetExamState(w http.ResponseWriter, r *http.Request) {
	var req setExamStateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	e, err := s.deps.Exams.SetState(r.Context(), command.SetExamStateCommand{
		ExamID: chi.URLParam(r, "id"),
		State:  req.State,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSET HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	res, err := s.deps.UploadAsset.Handle(r.Context(), command.UploadAssetCommand{
		ExamID:   chi.URLParam(r, "id"),
		Kind:     up.kind,
		FileName: up.fileName,
		Content:  up.content,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Records.GetAsset(r.Context(), chi.URLParam(r, "bundleID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

func (s *Server) handleDownloadAsset(w http.ResponseWriter, r *http.Request) {
	f, err := s.deps.Records.GetAssetFile(r.Context(), chi.URLParam(r, "bundleID"), chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(f.Path))
	if contentType == "" {
		contentType = http.DetectContentType(f.Content)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Content)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{
		"filename": filepath.Base(f.Path),
	}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Content)
}

func (s *Server) handleReplaceAsset(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	b, err := s.deps.ReplaceAsset.Handle(r.Context(), command.ReplaceAssetCommand{
		BundleID: chi.URLParam(r, "bundleID"),
		Kind:     chi.URLParam(r, "kind"),
		FileName: up.fileName,
		Content:  up.content,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "bundleID")
	if err := s.deps.DeleteAsset.Handle(r.Context(), command.DeleteAssetCommand{BundleID: id}); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"bundle_id": id})
}

type upload struct {
	kind     string
	fileName string
	content  []byte
}

// readUpload reads the multipart "file" part, capped at MaxUploadBytes.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	if s.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, newInvalidRequest("upload exceeds the size limit", map[string]string{"file": "max"})
		}
		return nil, newInvalidRequest("malformed multipart form", nil)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, newInvalidRequest("file part is required", map[string]string{"file": "required"})
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, newInvalidRequest("could not read uploaded file", map[string]string{"file": "unreadable"})
	}
	return &upload{kind: r.FormValue("kind"), fileName: header.Filename, content: content}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TERM HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleSetWeights(w http.ResponseWriter, r *http.Request) {
	var req setWeightsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	res, err := s.deps.SetWeights.Handle(r.Context(), command.SetWeightsCommand{
		Term:    chi.URLParam(r, "term"),
		Weights: req.Weights,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleFinalizeTerm(w http.ResponseWriter, r *http.Request) {
	var req finalizeTermRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	// Finalize runs to completion once started.
	ctx := context.WithoutCancel(r.Context())
	res, err := s.deps.FinalizeTerm.Handle(ctx, command.FinalizeTermCommand{
		Term:             chi.URLParam(r, "term"),
		PassingThreshold: *req.PassingThreshold,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleSlotStatistics(w http.ResponseWriter, r *http.Request) {
	q := query.SlotStatisticsQuery{
		Term: chi.URLParam(r, "term"),
		Slot: chi.URLParam(r, "slot"),
	}
	if raw := r.URL.Query().Get("bin_width"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, r, newInvalidRequest("bin_width must be an integer", map[string]string{"bin_width": "numeric"}))
			return
		}
		q.BinWidth = n
	}
	stats, err := s.deps.Statistics.Handle(r.Context(), q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// filterFromQuery copies the non-empty query parameters named by fields.
func filterFromQuery(r *http.Request, fields ...string) shared.Filter {
	values := r.URL.Query()
	filter := make(shared.Filter, len(fields))
	for _, f := range fields {
		if v := values.Get(f); v != "" {
			filter[f] = v
		}
	}
	return filter
}
