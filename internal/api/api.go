// Package api exposes the recurring-expense engine over JSON HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/expensaur/backend/internal/model"
	"github.com/expensaur/backend/internal/service"
	"github.com/expensaur/backend/internal/store"
)

// Server routes HTTP requests into the engine.
type Server struct {
	svc *service.Service
	log *logrus.Logger
}

// NewServer creates the HTTP API over an engine instance.
func NewServer(svc *service.Service, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{svc: svc, log: log}
}

// Routes registers all handlers and wraps them with request logging.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/templates", s.handleCreateTemplate)
	mux.HandleFunc("GET /v1/templates", s.handleListTemplates)
	mux.HandleFunc("GET /v1/templates/{id}", s.handleGetTemplate)
	mux.HandleFunc("POST /v1/templates/{id}/deactivate", s.handleDeactivateTemplate)
	mux.HandleFunc("DELETE /v1/templates/{id}", s.handleDeleteTemplate)
	mux.HandleFunc("POST /v1/templates/batchDelete", s.handleBatchDeleteTemplates)

	mux.HandleFunc("GET /v1/expenses", s.handleListExpenses)
	mux.HandleFunc("GET /v1/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("POST /v1/expenses/{id}/reconcile", s.handleReconcile)
	mux.HandleFunc("POST /v1/expenses/fromReceipt", s.handleExpenseFromReceipt)

	mux.HandleFunc("POST /v1/recurring/process", s.handleProcess)
	mux.HandleFunc("GET /v1/reminders", s.handleReminders)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return s.logRequests(mux)
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("request handled")
	})
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tpl, err := req.toTemplate()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.svc.CreateTemplate(r.Context(), tpl); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateResponse(tpl))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	templates, nextToken, err := s.svc.ListTemplates(r.Context(), activeOnly, 100, r.URL.Query().Get("page_token"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := struct {
		Templates     []*templateResponse `json:"templates"`
		NextPageToken string              `json:"next_page_token,omitempty"`
	}{NextPageToken: nextToken}
	for _, tpl := range templates {
		resp.Templates = append(resp.Templates, toTemplateResponse(tpl))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.svc.GetTemplate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(tpl))
}

func (s *Server) handleDeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeactivateTemplate(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	cascade := r.URL.Query().Get("cascade") == "true"
	if err := s.svc.DeleteTemplate(r.Context(), r.PathValue("id"), cascade); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBatchDeleteTemplates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateIDs []string `json:"template_ids"`
		Cascade     bool     `json:"cascade"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.svc.DeleteTemplates(r.Context(), req.TemplateIDs, req.Cascade)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := struct {
		Deleted int               `json:"deleted"`
		Errors  map[string]string `json:"errors,omitempty"`
	}{Deleted: result.Deleted}
	if len(result.Errors) > 0 {
		resp.Errors = make(map[string]string, len(result.Errors))
		for id, err := range result.Errors {
			resp.Errors[id] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, nextToken, err := s.svc.ListExpenses(r.Context(), r.URL.Query().Get("template_id"), 100, r.URL.Query().Get("page_token"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := struct {
		Expenses      []*expenseResponse `json:"expenses"`
		NextPageToken string             `json:"next_page_token,omitempty"`
	}{NextPageToken: nextToken}
	for _, e := range expenses {
		resp.Expenses = append(resp.Expenses, toExpenseResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := s.svc.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	choice, err := model.ParseReconcileChoice(req.Choice)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	expense, err := s.svc.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := req.applyEdits(expense); err != nil {
		writeDomainError(w, err)
		return
	}

	outcome, err := s.svc.Reconcile(r.Context(), service.ReconcileRequest{
		Expense:        expense,
		Choice:         choice,
		RememberChoice: req.RememberChoice,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReconcileResponse(outcome))
}

func (s *Server) handleExpenseFromReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rd, err := req.toReceiptData()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	expense, err := s.svc.CreateExpenseFromReceipt(r.Context(), rd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(expense))
}

// handleProcess runs a generation sweep. Designed to be hit by a scheduler
// job; idempotent for a fixed as_of.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if v := r.URL.Query().Get("as_of"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	result, err := s.svc.GenerateDue(r.Context(), asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := struct {
		Processed int               `json:"processed"`
		Skipped   int               `json:"skipped"`
		Ended     int               `json:"ended"`
		Created   int               `json:"created"`
		Errors    map[string]string `json:"errors,omitempty"`
	}{
		Processed: result.Processed,
		Skipped:   result.Skipped,
		Ended:     result.Ended,
		Created:   len(result.Created),
	}
	if len(result.Errors) > 0 {
		resp.Errors = make(map[string]string, len(result.Errors))
		for id, err := range result.Errors {
			resp.Errors[id] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	windowDays := 7
	if v := r.URL.Query().Get("window_days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "window_days must be a positive integer")
			return
		}
		windowDays = parsed
	}

	reminders, err := s.svc.UpcomingReminders(r.Context(), time.Now(), time.Duration(windowDays)*24*time.Hour)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := struct {
		Reminders []reminderResponse `json:"reminders"`
	}{Reminders: []reminderResponse{}}
	for _, rem := range reminders {
		resp.Reminders = append(resp.Reminders, reminderResponse{
			TemplateID: rem.TemplateID,
			Merchant:   rem.Merchant,
			Amount:     rem.Amount,
			DueDate:    rem.DueDate.Format("2006-01-02"),
			FireDate:   rem.FireDate.Format("2006-01-02"),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Response helpers

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps engine errors onto HTTP statuses. Anything
// unrecognized surfaces as a generic retryable failure; re-running the same
// operation is safe because generation is idempotent.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	var cerr *model.ConflictError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &cerr):
		writeError(w, http.StatusConflict, cerr.Error())
	case errors.Is(err, store.ErrTemplateNotFound), errors.Is(err, store.ErrExpenseNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "operation failed, please retry")
	}
}
