package handler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"skillgate/internal/model"

	"github.com/gorilla/mux"
)

// SessionTokenHeader carries the attempt session token on progress/submit/abandon
const SessionTokenHeader = "X-Session-Token"

// QuizService is the candidate-facing attempt lifecycle
type QuizService interface {
	Start(ctx context.Context, req model.StartRequest) (*model.StartResponse, error)
	SaveProgress(ctx context.Context, attemptID, sessionToken, questionID string, answer model.AnswerValue) error
	Submit(ctx context.Context, attemptID, sessionToken string, answers []model.SubmittedAnswer) (*model.SubmitResponse, error)
	Abandon(ctx context.Context, attemptID, sessionToken string) error
	Status(ctx context.Context, email, jobID string) (model.QuizStatus, error)
}

// QuizHandler handles the public quiz endpoints
type QuizHandler struct {
	quizSvc QuizService
}

// NewQuizHandler creates a new quiz handler
func NewQuizHandler(quizSvc QuizService) *QuizHandler {
	return &QuizHandler{quizSvc: quizSvc}
}

// Status handles GET /v1/quiz/status
func (h *QuizHandler) Status(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := h.quizSvc.Status(r.Context(), q.Get("email"), q.Get("jobId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.StatusResponse{Status: status})
}

// Start handles POST /v1/quiz/start
func (h *QuizHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req model.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ClientIP = clientIP(r)
	req.UserAgent = r.UserAgent()

	resp, err := h.quizSvc.Start(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if resp.Resumed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

// SaveProgress handles PUT /v1/quiz/attempts/{attemptId}/progress
func (h *QuizHandler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	attemptID := mux.Vars(r)["attemptId"]

	var req model.ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.quizSvc.SaveProgress(r.Context(), attemptID, r.Header.Get(SessionTokenHeader), req.QuestionID, req.Answer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Submit handles POST /v1/quiz/attempts/{attemptId}/submit
func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	attemptID := mux.Vars(r)["attemptId"]

	var req model.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.quizSvc.Submit(r.Context(), attemptID, r.Header.Get(SessionTokenHeader), req.Answers)
	if err != nil {
		if resp == nil {
			writeServiceError(w, r, err)
			return
		}
		// Completed but not redirectable: the candidate still gets the result
		status, message := errorStatus(err)
		writeJSON(w, status, map[string]interface{}{
			"error":  message,
			"passed": resp.Passed,
			"score":  resp.Score,
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Abandon handles POST /v1/quiz/attempts/{attemptId}/abandon
func (h *QuizHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	attemptID := mux.Vars(r)["attemptId"]

	if err := h.quizSvc.Abandon(r.Context(), attemptID, r.Header.Get(SessionTokenHeader)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clientIP is the request's remote host, rewritten by ProxyHeaders only when proxy headers are trusted
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
