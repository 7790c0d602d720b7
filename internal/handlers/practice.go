package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/practice/internal/practice"
	"github.com/jjudge-oj/practice/internal/services"
	"github.com/jjudge-oj/practice/types"
)

// Workspaces hands out the navigator of a login.
type Workspaces interface {
	Get(tokenID string) *practice.Navigator
}

// PracticeHandler drives the task navigator of the requesting user.
type PracticeHandler struct {
	workspaces Workspaces
}

func NewPracticeHandler(workspaces Workspaces) *PracticeHandler {
	return &PracticeHandler{workspaces: workspaces}
}

// PracticeRouter registers practice routes. Callers mount it behind
// RequireAccess.
func PracticeRouter(r chi.Router, workspaces Workspaces) {
	handler := NewPracticeHandler(workspaces)

	r.Get("/", handler.State)
	r.Post("/select", handler.Select)
	r.Post("/toggle", handler.Toggle)
	r.Post("/input", handler.Input)
	r.Post("/submit", handler.Submit)
	r.Get("/{level}", handler.Load)
}

type SelectRequest struct {
	TaskID string `json:"task_id"`
}

type ToggleRequest struct {
	Category string `json:"category"`
}

type InputRequest struct {
	Value string `json:"value"`
}

type SubmitRequest struct {
	Answer string `json:"answer"`
}

type SubmitResponse struct {
	Result practice.Result `json:"result"`
	State  practice.State  `json:"state"`
}

type StateErrorResponse struct {
	ErrorResponse
	State practice.State `json:"state"`
}

func (h *PracticeHandler) navigator(r *http.Request) *practice.Navigator {
	return h.workspaces.Get(SessionFromContext(r.Context()).Identity.TokenID)
}

// State returns the navigator without reloading.
func (h *PracticeHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.navigator(r).State())
}

// Load replaces the task list with the tasks of the requested level.
func (h *PracticeHandler) Load(w http.ResponseWriter, r *http.Request) {
	level, err := types.ParseLevel(chi.URLParam(r, "level"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	nav := h.navigator(r)
	err = nav.LoadForLevel(r.Context(), level)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, nav.State())
	case errors.Is(err, practice.ErrSuperseded):
		writeJSON(w, http.StatusConflict, StateErrorResponse{
			ErrorResponse: ErrorResponse{Error: "load superseded by a newer request", Code: "superseded"},
			State:         nav.State(),
		})
	case services.IsFetchError(err):
		writeJSON(w, http.StatusBadGateway, StateErrorResponse{
			ErrorResponse: ErrorResponse{Error: "could not load tasks", Code: "fetch-failed"},
			State:         nav.State(),
		})
	default:
		writeError(w, http.StatusInternalServerError, "failed to load tasks")
	}
}

// Select makes a task current.
func (h *PracticeHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	nav := h.navigator(r)
	if err := nav.Select(req.TaskID); err != nil {
		if errors.Is(err, practice.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to select task")
		return
	}
	writeJSON(w, http.StatusOK, nav.State())
}

// Toggle expands or collapses a category.
func (h *PracticeHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	nav := h.navigator(r)
	nav.ToggleCategory(req.Category)
	writeJSON(w, http.StatusOK, nav.State())
}

// Input stores the text typed into the blank of an input task.
func (h *PracticeHandler) Input(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	nav := h.navigator(r)
	nav.SetInput(req.Value)
	writeJSON(w, http.StatusOK, nav.State())
}

// Submit evaluates an answer against the current task.
func (h *PracticeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	nav := h.navigator(r)
	result, err := nav.Submit(req.Answer)
	if err != nil {
		if errors.Is(err, practice.ErrNoTaskSelected) {
			writeError(w, http.StatusConflict, "no task selected")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to submit answer")
		return
	}
	writeJSON(w, http.StatusOK, SubmitResponse{Result: result, State: nav.State()})
}
