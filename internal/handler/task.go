package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/repo"
	"github.com/BuzzLyutic/taskboard/internal/service"
	"github.com/BuzzLyutic/taskboard/pkg/respond"
)

type TaskHandler struct {
	service *service.TaskService
	logger  *zap.Logger
}

func NewTaskHandler(srv *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: srv,
		logger:  logger,
	}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return
	}

	var req model.TaskFields
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	idempKey := r.Header.Get("Idempotency-Key")
	task, err := h.service.Create(r.Context(), req, idempKey)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/tasks/"+task.ID)
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter model.TaskFilter
	if status := r.URL.Query().Get("status"); status != "" {
		s := model.Status(status)
		filter.Status = &s
	}

	tasks, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	respond.JSON(w, r, http.StatusOK, tasks)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, stats)
}

func (h *TaskHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrorConflict):
		respond.Error(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, validationReason(err))
	default:
		h.logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}

// validationReason strips the sentinel prefix so clients get just the reason.
func validationReason(err error) string {
	msg := strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
	if msg == "" {
		return service.ErrValidation.Error()
	}
	return msg
}
