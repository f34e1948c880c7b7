package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/idea-tracker/internal/apperror"
	"github.com/sakif/idea-tracker/internal/model"
	"github.com/sakif/idea-tracker/internal/policy"
	"github.com/sakif/idea-tracker/internal/service"
)

// IdeaHandler serves the idea endpoints. Every route requires an
// authenticated caller; role checks and visibility live in the service.
type IdeaHandler struct {
	ideas  *service.IdeaService
	logger *slog.Logger
}

func NewIdeaHandler(ideas *service.IdeaService, logger *slog.Logger) *IdeaHandler {
	return &IdeaHandler{ideas: ideas, logger: logger}
}

type createIdeaRequest struct {
	Title       string `json:"title"       validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=10000"`
}

// updateIdeaRequest keeps assigned_to raw so that an absent field (leave
// the assignee alone) can be told apart from null (unassign).
type updateIdeaRequest struct {
	Status     *string         `json:"status"      validate:"omitempty,oneof=pending in_progress completed"`
	AssignedTo json.RawMessage `json:"assigned_to"`
	Version    *int64          `json:"version"     validate:"omitempty,gte=1"`
}

type addUpdateRequest struct {
	Message string `json:"message" validate:"required,max=5000"`
}

type ideaResponse struct {
	Message string      `json:"message"`
	Idea    *model.Idea `json:"idea"`
}

type updateResponse struct {
	Message string        `json:"message"`
	Update  *model.Update `json:"update"`
}

// HandleList returns the caller's visible ideas, newest first.
//
// HTTP: GET /api/ideas
func (h *IdeaHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}

	ideas, err := h.ideas.List(r.Context(), caller)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ideas)
}

// HandleCreate submits an idea. Customers only.
//
// HTTP: POST /api/ideas
// REQUEST BODY: {"title": "...", "description": "..."}
func (h *IdeaHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}

	var req createIdeaRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	idea, err := h.ideas.Create(r.Context(), caller, req.Title, req.Description)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, ideaResponse{Message: "Idea submitted successfully", Idea: idea})
}

// HandleGet returns one idea with its updates.
//
// HTTP: GET /api/ideas/{id}
func (h *IdeaHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, err := ideaID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	detail, err := h.ideas.Get(r.Context(), caller, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleUpdate changes status and, for owners, the assignee.
//
// HTTP: PUT /api/ideas/{id}
// REQUEST BODY: {"status"?: "...", "assigned_to"?: 3 | null, "version"?: 2}
func (h *IdeaHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, err := ideaID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req updateIdeaRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	// Only callers who may reassign get assigned_to parsed; for everyone
	// else the field is passed on as present and the service ignores it.
	set, assignee := len(bytes.TrimSpace(req.AssignedTo)) > 0, (*int64)(nil)
	if policy.Allows(caller.Role, policy.ActionReassign) {
		set, assignee, err = parseAssignee(req.AssignedTo)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	idea, err := h.ideas.Update(r.Context(), caller, id, service.UpdateIdeaInput{
		Status:      req.Status,
		SetAssignee: set,
		AssigneeID:  assignee,
		Version:     req.Version,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ideaResponse{Message: "Idea updated successfully", Idea: idea})
}

// HandleAddUpdate appends a comment to an idea.
//
// HTTP: POST /api/ideas/{id}/updates
// REQUEST BODY: {"message": "..."}
func (h *IdeaHandler) HandleAddUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, err := ideaID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req addUpdateRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	u, err := h.ideas.AddUpdate(r.Context(), caller, id, req.Message)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, updateResponse{Message: "Update added successfully", Update: u})
}

// HandleStats returns per-status counts over the caller's visible ideas.
//
// HTTP: GET /api/stats
func (h *IdeaHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}

	st, err := h.ideas.Stats(r.Context(), caller)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func ideaID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "idea id must be a positive integer")
	}
	return id, nil
}

// parseAssignee interprets the raw assigned_to value.
//
//	absent        → set=false
//	null, ""      → set=true, id=nil (unassign)
//	3, "3"        → set=true, id=3
func parseAssignee(raw json.RawMessage) (bool, *int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false, nil, nil
	}
	if bytes.Equal(raw, []byte("null")) {
		return true, nil, nil
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return true, &n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return true, nil, nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return true, &n, nil
		}
	}

	return false, nil, apperror.ValidationFailed("assigned_to", "assigned_to must be a user id or null")
}
