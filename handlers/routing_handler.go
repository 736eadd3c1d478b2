package handlers

import (
	"net/http"
	"strings"

	"github.com/vedaai/veda-backend/services"
	"github.com/vedaai/veda-backend/services/routing"
	"github.com/vedaai/veda-backend/utils"
	"go.uber.org/zap"
)

// RouteInspector exposes the read-only side of the model router
type RouteInspector interface {
	Table() *routing.Table
	Resolve(task routing.TaskType) []routing.Candidate
	Stats() map[string]routing.ProviderStats
}

// RoutingTableResponse is the body of GET /routing/table
type RoutingTableResponse struct {
	Routes   map[routing.TaskType][]routing.Candidate `json:"routes"`
	Fallback routing.Candidate                       `json:"fallback"`
	Stats    map[string]routing.ProviderStats        `json:"stats"`
}

// ResolveRequest asks which candidates would serve a message. Either
// TaskType or Content (optionally with HasImage) must be set.
type ResolveRequest struct {
	TaskType string `json:"task_type,omitempty"`
	Content  string `json:"content,omitempty" validate:"max=32000"`
	HasImage bool   `json:"has_image,omitempty"`
}

// ResolveResponse lists the candidates in the order they would be tried
type ResolveResponse struct {
	Task       routing.TaskType    `json:"task"`
	Classified bool                `json:"classified"`
	Candidates []routing.Candidate `json:"candidates"`
}

// RoutingHandler handles route table inspection
type RoutingHandler struct {
	router RouteInspector
	logger *zap.Logger
}

// NewRoutingHandler creates a new RoutingHandler
func NewRoutingHandler(router RouteInspector, logger *zap.Logger) *RoutingHandler {
	return &RoutingHandler{
		router: router,
		logger: logger,
	}
}

// HandleTable handles GET /api/v1/routing/table
func (h *RoutingHandler) HandleTable(w http.ResponseWriter, r *http.Request) {
	table := h.router.Table()
	_ = utils.WriteOK(w, RoutingTableResponse{
		Routes:   table.Snapshot(),
		Fallback: table.Fallback(),
		Stats:    h.router.Stats(),
	})
}

// HandleResolve handles POST /api/v1/routing/resolve
func (h *RoutingHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	var task routing.TaskType
	classified := false
	switch {
	case strings.TrimSpace(req.TaskType) != "":
		// unrecognised names resolve to the hard fallback
		task = routing.ParseTaskType(req.TaskType)
	case strings.TrimSpace(req.Content) != "" || req.HasImage:
		task = routing.Classify(req.Content, req.HasImage)
		classified = true
	default:
		HandleServiceError(w, services.ErrInvalidInput.Wrap(nil).WithDetail("task_type", "task_type or content is required"), h.logger)
		return
	}

	_ = utils.WriteOK(w, ResolveResponse{
		Task:       task,
		Classified: classified,
		Candidates: h.router.Resolve(task),
	})
}
