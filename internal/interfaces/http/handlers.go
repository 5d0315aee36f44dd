package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/registry"
	"github.com/garyjia/approval-flow/internal/application/service"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/workflow"
	"github.com/garyjia/approval-flow/pkg/utils"
)

// Actor headers
const (
	HeaderActorID    = "X-Actor-ID"
	HeaderActorRoles = "X-Actor-Roles"
)

const actorKey = "actor"

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflow service.WorkflowService
	bulk     *service.BulkService
	entities port.EntityRepository
	registry *registry.Registry
	health   HealthFunc
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		workflow: deps.Workflow,
		bulk:     deps.Bulk,
		entities: deps.Entities,
		registry: deps.Registry,
		health:   deps.Health,
		logger:   deps.Logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// WorkflowResponse describes a registered topology
type WorkflowResponse struct {
	EntityType  string                    `json:"entity_type"`
	Completed   string                    `json:"completed"`
	States      []string                  `json:"states"`
	Steps       map[string]map[string]any `json:"steps"`
	Rejections  map[string]string         `json:"rejections"`
	Transitions map[string]string         `json:"transitions,omitempty"`
}

// CreateApprovableRequest is the body of POST /api/approvables
type CreateApprovableRequest struct {
	EntityType string            `json:"entity_type" binding:"required"`
	EntityID   string            `json:"entity_id" binding:"required"`
	State      string            `json:"state"`
	Fields     map[string]string `json:"fields"`
}

// ListApprovablesRequest represents query parameters for listing approvables
type ListApprovablesRequest struct {
	State  string `form:"state"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// ApproveRequest is the optional body of an approve call
type ApproveRequest struct {
	Comment string `json:"comment"`
}

// RejectRequest is the optional body of a reject call
type RejectRequest struct {
	Note string `json:"note"`
}

// BulkRequest is the body of a bulk call. Comment is used by approve and
// Note by reject.
type BulkRequest struct {
	IDs     []string `json:"ids" binding:"required,min=1"`
	Comment string   `json:"comment"`
	Note    string   `json:"note"`
}

// TransitionResponse reports a single approve or reject call
type TransitionResponse struct {
	Changed    bool               `json:"changed"`
	Approvable *entity.Approvable `json:"approvable"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	status := http.StatusOK
	if h.health != nil {
		ok, details := h.health(c.Request.Context())
		response.Components = details
		if !ok {
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// ListWorkflows handles GET /api/workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	workflows := []WorkflowResponse{}
	for _, t := range h.registry.Types() {
		reg, err := h.registry.Lookup(t)
		if err != nil {
			continue
		}
		workflows = append(workflows, toWorkflowResponse(reg.Topology))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    workflows,
	})
}

// CreateApprovable handles POST /api/approvables
func (h *Handlers) CreateApprovable(c *gin.Context) {
	var req CreateApprovableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}
	if err := validateRef(req.EntityType, req.EntityID); err != nil {
		h.badRequest(c, err.Error(), err)
		return
	}

	reg, err := h.registry.Lookup(req.EntityType)
	if err != nil {
		h.fail(c, "Unknown entity type", err)
		return
	}

	state := workflow.NoState
	if req.State != "" {
		code := workflow.StateCode(req.State)
		if !containsState(reg.Topology.States(), code) {
			h.badRequest(c, "unknown state "+req.State, nil)
			return
		}
		state = workflow.StateOf(code)
	}

	e := entity.NewApprovable(req.EntityType, req.EntityID, state)
	for k, v := range req.Fields {
		e.Fields[k] = v
	}

	if err := h.entities.Create(c.Request.Context(), e); err != nil {
		h.fail(c, "Failed to create approvable", err)
		return
	}

	h.logger.Info("Approvable created", "entity", e.Ref.String(), "state", e.State.String())

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    e,
	})
}

// ListApprovables handles GET /api/approvables/:type
func (h *Handlers) ListApprovables(c *gin.Context) {
	entityType := c.Param("type")
	if _, err := h.registry.Lookup(entityType); err != nil {
		h.fail(c, "Unknown entity type", err)
		return
	}

	var req ListApprovablesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	// Set defaults
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	filter := port.ListFilter{
		EntityType: entityType,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	if req.State != "" {
		filter.State = workflow.StateOf(workflow.StateCode(req.State))
	}

	entities, err := h.entities.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "Failed to list approvables", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    entities,
	})
}

// GetApprovable handles GET /api/approvables/:type/:id
func (h *Handlers) GetApprovable(c *gin.Context) {
	e, ok := h.load(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    e,
	})
}

// Approve handles POST /api/approvables/:type/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	var req ApproveRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	e, ok := h.load(c)
	if !ok {
		return
	}

	changed, err := h.workflow.Approve(c.Request.Context(), e, actorFrom(c), req.Comment, requestMetadata(c))
	if err != nil {
		h.fail(c, "Approve failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    TransitionResponse{Changed: changed, Approvable: e},
	})
}

// Reject handles POST /api/approvables/:type/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	var req RejectRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	e, ok := h.load(c)
	if !ok {
		return
	}

	changed, err := h.workflow.Reject(c.Request.Context(), e, actorFrom(c), req.Note, requestMetadata(c))
	if err != nil {
		h.fail(c, "Reject failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    TransitionResponse{Changed: changed, Approvable: e},
	})
}

// History handles GET /api/approvables/:type/:id/history
func (h *Handlers) History(c *gin.Context) {
	e, ok := h.load(c)
	if !ok {
		return
	}

	entries, err := h.workflow.History(c.Request.Context(), e)
	if err != nil {
		h.fail(c, "Failed to load history", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    entries,
	})
}

// Stats handles GET /api/approvables/:type/:id/stats
func (h *Handlers) Stats(c *gin.Context) {
	e, ok := h.load(c)
	if !ok {
		return
	}

	stats, err := h.workflow.ApprovalStats(c.Request.Context(), e, actorFrom(c))
	if err != nil {
		h.fail(c, "Failed to compute stats", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    stats,
	})
}

// BulkApprove handles POST /api/bulk/:type/approve
func (h *Handlers) BulkApprove(c *gin.Context) {
	refs, req, ok := h.bindBulk(c)
	if !ok {
		return
	}

	result := h.bulk.BulkApproveRefs(c.Request.Context(), refs, actorFrom(c), req.Comment, requestMetadata(c))
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// BulkReject handles POST /api/bulk/:type/reject
func (h *Handlers) BulkReject(c *gin.Context) {
	refs, req, ok := h.bindBulk(c)
	if !ok {
		return
	}

	result := h.bulk.BulkRejectRefs(c.Request.Context(), refs, actorFrom(c), req.Note, requestMetadata(c))
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

func (h *Handlers) bindBulk(c *gin.Context) ([]entity.Ref, *BulkRequest, bool) {
	entityType := c.Param("type")
	if _, err := h.registry.Lookup(entityType); err != nil {
		h.fail(c, "Unknown entity type", err)
		return nil, nil, false
	}

	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return nil, nil, false
	}

	// each id is processed once, in first-seen order
	refs := make([]entity.Ref, 0, len(req.IDs))
	seen := make(map[string]bool, len(req.IDs))
	for _, id := range req.IDs {
		if err := validateRef(entityType, id); err != nil {
			h.badRequest(c, err.Error(), err)
			return nil, nil, false
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		refs = append(refs, entity.Ref{Type: entityType, ID: id})
	}
	return refs, &req, true
}

// load reads the entity named by the :type and :id path parameters
func (h *Handlers) load(c *gin.Context) (*entity.Approvable, bool) {
	ref := entity.Ref{Type: c.Param("type"), ID: c.Param("id")}
	if err := validateRef(ref.Type, ref.ID); err != nil {
		h.badRequest(c, err.Error(), err)
		return nil, false
	}

	e, err := h.workflow.Read(c.Request.Context(), ref)
	if err != nil {
		h.fail(c, "Failed to read approvable", err)
		return nil, false
	}
	return e, true
}

// bindOptionalJSON accepts an empty body
func (h *Handlers) bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, "invalid request body", err)
		return false
	}
	return true
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	if err != nil {
		h.logger.Error("Bad request", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
	})
}

// fail writes err with the status it maps to
func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, Response{
		Success: false,
		Error:   err.Error(),
	})
}

// StatusFor maps application errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrUnknownEntityType), errors.Is(err, workflow.ErrEntityNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrConcurrentModification), errors.Is(err, workflow.ErrEntityExists):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrInvalidTopology):
		return http.StatusUnprocessableEntity
	case errors.Is(err, workflow.ErrMissingCapability):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// actorMiddleware identifies the acting user by X-Actor-ID. Roles come from
// the resolver; X-Actor-Roles is read only when trustHeader is set, which
// requires a proxy in front that owns that header.
func actorMiddleware(trustHeader bool, resolver RoleResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := entity.Actor{ID: strings.TrimSpace(c.GetHeader(HeaderActorID))}
		switch {
		case actor.IsAnonymous():
		case trustHeader:
			for _, role := range strings.Split(c.GetHeader(HeaderActorRoles), ",") {
				if role = strings.TrimSpace(role); role != "" {
					actor.Roles = append(actor.Roles, role)
				}
			}
		case resolver != nil:
			actor.Roles = resolver.Roles(actor.ID)
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) entity.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(entity.Actor); ok {
			return actor
		}
	}
	return entity.Actor{}
}

func requestMetadata(c *gin.Context) entity.RequestMetadata {
	return entity.RequestMetadata{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
}

func validateRef(entityType, id string) error {
	if err := utils.ValidateIdentifier("entity type", entityType); err != nil {
		return err
	}
	return utils.ValidateIdentifier("entity id", id)
}

func containsState(states []workflow.StateCode, code workflow.StateCode) bool {
	for _, s := range states {
		if s == code {
			return true
		}
	}
	return false
}

// toWorkflowResponse converts a topology to its API form
func toWorkflowResponse(t *workflow.Topology) WorkflowResponse {
	resp := WorkflowResponse{
		EntityType: t.EntityType(),
		Completed:  string(t.Completed()),
		States:     []string{},
		Steps:      make(map[string]map[string]any),
		Rejections: make(map[string]string),
	}

	for _, s := range t.States() {
		resp.States = append(resp.States, string(s))
	}
	for from, step := range t.Steps() {
		resp.Steps[string(from)] = step.ToMap()
	}
	for from, to := range t.Rejections() {
		resp.Rejections[string(from)] = string(to)
	}
	if transitions := t.Transitions(); len(transitions) > 0 {
		resp.Transitions = make(map[string]string, len(transitions))
		for from, to := range transitions {
			resp.Transitions[string(from)] = string(to)
		}
	}

	return resp
}
