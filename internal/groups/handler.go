package groups

import (
	"github.com/gin-gonic/gin"

	"github.com/hpcadmin/server/internal/directory"
	"github.com/hpcadmin/server/internal/httpx"
	"github.com/hpcadmin/server/pkg/response"
)

// Handler handles group endpoints. Groups are addressed through their pirg
// except for the global listing.
type Handler struct {
	svc *directory.Service
}

// NewHandler creates a groups handler.
func NewHandler(svc *directory.Service) *Handler {
	return &Handler{svc: svc}
}

// CreateGroupRequest is the body for POST /pirgs/:name/groups.
type CreateGroupRequest struct {
	Name    string  `json:"name" binding:"required"`
	UserIDs []int64 `json:"user_ids"`
}

// StatusResponse is returned by DELETE /pirgs/:name/groups/:group_id.
type StatusResponse struct {
	Status string `json:"status"`
}

// Register mounts the group routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/groups", h.List)
	r.GET("/pirgs/:name/groups", h.ListPirgGroups)
	r.POST("/pirgs/:name/groups", h.Create)
	r.GET("/pirgs/:name/groups/:group_id", h.Get)
	r.DELETE("/pirgs/:name/groups/:group_id", h.Delete)
	r.POST("/pirgs/:name/groups/:group_id/users", h.AddUser)
	r.DELETE("/pirgs/:name/groups/:group_id/users/:user_id", h.RemoveUser)
}

// List handles GET /groups.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListGroupDetails(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	response.OK(c, list)
}

// ListPirgGroups handles GET /pirgs/:name/groups.
func (h *Handler) ListPirgGroups(c *gin.Context) {
	pirg, ok := httpx.PirgParam(c, h.svc)
	if !ok {
		return
	}
	list, err := h.svc.ListPirgGroupDetails(c.Request.Context(), pirg)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /pirgs/:name/groups.
func (h *Handler) Create(c *gin.Context) {
	pirg, ok := httpx.PirgParam(c, h.svc)
	if !ok {
		return
	}
	var body CreateGroupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	group, err := h.svc.CreatePirgGroup(c.Request.Context(), directory.NewGroup{
		Name:    body.Name,
		PirgID:  pirg.ID,
		UserIDs: body.UserIDs,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	response.Created(c, group)
}

// Get handles GET /pirgs/:name/groups/:group_id.
func (h *Handler) Get(c *gin.Context) {
	pirg, ok := httpx.PirgParam(c, h.svc)
	if !ok {
		return
	}
	group, ok := httpx.GroupParam(c, h.svc, pirg)
	if !ok {
		return
	}
	detail, err := h.svc.ResolveGroup(c.Request.Context(), group)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Delete handles DELETE /pirgs/:name/groups/:group_id.
func (h *Handler) Delete(c *gin.Context) {
	pirg, ok := httpx.PirgParam(c, h.svc)
	if !ok {
		return
	}
	group, ok := httpx.GroupParam(c, h.svc, pirg)
	if !ok {
		return
	}
	if err := h.svc.DeletePirgGroup(c.Request.Context(), group); err != nil {
		httpx.Error(c, err)
		return
	}
	response.OK(c, StatusResponse{Status: "success"})
}

// AddUser handles POST /pirgs/:name/groups/:group_id/users.
func (h *Handler) AddUser(c *gin.Context) {
	pirg, ok := httpx.PirgParam(c, h.svc)
	if !ok {
		return
	}
	group, ok := httpx.GroupParam(c, h.svc, pirg)
	if !ok {
		return
	}
	user, ok := httpx.UserBody(c, h.svc)
	if !ok {
		return
	}
	detail, err := h.svc.AddUserToPirgGroup(c.Request.Context(), group, user)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// RemoveUser handles DELETE /pirgs/:name/groups/:group_id/users/:user_id.
func (h *Handler) RemoveUser(c *gin.Context) {
	pirg, ok := httpx.PirgParam(c, h.svc)
	if !ok {
		return
	}
	group, ok := httpx.GroupParam(c, h.svc, pirg)
	if !ok {
		return
	}
	user, ok := httpx.UserParam(c, h.svc, "user_id")
	if !ok {
		return
	}
	detail, err := h.svc.RemoveUserFromPirgGroup(c.Request.Context(), group, user)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	response.OK(c, detail)
}
